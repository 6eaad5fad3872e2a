package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURLs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "no links",
			text: "hello there",
			want: nil,
		},
		{
			name: "empty text",
			text: "",
			want: nil,
		},
		{
			name: "single link in sentence",
			text: "check this out https://tiktok.com/@x/video/1 cool right?",
			want: []string{"https://tiktok.com/@x/video/1"},
		},
		{
			name: "repeated link is deduplicated",
			text: "https://youtu.be/abc and again https://youtu.be/abc",
			want: []string{"https://youtu.be/abc"},
		},
		{
			name: "order preserved first occurrence wins",
			text: "https://b.example/2 https://a.example/1 https://b.example/2",
			want: []string{"https://b.example/2", "https://a.example/1"},
		},
		{
			name: "trailing punctuation trimmed",
			text: "look (https://www.instagram.com/reel/XYZ/). And https://x.com/a/status/1!",
			want: []string{"https://www.instagram.com/reel/XYZ/", "https://x.com/a/status/1"},
		},
		{
			name: "query strings kept",
			text: "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s",
			want: []string{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s"},
		},
		{
			name: "links separated by newlines",
			text: "http://one.example/a\nhttp://two.example/b",
			want: []string{"http://one.example/a", "http://two.example/b"},
		},
		{
			name: "balanced parentheses kept",
			text: "see https://en.wikipedia.org/wiki/Go_(programming_language) ok",
			want: []string{"https://en.wikipedia.org/wiki/Go_(programming_language)"},
		},
		{
			name: "parenthesised link with balanced parentheses",
			text: "(https://en.wikipedia.org/wiki/Go_(programming_language))",
			want: []string{"https://en.wikipedia.org/wiki/Go_(programming_language)"},
		},
		{
			name: "links without authority ignored",
			text: "mailto:someone@example.com or magnet:?xt=urn:btih:abc",
			want: nil,
		},
		{
			name: "bare scheme ignored",
			text: "https:// nothing",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := URLs(tt.text)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
