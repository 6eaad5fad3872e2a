package bot

import (
	"html"
	"strings"
	"unicode/utf8"
)

// MaxCaptionLength is Telegram's limit for media captions, in characters.
const MaxCaptionLength = 1024

const (
	ellipsis         = "…"
	placeholderTitle = "NA"
	titleOpen        = "<b>"
	titleClose       = "</b>\n"
)

// BuildCaption renders the HTML caption for a delivered file: a bold title
// line when a real title is known, then the source link. Over-long captions
// lose characters from the title first and end in an ellipsis.
func BuildCaption(title, sourceURL string) string {
	title = strings.TrimSpace(title)
	hasTitle := title != "" && title != placeholderTitle
	link := html.EscapeString(sourceURL)

	caption := link
	if hasTitle {
		caption = titleOpen + html.EscapeString(title) + titleClose + link
	}
	if utf8.RuneCountInString(caption) <= MaxCaptionLength {
		return caption
	}

	if hasTitle {
		budget := MaxCaptionLength - utf8.RuneCountInString(titleOpen+titleClose) - utf8.RuneCountInString(link)
		if budget > utf8.RuneCountInString(ellipsis) {
			return titleOpen + escapeWithin(title, budget) + titleClose + link
		}
	}
	return escapeWithin(sourceURL, MaxCaptionLength)
}

// escapeWithin HTML-escapes s and cuts it on a rune boundary so that the
// result, ellipsis included, is at most limit runes. Entities are never split.
func escapeWithin(s string, limit int) string {
	escaped := html.EscapeString(s)
	if utf8.RuneCountInString(escaped) <= limit {
		return escaped
	}

	room := limit - utf8.RuneCountInString(ellipsis)
	var b strings.Builder
	used := 0
	for _, r := range s {
		piece := html.EscapeString(string(r))
		n := utf8.RuneCountInString(piece)
		if used+n > room {
			break
		}
		b.WriteString(piece)
		used += n
	}
	b.WriteString(ellipsis)
	return b.String()
}
