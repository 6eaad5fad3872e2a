// Package extract finds links in free-form chat text.
package extract

import (
	"strings"

	"mvdan.cc/xurls/v2"
)

// URLs returns the links found in text in order of first appearance, without
// duplicates. Only links with a scheme and authority are returned. The host is
// not validated; that is left to the downloader.
func URLs(text string) []string {
	matches := xurls.Strict().FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		// mailto:, magnet: and friends have no host to download from.
		if !strings.Contains(m, "://") {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		urls = append(urls, m)
	}
	return urls
}
