package paths

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"go-media-bot/internal/helpers"
)

// Tags accepted in a file name pattern.
var allowedTags = map[string]struct{}{
	"title":   {},
	"id":      {},
	"host":    {},
	"quality": {},
	"date":    {},
}

var tagRegex = regexp.MustCompile(`\{([^}]+)\}`)

// GeneratePath substitutes {tag} placeholders in pattern with slugged values
// from data and returns a relative path. Missing or empty values become
// "empty_<tag>". The extension is not part of the pattern.
func GeneratePath(pattern string, data map[string]string) (string, error) {
	generatedPath := pattern

	for _, match := range tagRegex.FindAllStringSubmatch(pattern, -1) {
		tagName, tagWithBraces := match[1], match[0]

		if _, allowed := allowedTags[tagName]; !allowed {
			return "", fmt.Errorf("unknown tag found in name pattern: %s", tagWithBraces)
		}

		value := helpers.ConvertToSlug(data[tagName])
		if value == "" {
			value = "empty_" + tagName
		}
		generatedPath = strings.ReplaceAll(generatedPath, tagWithBraces, value)
	}

	cleanedPath := filepath.Clean(generatedPath)
	if cleanedPath == "." || cleanedPath == "" {
		return "", fmt.Errorf("name pattern resulted in an empty path: '%s'", pattern)
	}
	cleanedPath = strings.TrimPrefix(cleanedPath, string(filepath.Separator))

	// No escaping the output directory.
	if strings.Contains(cleanedPath, "..") {
		return "", fmt.Errorf("generated path contains invalid sequence '..': %s", cleanedPath)
	}

	return cleanedPath, nil
}

// FileName renders pattern for a downloaded file and re-attaches the
// extension of the file the tool produced.
func FileName(pattern string, data map[string]string, producedFile string) (string, error) {
	base, err := GeneratePath(pattern, data)
	if err != nil {
		return "", err
	}
	return base + strings.ToLower(filepath.Ext(producedFile)), nil
}

// HostOf returns the host of rawURL without a leading "www.", or "" when
// rawURL has none.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
