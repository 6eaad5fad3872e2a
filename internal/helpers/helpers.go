package helpers

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
)

// BytesToSize converts a byte count to a human readable string (e.g. "49 MiB").
func BytesToSize(bytes uint64) string {
	return humanize.IBytes(bytes)
}

// HashFile returns the hex-encoded BLAKE3 digest of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(SanitizePath(path))
	if err != nil {
		return "", fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer f.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// SanitizePath cleans a path before it is handed to os.Open and friends.
func SanitizePath(path string) string {
	return filepath.Clean(path)
}

// CheckAndMakeDir ensures a directory exists, creating it if necessary.
func CheckAndMakeDir(dir string) bool {
	if err := os.MkdirAll(SanitizePath(dir), 0o750); err != nil {
		log.WithError(err).Errorf("Failed to create directory %s", dir)
		return false
	}
	return true
}

// CopyFile copies src to dst, creating or truncating dst.
func CopyFile(src, dst string) error {
	in, err := os.Open(SanitizePath(src))
	if err != nil {
		return fmt.Errorf("opening source %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(SanitizePath(dst))
	if err != nil {
		return fmt.Errorf("creating destination %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	return out.Close()
}

var (
	slugDrop       = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)
	slugUnderscore = regexp.MustCompile(`_+`)
)

// ConvertToSlug lowercases s and reduces it to letters, digits, '.', '_' and '-'.
// Whitespace becomes '_' and colons become '-'.
func ConvertToSlug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ":", "-")
	s = strings.Join(strings.Fields(s), "_")
	s = slugDrop.ReplaceAllString(s, "")
	s = slugUnderscore.ReplaceAllString(s, "_")
	s = strings.ReplaceAll(s, "_-", "-")
	s = strings.ReplaceAll(s, "-_", "-")
	return strings.Trim(s, "._-")
}
