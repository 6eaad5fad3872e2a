// Package workspace manages the per-request scratch directories that yt-dlp
// writes into.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go-media-bot/internal/helpers"

	log "github.com/sirupsen/logrus"
)

// ErrFileSystem covers failures to create a workspace.
var ErrFileSystem = errors.New("filesystem error")

// Manager allocates directories below a single root.
type Manager struct {
	root string
}

// NewManager returns a Manager rooted at root. The root is created lazily.
func NewManager(root string) *Manager {
	return &Manager{root: helpers.SanitizePath(root)}
}

// Root returns the workspace root directory.
func (m *Manager) Root() string {
	return m.root
}

// Create makes a fresh directory for requestID. An existing directory with the
// same name is an error.
func (m *Manager) Create(requestID string) (string, error) {
	if requestID == "" || strings.ContainsAny(requestID, `/\`) || strings.Contains(requestID, "..") {
		return "", fmt.Errorf("%w: invalid request id %q", ErrFileSystem, requestID)
	}
	if err := os.MkdirAll(m.root, 0o750); err != nil {
		return "", fmt.Errorf("%w: creating workspace root %s: %w", ErrFileSystem, m.root, err)
	}

	path := filepath.Join(m.root, requestID)
	if err := os.Mkdir(path, 0o750); err != nil {
		return "", fmt.Errorf("%w: creating workspace %s: %w", ErrFileSystem, path, err)
	}
	log.Debugf("Created workspace %s", path)
	return path, nil
}

// Remove deletes a workspace. Failures are logged and never returned.
func (m *Manager) Remove(path string) {
	if path == "" {
		return
	}
	clean := helpers.SanitizePath(path)
	if !m.contains(clean) {
		log.Warnf("Refusing to remove %s: not inside workspace root %s", clean, m.root)
		return
	}
	if err := os.RemoveAll(clean); err != nil {
		log.WithError(err).Warnf("Failed to remove workspace %s", clean)
		return
	}
	log.Debugf("Removed workspace %s", clean)
}

// PurgeAll removes the whole workspace root, reclaiming space left behind by
// an unclean shutdown. Roots shared with other programs (a filesystem root,
// the system temp dir, the home or working directory) are never removed.
// Failures are logged and never returned; the result reports whether the
// root is gone.
func (m *Manager) PurgeAll() bool {
	if reason := m.sharedRoot(); reason != "" {
		log.Errorf("Refusing to purge workspace root %s: it is %s. Point WorkspaceRoot at a directory of its own.", m.root, reason)
		return false
	}
	if err := os.RemoveAll(m.root); err != nil {
		log.WithError(err).Warnf("Failed to purge workspace root %s", m.root)
		return false
	}
	log.Infof("Purged workspace root %s", m.root)
	return true
}

// sharedRoot names the well-known directory the root resolves to, or "".
func (m *Manager) sharedRoot() string {
	root, err := filepath.Abs(m.root)
	if err != nil {
		return "unresolvable"
	}
	if filepath.Dir(root) == root {
		return "a filesystem root"
	}
	shared := []struct {
		name string
		dir  func() (string, error)
	}{
		{"the system temp directory", func() (string, error) { return os.TempDir(), nil }},
		{"the home directory", os.UserHomeDir},
		{"the working directory", os.Getwd},
	}
	for _, s := range shared {
		dir, err := s.dir()
		if err != nil || dir == "" {
			continue
		}
		if abs, err := filepath.Abs(dir); err == nil && abs == root {
			return s.name
		}
	}
	return ""
}

func (m *Manager) contains(path string) bool {
	rel, err := filepath.Rel(m.root, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
