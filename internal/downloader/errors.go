package downloader

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Custom Downloader Errors
var (
	ErrSpawn       = errors.New("yt-dlp could not be started")
	ErrTimeout     = errors.New("download timeout")
	ErrNoOutput    = errors.New("no output produced")
	ErrToolFailure = errors.New("yt-dlp failed")
)

// User-facing failure reasons.
const (
	ReasonPrivate     = "content is private or requires authentication"
	ReasonRegion      = "not available in your region"
	ReasonUnavailable = "no longer available"
	ReasonUnsupported = "URL is not supported"
	ReasonAuth        = "authentication required"
	ReasonGeneric     = "failed to download content"
	ReasonTimeout     = "download timeout"
	ReasonNoOutput    = "no output produced"
)

// ToolError is a non-zero yt-dlp exit, classified from its stderr.
type ToolError struct {
	ExitCode int
	Reason   string
	Stderr   string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%v: exit code %d: %s", ErrToolFailure, e.ExitCode, e.Reason)
}

func (e *ToolError) Unwrap() error { return ErrToolFailure }

// SpawnError wraps the reason the tool could not run.
type SpawnError struct {
	Err error
}

func (e *SpawnError) Error() string { return e.Err.Error() }

func (e *SpawnError) Is(target error) bool { return target == ErrSpawn }

func (e *SpawnError) Unwrap() error { return e.Err }

// classificationRule maps any of its needles to a reason. Order matters.
type classificationRule struct {
	needles []string
	reason  string
}

var classificationRules = []classificationRule{
	{needles: []string{"private"}, reason: ReasonPrivate},
	{needles: []string{"geo", "blocked"}, reason: ReasonRegion},
	{needles: []string{"unavailable", "deleted"}, reason: ReasonUnavailable},
	{needles: []string{"unsupported"}, reason: ReasonUnsupported},
	{needles: []string{"sign in", "login"}, reason: ReasonAuth},
}

// Classify turns yt-dlp diagnostic output into a user-facing reason. The first
// matching rule wins; matching is case-insensitive.
func Classify(stderr string) string {
	text := strings.ToLower(stderr)
	for _, rule := range classificationRules {
		for _, needle := range rule.needles {
			if strings.Contains(text, needle) {
				return rule.reason
			}
		}
	}
	return ReasonGeneric
}

// UserReason converts any download error into a short sentence for the chat.
func UserReason(err error) string {
	if err == nil {
		return ""
	}
	var toolErr *ToolError
	var spawnErr *SpawnError
	switch {
	case errors.As(err, &toolErr):
		return toolErr.Reason
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, ErrNoOutput):
		return ReasonNoOutput
	case errors.As(err, &spawnErr):
		return spawnErr.Err.Error()
	default:
		// workspace.ErrFileSystem and anything unexpected
		return ReasonGeneric
	}
}
