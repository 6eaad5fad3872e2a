package models

import (
	"time"

	"github.com/google/uuid"
)

type (
	// Config holds the application's configuration settings.
	Config struct {
		BotToken               string `toml:"BotToken" json:"BotToken"`
		AllowedUsers           string `toml:"AllowedUsers" json:"AllowedUsers"`
		WorkspaceRoot          string `toml:"WorkspaceRoot" json:"WorkspaceRoot"`
		YtDlpPath              string `toml:"YtDlpPath" json:"YtDlpPath"`
		LogLevel               string `toml:"LogLevel" json:"LogLevel"`
		LogFormat              string `toml:"LogFormat" json:"LogFormat"`
		ApiLogPath             string `toml:"ApiLogPath" json:"ApiLogPath"`
		DownloadTimeoutSec     int    `toml:"DownloadTimeoutSec" json:"DownloadTimeoutSec"`
		MaxFileSizeMB          int    `toml:"MaxFileSizeMB" json:"MaxFileSizeMB"`
		CooldownSec            int    `toml:"CooldownSec" json:"CooldownSec"`
		MaxConcurrentDownloads int    `toml:"MaxConcurrentDownloads" json:"MaxConcurrentDownloads"`
		ReducedQualityHeight   int    `toml:"ReducedQualityHeight" json:"ReducedQualityHeight"`
		LogApiRequests         bool   `toml:"LogApiRequests" json:"LogApiRequests"`
	}
)

// DownloadTimeout returns the per-attempt wall-clock limit.
func (c Config) DownloadTimeout() time.Duration {
	return time.Duration(c.DownloadTimeoutSec) * time.Second
}

// Cooldown returns the minimum gap between two accepted batches of one user.
func (c Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownSec) * time.Second
}

// MaxFileSizeBytes converts MaxFileSizeMB to bytes.
func (c Config) MaxFileSizeBytes() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

// Redacted returns a copy safe to print or log.
func (c Config) Redacted() Config {
	if c.BotToken != "" {
		c.BotToken = "<redacted>"
	}
	return c
}

// Quality selects the format selector family used for an attempt.
type Quality string

const (
	QualityBest    Quality = "best"
	QualityReduced Quality = "reduced"
)

// Request is one user-initiated download attempt. The size-triggered retry
// reuses the same Request.
type Request struct {
	ID        string
	URL       string
	UserID    int64
	Workspace string
	StartedAt time.Time
}

// NewRequest creates a Request with a fresh identifier.
func NewRequest(url string, userID int64) *Request {
	return &Request{
		ID:        uuid.New().String(),
		URL:       url,
		UserID:    userID,
		StartedAt: time.Now(),
	}
}

// Result is the outcome of a download. Exactly one of (FilePath, Err) is meaningful.
type Result struct {
	RequestID string
	URL       string
	Workspace string // owned by the delivery step on success
	FilePath  string
	Title     string
	Checksum  string // blake3, hex
	Quality   Quality
	Size      int64
	Retried   bool

	Err    error
	Reason string // user-facing failure sentence
}

// Success reports whether the attempt produced a file.
func (r *Result) Success() bool {
	return r != nil && r.Err == nil && r.FilePath != ""
}
