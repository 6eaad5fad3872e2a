package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go-media-bot/internal/helpers"
	"go-media-bot/internal/models"
	"go-media-bot/internal/workspace"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// Defaults applied by NewDownloader for zero-valued Options.
const (
	DefaultTimeout       = 120 * time.Second
	DefaultMaxConcurrent = 2
)

// videoExtensions are the containers accepted as yt-dlp output.
var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".mkv":  {},
	".webm": {},
	".mov":  {},
}

// Options configures a Downloader.
type Options struct {
	Runner        Runner
	Workspaces    *workspace.Manager
	Timeout       time.Duration
	MaxFileSize   int64 // bytes; <= 0 disables the quality downgrade
	ReducedHeight int
	MaxConcurrent int64 // yt-dlp processes running at once across all users
}

// Downloader drives yt-dlp for one URL at a time: a best-quality attempt and,
// if the result is too large, one reduced-quality retry.
type Downloader struct {
	runner        Runner
	workspaces    *workspace.Manager
	timeout       time.Duration
	maxFileSize   int64
	reducedHeight int
	slots         *semaphore.Weighted
}

// NewDownloader creates a new Downloader instance.
func NewDownloader(opts Options) *Downloader {
	if opts.Runner == nil {
		opts.Runner = NewYtDlpRunner("")
	}
	if opts.Workspaces == nil {
		opts.Workspaces = workspace.NewManager(filepath.Join(os.TempDir(), "media-bot"))
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ReducedHeight <= 0 {
		opts.ReducedHeight = DefaultReducedHeight
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	return &Downloader{
		runner:        opts.Runner,
		workspaces:    opts.Workspaces,
		timeout:       opts.Timeout,
		maxFileSize:   opts.MaxFileSize,
		reducedHeight: opts.ReducedHeight,
		slots:         semaphore.NewWeighted(opts.MaxConcurrent),
	}
}

// Download fetches req.URL. On success the returned Result owns a workspace
// that the caller must hand back through Release once the file is delivered.
// Failed results have already been cleaned up.
func (d *Downloader) Download(ctx context.Context, req *models.Request) *models.Result {
	res := d.attempt(ctx, req, models.QualityBest)
	if !res.Success() || d.maxFileSize <= 0 || res.Size <= d.maxFileSize {
		return res
	}

	log.WithFields(requestFields(req)).Infof("Output is %s, over the %s limit. Retrying at reduced quality.",
		helpers.BytesToSize(uint64(res.Size)), helpers.BytesToSize(uint64(d.maxFileSize)))
	d.workspaces.Remove(res.Workspace)

	// Exactly one retry; an oversize retry is returned as-is.
	retry := d.attempt(ctx, req, models.QualityReduced)
	retry.Retried = true
	if retry.Success() && retry.Size > d.maxFileSize {
		log.WithFields(requestFields(req)).Warnf("Reduced-quality output is still %s, delivering anyway",
			helpers.BytesToSize(uint64(retry.Size)))
	}
	return retry
}

// Release removes the workspace of a delivered result.
func (d *Downloader) Release(res *models.Result) {
	if res == nil || res.Workspace == "" {
		return
	}
	d.workspaces.Remove(res.Workspace)
	res.Workspace = ""
}

func (d *Downloader) attempt(ctx context.Context, req *models.Request, quality models.Quality) *models.Result {
	logger := log.WithFields(requestFields(req)).WithField("quality", quality)
	res := &models.Result{RequestID: req.ID, URL: req.URL, Quality: quality}

	// One directory per attempt, so a retry never collides with a leftover
	// workspace of the first attempt.
	dir, err := d.workspaces.Create(attemptWorkspaceName(req, quality))
	if err != nil {
		logger.WithError(err).Error("Could not allocate workspace")
		return d.fail(res, err)
	}
	req.Workspace = dir
	res.Workspace = dir

	if err := d.slots.Acquire(ctx, 1); err != nil {
		logger.WithError(err).Warn("Gave up waiting for a download slot")
		return d.fail(res, err)
	}
	out, timedOut, runErr := d.run(ctx, req, dir, quality)
	d.slots.Release(1)

	switch {
	case timedOut:
		logger.Warnf("yt-dlp exceeded %v, process terminated", d.timeout)
		return d.fail(res, fmt.Errorf("%w after %v", ErrTimeout, d.timeout))
	case runErr != nil && ctx.Err() != nil:
		logger.WithError(runErr).Warn("Download cancelled")
		return d.fail(res, runErr)
	case runErr != nil:
		logger.WithError(runErr).Error("yt-dlp could not be run")
		return d.fail(res, &SpawnError{Err: runErr})
	case out.ExitCode != 0:
		reason := Classify(out.Stderr)
		logger.WithField("exit_code", out.ExitCode).Warnf("yt-dlp failed (%s): %s", reason, strings.TrimSpace(out.Stderr))
		return d.fail(res, &ToolError{ExitCode: out.ExitCode, Reason: reason, Stderr: out.Stderr})
	}

	file, err := findOutputFile(dir)
	if err != nil {
		logger.WithError(err).Warn("yt-dlp exited cleanly but left no video file")
		return d.fail(res, err)
	}
	info, err := os.Stat(file)
	if err != nil {
		logger.WithError(err).Errorf("Could not stat output %s", file)
		return d.fail(res, fmt.Errorf("%w: stat %s: %w", workspace.ErrFileSystem, file, err))
	}

	res.FilePath = file
	res.Title = titleFromFilename(file)
	res.Size = info.Size()
	if sum, err := helpers.HashFile(file); err != nil {
		logger.WithError(err).Warn("Could not hash output file")
	} else {
		res.Checksum = sum
	}

	logger.WithFields(log.Fields{
		"size":     helpers.BytesToSize(uint64(res.Size)),
		"checksum": res.Checksum,
		"elapsed":  time.Since(req.StartedAt).Round(time.Millisecond),
	}).Infof("Downloaded %q", res.Title)
	return res
}

// run executes yt-dlp under the per-attempt deadline. timedOut is only set
// when our own deadline fired, not when the parent context was cancelled.
func (d *Downloader) run(ctx context.Context, req *models.Request, dir string, quality models.Quality) (*RunOutput, bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	inv := Invocation{
		URL:            req.URL,
		OutputTemplate: filepath.Join(dir, OutputTemplateName),
		Profile:        BuildProfile(req.URL, quality, d.reducedHeight),
	}
	out, err := d.runner.Run(attemptCtx, inv)
	timedOut := ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
	if err == nil && !timedOut && out == nil {
		err = errors.New("runner returned no output")
	}
	return out, timedOut, err
}

func (d *Downloader) fail(res *models.Result, err error) *models.Result {
	d.workspaces.Remove(res.Workspace)
	res.Workspace = ""
	res.FilePath = ""
	res.Err = err
	res.Reason = UserReason(err)
	return res
}

// findOutputFile returns the first video file in dir. os.ReadDir sorts by name.
func findOutputFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: reading workspace %s: %w", workspace.ErrFileSystem, dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := videoExtensions[strings.ToLower(filepath.Ext(entry.Name()))]; ok {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNoOutput, dir)
}

func attemptWorkspaceName(req *models.Request, quality models.Quality) string {
	return req.ID + "-" + string(quality)
}

func titleFromFilename(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func requestFields(req *models.Request) log.Fields {
	return log.Fields{
		"request_id": req.ID,
		"user_id":    req.UserID,
		"url":        req.URL,
	}
}
