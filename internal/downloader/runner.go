package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/lrstanley/go-ytdlp"
	log "github.com/sirupsen/logrus"
)

// Invocation is a single yt-dlp run.
type Invocation struct {
	URL            string
	OutputTemplate string
	Profile        Profile
}

// RunOutput is what the orchestrator needs from a finished process.
type RunOutput struct {
	ExitCode int
	Stderr   string
}

// Runner executes yt-dlp. A returned error means the process did not run to
// completion (could not start, or ctx ended); a non-zero ExitCode with a nil
// error is an ordinary tool failure.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (*RunOutput, error)
}

// YtDlpRunner runs the yt-dlp executable through go-ytdlp. Arguments are passed
// as an argv slice, never through a shell.
type YtDlpRunner struct {
	executable string
}

// NewYtDlpRunner returns a runner for the given executable; empty means
// "yt-dlp" from PATH.
func NewYtDlpRunner(executable string) *YtDlpRunner {
	return &YtDlpRunner{executable: executable}
}

func (r *YtDlpRunner) command(inv Invocation) *ytdlp.Command {
	cmd := ytdlp.New().
		NoPlaylist().
		NoProgress().
		Format(inv.Profile.Format).
		MergeOutputFormat(inv.Profile.MergeOutputFormat).
		Output(inv.OutputTemplate)
	if r.executable != "" {
		cmd.SetExecutable(r.executable)
	}
	return cmd
}

// Run implements Runner.
func (r *YtDlpRunner) Run(ctx context.Context, inv Invocation) (*RunOutput, error) {
	cmd := r.buildCommand(ctx, inv)
	if cmd.Err != nil {
		return nil, cmd.Err
	}
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr
	// ffmpeg children must die with yt-dlp, or they hold the pipes open.
	killProcessGroupOnCancel(cmd)

	log.WithFields(log.Fields{
		"url":     inv.URL,
		"quality": inv.Profile.Quality,
	}).Debugf("Running %s %q", cmd.Path, cmd.Args[1:])

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr) && exitErr.ExitCode() >= 0:
		return &RunOutput{ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}, nil
	case errors.As(err, &exitErr):
		return nil, fmt.Errorf("yt-dlp terminated abnormally: %w", err)
	case err != nil:
		return nil, err
	}
	return &RunOutput{ExitCode: 0, Stderr: stderr.String()}, nil
}

// buildCommand renders the argv through go-ytdlp. Platform-specific flags go
// in front of the URL; yt-dlp accepts options anywhere in argv.
func (r *YtDlpRunner) buildCommand(ctx context.Context, inv Invocation) *exec.Cmd {
	positional := append(append([]string{}, inv.Profile.ExtraArgs...), inv.URL)
	return r.command(inv).BuildCommand(ctx, positional...)
}
