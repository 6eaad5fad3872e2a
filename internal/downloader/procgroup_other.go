//go:build !unix

package downloader

import "os/exec"

// killProcessGroupOnCancel is a no-op; cancellation kills only yt-dlp itself.
func killProcessGroupOnCancel(_ *exec.Cmd) {}
