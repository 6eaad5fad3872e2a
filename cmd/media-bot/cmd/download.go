package cmd

import (
	"os/exec"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-media-bot/internal/config"
	"go-media-bot/internal/downloader"
	"go-media-bot/internal/models"
	"go-media-bot/internal/workspace"
)

// Flags shared by every command that downloads.
var (
	workspaceFlag   string
	ytDlpFlag       string
	timeoutFlag     int
	maxSizeFlag     int
	concurrencyFlag int
)

// addDownloadFlags registers the download flags on cmd.
func addDownloadFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&workspaceFlag, "workspace", "", "Root directory for per-request workspaces (overrides config)")
	cmd.Flags().StringVar(&ytDlpFlag, "yt-dlp", "", "Path to the yt-dlp executable (overrides config)")
	cmd.Flags().IntVar(&timeoutFlag, "timeout", config.DefaultDownloadTimeoutSec, "Per-attempt download timeout in seconds (overrides config)")
	cmd.Flags().IntVar(&maxSizeFlag, "max-size", config.DefaultMaxFileSizeMB, "Size in MB above which a reduced-quality retry is made, 0 disables (overrides config)")
	cmd.Flags().IntVarP(&concurrencyFlag, "concurrency", "c", config.DefaultMaxConcurrentDownloads, "Maximum yt-dlp processes at once (overrides config)")
}

func applyDownloadFlags(cmd *cobra.Command, flags *config.CliFlags) {
	if changed(cmd, "workspace") {
		flags.WorkspaceRoot = &workspaceFlag
	}
	if changed(cmd, "yt-dlp") {
		flags.YtDlpPath = &ytDlpFlag
	}
	if changed(cmd, "timeout") {
		flags.DownloadTimeoutSec = &timeoutFlag
	}
	if changed(cmd, "max-size") {
		flags.MaxFileSizeMB = &maxSizeFlag
	}
	if changed(cmd, "concurrency") {
		flags.MaxConcurrentDownloads = &concurrencyFlag
	}
}

func newDownloader(cfg models.Config, workspaces *workspace.Manager) *downloader.Downloader {
	return downloader.NewDownloader(downloader.Options{
		Runner:        downloader.NewYtDlpRunner(cfg.YtDlpPath),
		Workspaces:    workspaces,
		Timeout:       cfg.DownloadTimeout(),
		MaxFileSize:   cfg.MaxFileSizeBytes(),
		ReducedHeight: cfg.ReducedQualityHeight,
		MaxConcurrent: int64(cfg.MaxConcurrentDownloads),
	})
}

// checkYtDlp warns when the executable cannot be found. Downloads then fail
// individually with the spawn error.
func checkYtDlp(path string) {
	resolved, err := exec.LookPath(path)
	if err != nil {
		log.WithError(err).Warnf("yt-dlp executable %q not found, every download will fail until it is installed", path)
		return
	}
	log.Debugf("Using yt-dlp at %s", resolved)
}
