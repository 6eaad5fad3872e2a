package cmd

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-media-bot/internal/access"
	"go-media-bot/internal/bot"
	"go-media-bot/internal/config"
	"go-media-bot/internal/session"
	"go-media-bot/internal/workspace"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bot and serve messages until interrupted",
	Long: `Connects to Telegram with BotToken, clears workspaces left over from a
previous run and processes messages until SIGINT or SIGTERM. Running
downloads are cancelled on shutdown and their workspaces removed.`,
	Args: cobra.NoArgs,
	RunE: runBot,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addDownloadFlags(runCmd)
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg := globalConfig
	if err := config.Validate(cfg); err != nil {
		return err
	}
	checkYtDlp(cfg.YtDlpPath)

	workspaces := workspace.NewManager(cfg.WorkspaceRoot)
	workspaces.PurgeAll()

	gate := access.NewGate(cfg.AllowedUsers)
	gate.LogResolved()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := bot.NewBot(cfg.BotToken, &http.Client{Transport: globalHttpTransport}, bot.Dependencies{
		Gate:       gate,
		Tracker:    session.NewTracker(cfg.Cooldown()),
		Downloader: newDownloader(cfg, workspaces),
	})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"timeout":     cfg.DownloadTimeout(),
		"max_size_mb": cfg.MaxFileSizeMB,
		"cooldown":    cfg.Cooldown(),
		"concurrency": cfg.MaxConcurrentDownloads,
		"workspace":   workspaces.Root(),
	}).Info("Bot started")
	b.Run(ctx)
	log.Info("Bot stopped")
	return nil
}
