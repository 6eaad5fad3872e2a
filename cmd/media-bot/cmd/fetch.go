package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/gosuri/uilive"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-media-bot/internal/extract"
	"go-media-bot/internal/helpers"
	"go-media-bot/internal/models"
	"go-media-bot/internal/paths"
	"go-media-bot/internal/workspace"
)

var (
	fetchOutputFlag      string
	fetchNamePatternFlag string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>...",
	Short: "Download links locally, without Telegram",
	Long: `Runs the same download pipeline the bot uses (quality fallback, timeout,
error classification) and copies each result into --output.

File names follow --name-pattern. Available tags: {title}, {id}, {host},
{quality}, {date}. Use '/' in the pattern to create subdirectories.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	addDownloadFlags(fetchCmd)
	fetchCmd.Flags().StringVarP(&fetchOutputFlag, "output", "o", ".", "Directory to copy downloaded files into")
	fetchCmd.Flags().StringVar(&fetchNamePatternFlag, "name-pattern", "{title}", "File name pattern, without extension")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg := globalConfig
	urls := extract.URLs(strings.Join(args, " "))
	if len(urls) == 0 {
		return fmt.Errorf("no URL found in arguments")
	}
	if _, err := paths.GeneratePath(fetchNamePatternFlag, nil); err != nil {
		return fmt.Errorf("invalid --name-pattern: %w", err)
	}
	if !helpers.CheckAndMakeDir(fetchOutputFlag) {
		return fmt.Errorf("cannot create output directory %s", fetchOutputFlag)
	}
	checkYtDlp(cfg.YtDlpPath)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	dl := newDownloader(cfg, workspace.NewManager(cfg.WorkspaceRoot))

	writer := uilive.New()
	writer.Out = cmd.OutOrStdout()
	writer.Start()
	defer writer.Stop()

	failed := 0
	for i, rawURL := range urls {
		prefix := fmt.Sprintf("[%d/%d]", i+1, len(urls))
		req := models.NewRequest(rawURL, 0)

		stopProgress := showProgress(writer, prefix, rawURL)
		res := dl.Download(ctx, req)
		stopProgress()

		if !res.Success() {
			failed++
			fmt.Fprintf(writer.Bypass(), "%s ❌ %s: %s\n", prefix, rawURL, res.Reason)
			continue
		}

		dest, err := saveResult(req, res)
		dl.Release(res)
		if err != nil {
			failed++
			log.WithError(err).Errorf("Could not save %s", res.FilePath)
			fmt.Fprintf(writer.Bypass(), "%s ❌ %s: could not save file\n", prefix, rawURL)
			continue
		}

		line := fmt.Sprintf("%s ✅ %s (%s, blake3 %s)", prefix, dest, helpers.BytesToSize(uint64(res.Size)), res.Checksum)
		if res.Retried {
			line += " [reduced quality]"
		}
		fmt.Fprintln(writer.Bypass(), line)
	}
	fmt.Fprintf(writer, "Done: %d of %d downloaded\n", len(urls)-failed, len(urls))

	if failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", failed, len(urls))
	}
	return nil
}

// saveResult copies a downloaded file into the output directory under its
// pattern-derived name.
func saveResult(req *models.Request, res *models.Result) (string, error) {
	name, err := paths.FileName(fetchNamePatternFlag, map[string]string{
		"title":   res.Title,
		"id":      req.ID,
		"host":    paths.HostOf(req.URL),
		"quality": string(res.Quality),
		"date":    req.StartedAt.Format("2006-01-02"),
	}, res.FilePath)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(fetchOutputFlag, name)
	if !helpers.CheckAndMakeDir(filepath.Dir(dest)) {
		return "", fmt.Errorf("cannot create directory for %s", dest)
	}
	return dest, helpers.CopyFile(res.FilePath, dest)
}

// showProgress redraws the live status line until the returned func is called.
func showProgress(writer *uilive.Writer, prefix, rawURL string) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		start := time.Now()
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			fmt.Fprintf(writer, "%s Downloading %s (%s)\n", prefix, rawURL, time.Since(start).Round(time.Second))
			select {
			case <-done:
				return
			case <-ticker.C:
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}
