package cmd

import (
	"fmt"
	"net/http"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-media-bot/internal/api"
	"go-media-bot/internal/config"
	"go-media-bot/internal/models"
)

// cfgFile holds the path to the config file specified by the user
var cfgFile string

// logApiFlag holds the value of the --log-api flag
var logApiFlag bool

var (
	logLevel  string
	logFormat string
)

// globalConfig holds the loaded configuration
var globalConfig models.Config

// globalHttpTransport holds the HTTP transport for Bot API calls (base or logging-wrapped)
var globalHttpTransport http.RoundTripper

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "media-bot",
	Short: "A Telegram bot that downloads videos from links",
	Long: `media-bot accepts links from authorized Telegram users, downloads the
video with yt-dlp and sends the file back to the chat.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadGlobalConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Finalizers also run when a command fails, unlike PersistentPostRun.
	cobra.OnFinalize(api.CloseAllLoggingTransports)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultConfigFilePath, "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "Logging level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", config.DefaultLogFormat, "Logging format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&logApiFlag, "log-api", false, "Log Bot API requests/responses to ApiLogPath (overrides config)")
}

// loadGlobalConfig resolves the configuration once and sets up logging.
// Only flags the user actually set override the config file and environment.
func loadGlobalConfig(cmd *cobra.Command, args []string) error {
	// Honour --log-level while the config itself is being read.
	if err := initLogging(logLevel, logFormat); err != nil {
		return err
	}

	flags := config.CliFlags{}
	if changed(cmd, "config") {
		flags.ConfigFilePath = &cfgFile
	}
	if changed(cmd, "log-level") {
		flags.LogLevel = &logLevel
	}
	if changed(cmd, "log-format") {
		flags.LogFormat = &logFormat
	}
	if changed(cmd, "log-api") {
		flags.LogApiRequests = &logApiFlag
	}
	applyDownloadFlags(cmd, &flags)

	cfg, transport, err := config.Initialize(flags)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := initLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	globalConfig = cfg
	globalHttpTransport = transport
	log.Debugf("Configuration loaded: %+v", cfg.Redacted())
	return nil
}

func changed(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}
