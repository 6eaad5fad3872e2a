package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"go-media-bot/internal/api"
	"go-media-bot/internal/models"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Default values for configuration
const (
	DefaultConfigFilePath         = "config.toml"
	DefaultAllowedUsers           = ""
	DefaultDownloadTimeoutSec     = 120
	DefaultMaxFileSizeMB          = 49
	DefaultCooldownSec            = 5
	DefaultYtDlpPath              = "yt-dlp"
	DefaultMaxConcurrentDownloads = 2
	DefaultReducedQualityHeight   = 480
	DefaultLogLevel               = "info"
	DefaultLogFormat              = "text"
	DefaultLogApiRequests         = false
	DefaultApiLogPath             = "api.log"
)

// DefaultWorkspaceRoot is under the system temp directory.
func DefaultWorkspaceRoot() string {
	return filepath.Join(os.TempDir(), "media-bot")
}

// ErrMissingBotToken is the only configuration problem that stops startup.
var ErrMissingBotToken = errors.New("bot token is not configured (set BOT_TOKEN or BotToken in the config file)")

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"bottoken":               "BOT_TOKEN",
	"allowedusers":           "ALLOWED_USERS",
	"downloadtimeoutsec":     "DOWNLOAD_TIMEOUT",
	"maxfilesizemb":          "MAX_FILE_SIZE_MB",
	"cooldownsec":            "COOLDOWN_SEC",
	"workspaceroot":          "WORKSPACE_ROOT",
	"ytdlppath":              "YTDLP_PATH",
	"maxconcurrentdownloads": "MAX_CONCURRENT_DOWNLOADS",
	"reducedqualityheight":   "REDUCED_QUALITY_HEIGHT",
	"loglevel":               "LOG_LEVEL",
	"logformat":              "LOG_FORMAT",
	"logapirequests":         "LOG_API_REQUESTS",
	"apilogpath":             "API_LOG_PATH",
}

// setViperDefaults configures Viper with the application's default values.
func setViperDefaults(v *viper.Viper) {
	v.SetDefault("bottoken", "")
	v.SetDefault("allowedusers", DefaultAllowedUsers)
	v.SetDefault("downloadtimeoutsec", DefaultDownloadTimeoutSec)
	v.SetDefault("maxfilesizemb", DefaultMaxFileSizeMB)
	v.SetDefault("cooldownsec", DefaultCooldownSec)
	v.SetDefault("workspaceroot", DefaultWorkspaceRoot())
	v.SetDefault("ytdlppath", DefaultYtDlpPath)
	v.SetDefault("maxconcurrentdownloads", DefaultMaxConcurrentDownloads)
	v.SetDefault("reducedqualityheight", DefaultReducedQualityHeight)
	v.SetDefault("loglevel", DefaultLogLevel)
	v.SetDefault("logformat", DefaultLogFormat)
	v.SetDefault("logapirequests", DefaultLogApiRequests)
	v.SetDefault("apilogpath", DefaultApiLogPath)
}

// CliFlags holds pointers to values received from command-line flags.
// Nil fields indicate the flag was not provided by the user.
type CliFlags struct {
	ConfigFilePath *string
	LogLevel       *string // --log-level
	LogFormat      *string // --log-format
	LogApiRequests *bool   // --log-api

	WorkspaceRoot          *string // --workspace
	YtDlpPath              *string // --yt-dlp
	DownloadTimeoutSec     *int    // --timeout
	MaxFileSizeMB          *int    // --max-size
	MaxConcurrentDownloads *int    // --concurrency
}

// Initialize loads configuration based on defaults, config file, environment
// and flags. Precedence: Flags > Environment > Config File > Defaults.
// The returned transport logs Bot API traffic when LogApiRequests is set.
func Initialize(flags CliFlags) (models.Config, http.RoundTripper, error) {
	var finalCfg models.Config

	v := viper.New()
	setViperDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return models.Config{}, nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	actualConfigFilePath := DefaultConfigFilePath
	if flags.ConfigFilePath != nil {
		actualConfigFilePath = *flags.ConfigFilePath
		log.Debugf("[Initialize] Using config file path from CLI flag: %s", actualConfigFilePath)
	}
	v.SetConfigFile(actualConfigFilePath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			log.Debugf("[Initialize] Config file '%s' not found. Using defaults, environment and CLI flags only.", actualConfigFilePath)
		} else {
			log.Warnf("[Initialize] Error reading config file '%s': %v. Using defaults, environment and CLI flags only.", actualConfigFilePath, err)
		}
	} else {
		log.Infof("[Initialize] Read config file: %s", v.ConfigFileUsed())
	}

	if err := v.Unmarshal(&finalCfg); err != nil {
		return models.Config{}, nil, fmt.Errorf("failed to unmarshal config from viper: %w", err)
	}

	applyFlags(&finalCfg, flags)
	normalize(&finalCfg)

	var transport http.RoundTripper = http.DefaultTransport
	if finalCfg.LogApiRequests {
		loggingTransport, err := api.NewLoggingTransport(http.DefaultTransport, finalCfg.ApiLogPath)
		if err != nil {
			log.WithError(err).Error("Failed to initialize API logging transport, logging disabled.")
		} else {
			log.Infof("API logging to file: %s", finalCfg.ApiLogPath)
			transport = loggingTransport
		}
	}

	log.Debug("Configuration initialized successfully.")
	return finalCfg, transport, nil
}

func applyFlags(cfg *models.Config, flags CliFlags) {
	if flags.LogLevel != nil {
		cfg.LogLevel = *flags.LogLevel
	}
	if flags.LogFormat != nil {
		cfg.LogFormat = *flags.LogFormat
	}
	if flags.LogApiRequests != nil {
		cfg.LogApiRequests = *flags.LogApiRequests
	}
	if flags.WorkspaceRoot != nil {
		cfg.WorkspaceRoot = *flags.WorkspaceRoot
	}
	if flags.YtDlpPath != nil {
		cfg.YtDlpPath = *flags.YtDlpPath
	}
	if flags.DownloadTimeoutSec != nil {
		cfg.DownloadTimeoutSec = *flags.DownloadTimeoutSec
	}
	if flags.MaxFileSizeMB != nil {
		cfg.MaxFileSizeMB = *flags.MaxFileSizeMB
	}
	if flags.MaxConcurrentDownloads != nil {
		cfg.MaxConcurrentDownloads = *flags.MaxConcurrentDownloads
	}
}

// normalize replaces out-of-range values with defaults. Bad values are
// warned about, never fatal.
func normalize(cfg *models.Config) {
	if cfg.DownloadTimeoutSec <= 0 {
		log.Warnf("[Config] DownloadTimeoutSec %d is not positive, using %d", cfg.DownloadTimeoutSec, DefaultDownloadTimeoutSec)
		cfg.DownloadTimeoutSec = DefaultDownloadTimeoutSec
	}
	if cfg.MaxFileSizeMB < 0 {
		log.Warnf("[Config] MaxFileSizeMB %d is negative, using %d", cfg.MaxFileSizeMB, DefaultMaxFileSizeMB)
		cfg.MaxFileSizeMB = DefaultMaxFileSizeMB
	}
	if cfg.CooldownSec < 0 {
		log.Warnf("[Config] CooldownSec %d is negative, using 0", cfg.CooldownSec)
		cfg.CooldownSec = 0
	}
	if cfg.MaxConcurrentDownloads <= 0 {
		log.Warnf("[Config] MaxConcurrentDownloads %d is not positive, using %d", cfg.MaxConcurrentDownloads, DefaultMaxConcurrentDownloads)
		cfg.MaxConcurrentDownloads = DefaultMaxConcurrentDownloads
	}
	if cfg.ReducedQualityHeight <= 0 {
		cfg.ReducedQualityHeight = DefaultReducedQualityHeight
	}
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = DefaultWorkspaceRoot()
	}
	if cfg.YtDlpPath == "" {
		cfg.YtDlpPath = DefaultYtDlpPath
	}
	if cfg.ApiLogPath == "" {
		cfg.ApiLogPath = DefaultApiLogPath
	}
}

// Validate reports configuration that makes starting the bot impossible.
func Validate(cfg models.Config) error {
	if cfg.BotToken == "" {
		return ErrMissingBotToken
	}
	return nil
}
