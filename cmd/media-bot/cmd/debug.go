package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

var showConfigFormat string

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.AddCommand(debugShowConfigCmd)
	debugShowConfigCmd.Flags().StringVar(&showConfigFormat, "format", "json", "Output format (json, toml)")
}

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Debugging utilities (not for general use)",
	Long:  `Contains helper commands for debugging application behavior, like inspecting configuration.`,
}

// --- debug show-config ---

var debugShowConfigCmd = &cobra.Command{
	Use:   "show-config",
	Short: "Print the fully loaded configuration",
	Long: `Loads configuration via flags, environment and config file (respecting
precedence) and prints the result. The bot token is redacted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := globalConfig.Redacted()
		out := cmd.OutOrStdout()

		switch strings.ToLower(showConfigFormat) {
		case "json":
			jsonBytes, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal config to JSON: %w", err)
			}
			fmt.Fprintln(out, string(jsonBytes))
		case "toml":
			if err := toml.NewEncoder(out).Encode(cfg); err != nil {
				return fmt.Errorf("failed to marshal config to TOML: %w", err)
			}
		default:
			return fmt.Errorf("unknown format %q (json, toml)", showConfigFormat)
		}
		return nil
	},
}
