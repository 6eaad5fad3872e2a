package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"go-media-bot/internal/workspace"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every workspace under WorkspaceRoot",
	Long: `Removes the workspace root recursively, reclaiming space left by an
unclean shutdown. Do not run while the bot is serving requests.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := workspace.NewManager(globalConfig.WorkspaceRoot)
		if !m.PurgeAll() {
			return fmt.Errorf("workspace root %s was not purged", m.Root())
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Purged %s\n", m.Root())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(purgeCmd)
	purgeCmd.Flags().StringVar(&workspaceFlag, "workspace", "", "Root directory for per-request workspaces (overrides config)")
}
