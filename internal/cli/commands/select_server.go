package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/authcenter/authctl/internal/cli/config"
	"github.com/authcenter/authctl/internal/cli/serverselect"
	"github.com/authcenter/authctl/internal/cli/userconfig"
)

// NewSelectServerCmd creates the select-server command
func NewSelectServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select-server [url-or-alias]",
		Short: "Remember which server later commands talk to",
		Long: `Remember which server later commands talk to.

Without an argument the configured servers are offered in a prompt.

Examples:
  $ authctl select-server
  $ authctl select-server https://auth.example.com
  $ authctl select-server production`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromCurrentDir()
			if err != nil {
				return fmt.Errorf("failed to load config: %w\nRun 'authctl init' to create a configuration file", err)
			}

			var server *config.Server
			if len(args) == 1 {
				server, err = cfg.FindServer(args[0])
			} else {
				server, err = serverselect.Prompt(cfg)
			}
			if err != nil {
				return err
			}

			if err := userconfig.SetSelectedServer(server.URL); err != nil {
				return fmt.Errorf("failed to save selected server: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Selected server: %s (%s)\n", server.Alias, server.URL)
			return nil
		},
	}
}
