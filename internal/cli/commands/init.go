package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/authcenter/authctl/internal/cli/config"
)

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	var alias, apiPrefix string

	cmd := &cobra.Command{
		Use:   "init <server-url>",
		Short: "Add an AuthCenter server to authctl.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, args[0], alias, apiPrefix)
		},
	}

	cmd.Flags().StringVar(&alias, "alias", "", "Server alias (defaults to local, then server-N)")
	cmd.Flags().StringVar(&apiPrefix, "api-prefix", "", "API route prefix (default /api/v1)")

	return cmd
}

func runInit(cmd *cobra.Command, serverURL, alias, apiPrefix string) error {
	out := cmd.OutOrStdout()

	server := config.Server{
		URL:       strings.TrimRight(serverURL, "/"),
		APIPrefix: apiPrefix,
	}
	if err := server.Validate(); err != nil {
		return err
	}

	currentDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	configPath := filepath.Join(currentDir, config.ConfigFileName)

	var cfg *config.Config
	isNewConfig := false

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load existing config: %w", err)
		}
		fmt.Fprintf(out, "Found existing %s\n", config.ConfigFileName)
	} else {
		cfg = &config.Config{
			Servers: []config.Server{},
		}
		isNewConfig = true
	}

	if _, err := cfg.GetServerByURL(server.URL); err == nil {
		fmt.Fprintf(out, "Server %s already exists in %s\n", server.URL, config.ConfigFileName)
		return nil
	}

	server.Alias = alias
	if server.Alias == "" {
		if len(cfg.Servers) == 0 {
			server.Alias = "local"
		} else {
			server.Alias = fmt.Sprintf("server-%d", len(cfg.Servers)+1)
		}
	}
	if _, err := cfg.GetServerByAlias(server.Alias); err == nil {
		return fmt.Errorf("alias '%s' is already used in %s", server.Alias, config.ConfigFileName)
	}

	cfg.Servers = append(cfg.Servers, server)

	if err := config.Save(configPath, cfg); err != nil {
		return err
	}

	if isNewConfig {
		fmt.Fprintf(out, "✓ Created ./%s with server %s (%s)\n", config.ConfigFileName, server.URL, server.Alias)
	} else {
		fmt.Fprintf(out, "✓ Added server %s (%s) to ./%s\n", server.URL, server.Alias, config.ConfigFileName)
	}

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Run 'authctl register' to create an account, if needed")
	fmt.Fprintln(out, "  2. Run 'authctl login' to authenticate")

	return nil
}
