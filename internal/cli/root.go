package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/authcenter/authctl/internal/cli/commands"
	"github.com/authcenter/authctl/internal/logger"
)

const envLogLevel = "AUTHCTL_LOG_LEVEL"

var version = "dev" // Will be set during build

// NewRootCmd builds the authctl command tree
func NewRootCmd(version string) *cobra.Command {
	g := &commands.Globals{}

	rootCmd := &cobra.Command{
		Use:   "authctl",
		Short: "authctl - AuthCenter session client",
		Long: `authctl - Log in to an AuthCenter server and manage its users, roles and permissions.

Sessions are stored per server in the OS keyring (or the configured storage
backend) and are refreshed automatically when the access token expires.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Optional local overrides, e.g. AUTHCTL_IDENTIFIER for CI
			_ = godotenv.Load(".env.local")
			_ = godotenv.Load(".env")

			level := g.LogLevel
			if !cmd.Flags().Changed("log-level") {
				if env := os.Getenv(envLogLevel); env != "" {
					level = env
				}
			}
			g.Logger = logger.New(level, "console", cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().StringVarP(&g.Server, "server", "s", "", "Server URL or alias (overrides the selected server)")
	rootCmd.PersistentFlags().StringVarP(&g.Output, "output", "o", "json", "Output format: json or yaml")
	rootCmd.PersistentFlags().StringVar(&g.LogLevel, "log-level", "warn", "Log level (or set "+envLogLevel+")")

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "authctl version %s\n", version)
		},
	})

	// Add all subcommands
	rootCmd.AddCommand(commands.NewInitCmd())
	rootCmd.AddCommand(commands.NewSelectServerCmd())
	rootCmd.AddCommand(commands.NewRegisterCmd(g))
	rootCmd.AddCommand(commands.NewLoginCmd(g))
	rootCmd.AddCommand(commands.NewLogoutCmd(g))
	rootCmd.AddCommand(commands.NewTokenCmd(g))
	rootCmd.AddCommand(commands.NewKeepaliveCmd(g))
	rootCmd.AddCommand(commands.NewUsersCmd(g))
	rootCmd.AddCommand(commands.NewRolesCmd(g))
	rootCmd.AddCommand(commands.NewPermissionsCmd(g))

	return rootCmd
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	if err := NewRootCmd(version).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
