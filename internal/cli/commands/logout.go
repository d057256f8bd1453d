package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/authcenter/authctl/internal/cli/client"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd(g *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and remove stored tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, g, func(ctx context.Context, s *session) error {
				resp, err := s.client.Logout(ctx)
				switch {
				case errors.Is(err, client.ErrNotAuthenticated):
					fmt.Fprintln(s.out, "Not logged in, local session cleared")
					return nil
				case err != nil:
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: server logout failed: %v\n", err)
				case !resp.OK():
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: server logout returned status %d\n", resp.Status)
				}

				fmt.Fprintln(s.out, "✓ Logged out")
				return nil
			})
		},
	}
}
