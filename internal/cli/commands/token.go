package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/authcenter/authctl/internal/cli/client"
	"github.com/authcenter/authctl/internal/cli/output"
)

// NewTokenCmd creates the token command group
func NewTokenCmd(g *Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Inspect and manage the stored session",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "refresh",
			Short: "Exchange the refresh token for a new token pair",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSession(cmd, g, func(ctx context.Context, s *session) error {
					resp, err := s.client.RefreshSession(ctx)
					if err != nil {
						return s.finish(resp, err)
					}
					fmt.Fprintln(s.out, "✓ Session refreshed")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "verify",
			Short: "Ask the server whether the access token is valid",
			RunE: call(g, func(ctx context.Context, c *client.Client, _ []string) (*client.Response, error) {
				return c.Verify(ctx)
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the stored session without contacting the server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSession(cmd, g, func(ctx context.Context, s *session) error {
					return output.Print(s.out, s.format, sessionStatus(ctx, s, time.Now()))
				})
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "Verify the session, refreshing or clearing it as needed",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSession(cmd, g, func(ctx context.Context, s *session) error {
					valid, err := s.client.CheckSession(ctx)
					if err != nil {
						return fmt.Errorf("failed to check session: %w", err)
					}
					if !valid {
						return errors.New("no valid session, run 'authctl login'")
					}
					fmt.Fprintln(s.out, "✓ Session is valid")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove the stored session without contacting the server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSession(cmd, g, func(ctx context.Context, s *session) error {
					if err := s.client.Store().Clear(ctx); err != nil {
						return fmt.Errorf("failed to clear session: %w", err)
					}
					fmt.Fprintln(s.out, "✓ Local session cleared")
					return nil
				})
			},
		},
	)

	return cmd
}

// statusView is the printable form of the stored session. Token values are never shown.
type statusView struct {
	Server        string         `json:"server"`
	Authenticated bool           `json:"authenticated"`
	State         string         `json:"state"`
	UserID        string         `json:"user_id,omitempty"`
	Claims        *client.Claims `json:"claims,omitempty"`
	Expired       bool           `json:"expired"`
	ExpiresIn     string         `json:"expires_in,omitempty"`
	ClaimsError   string         `json:"claims_error,omitempty"`
}

func sessionStatus(ctx context.Context, s *session, now time.Time) statusView {
	view := statusView{
		Server:        s.server.URL,
		Authenticated: s.client.HasToken(ctx),
		State:         s.client.State().String(),
		UserID:        s.client.UserID(),
	}
	if !view.Authenticated {
		return view
	}

	claims, err := s.client.Claims()
	if err != nil {
		view.ClaimsError = err.Error()
		return view
	}

	view.Claims = claims
	view.Expired = claims.Expired(now)
	if !claims.ExpiresAt.IsZero() && !view.Expired {
		view.ExpiresIn = claims.ExpiresAt.Sub(now).Round(time.Second).String()
	}
	return view
}
