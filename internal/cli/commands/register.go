package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/authcenter/authctl/internal/cli/client"
)

// NewRegisterCmd creates the register command
func NewRegisterCmd(g *Globals) *cobra.Command {
	var req client.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account on the AuthCenter server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Password == "" {
				password, err := promptPassword(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				req.Password = password
			}

			return withSession(cmd, g, func(ctx context.Context, s *session) error {
				return s.finish(s.client.Register(ctx, req))
			})
		},
	}

	cmd.Flags().StringVar(&req.Username, "username", "", "Username")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&req.Password, "password", "", "Password (will prompt if not provided)")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}
