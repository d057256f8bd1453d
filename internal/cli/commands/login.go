package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/authcenter/authctl/internal/cli/client"
)

const (
	envIdentifier = "AUTHCTL_IDENTIFIER"
	envPassword   = "AUTHCTL_PASSWORD"
)

// NewLoginCmd creates the login command
func NewLoginCmd(g *Globals) *cobra.Command {
	var identifier, password, loginType string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with an AuthCenter server",
		Long: `Authenticate with an AuthCenter server and store the session.

The identifier is an email, username or phone number depending on --type.
For phone logins the password is the verification code.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, g, identifier, password, loginType)
		},
	}

	cmd.Flags().StringVar(&identifier, "identifier", "", "Email, username or phone (or set "+envIdentifier+")")
	cmd.Flags().StringVar(&password, "password", "", "Password or code (or set "+envPassword+", will prompt if not provided)")
	cmd.Flags().StringVar(&loginType, "type", string(client.LoginEmail), "Login type: email, username, phone or auto")

	return cmd
}

func runLogin(cmd *cobra.Command, g *Globals, identifier, password, loginType string) error {
	// Check for environment variables (useful for CI/CD)
	if identifier == "" {
		identifier = os.Getenv(envIdentifier)
	}
	if password == "" {
		password = os.Getenv(envPassword)
	}

	if identifier == "" {
		return fmt.Errorf("identifier is required (use --identifier flag or %s env var)", envIdentifier)
	}

	if password == "" {
		var err error
		password, err = promptPassword(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
	}

	return withSession(cmd, g, func(ctx context.Context, s *session) error {
		fmt.Fprintf(cmd.ErrOrStderr(), "Logging in to %s (%s)...\n", s.server.Alias, s.server.URL)

		resp, err := s.client.Login(ctx, client.LoginRequest{
			Identifier: identifier,
			Password:   password,
			Type:       client.LoginType(loginType),
		})
		if err != nil || !resp.OK() {
			return s.finish(resp, err)
		}

		fmt.Fprintln(s.out, "✓ Login successful!")
		fmt.Fprintf(s.out, "  User ID: %s\n", s.client.UserID())
		return nil
	})
}

// promptPassword reads a password from the terminal without echo
func promptPassword(prompt io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("password is required in non-interactive mode (use --password flag or %s env var)", envPassword)
	}

	fmt.Fprint(prompt, "Password: ")
	bytePassword, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}
