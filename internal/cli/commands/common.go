package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/authcenter/authctl/internal/cli/auth"
	"github.com/authcenter/authctl/internal/cli/client"
	"github.com/authcenter/authctl/internal/cli/config"
	"github.com/authcenter/authctl/internal/cli/output"
	"github.com/authcenter/authctl/internal/cli/serverselect"
)

// Globals holds the persistent flags shared by every command
type Globals struct {
	Server   string
	Output   string
	LogLevel string
	Logger   zerolog.Logger
}

// session bundles what a command needs to talk to the selected server
type session struct {
	server *config.Server
	client *client.Client
	closer io.Closer
	format output.Format
	out    io.Writer
}

// openSession loads the config, resolves the server and opens its token store.
// Callers must call close when done.
func openSession(ctx context.Context, cmd *cobra.Command, g *Globals) (*session, error) {
	format, err := output.ParseFormat(g.Output)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w\nRun 'authctl init' to create a configuration file", err)
	}

	server, err := serverselect.ResolveServer(cfg, g.Server, g.Logger)
	if err != nil {
		return nil, err
	}
	if err := server.Validate(); err != nil {
		return nil, err
	}

	store, closer, err := auth.Open(ctx, cfg.Storage, server.URL, g.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open session storage: %w", err)
	}

	apiClient := client.New(server.URL, store,
		client.WithAPIPrefix(server.APIPrefix),
		client.WithLogger(g.Logger),
	)

	return &session{
		server: server,
		client: apiClient,
		closer: closer,
		format: format,
		out:    cmd.OutOrStdout(),
	}, nil
}

func (s *session) close() {
	_ = s.closer.Close()
}

// finish prints a call result and turns failures into a command error
func (s *session) finish(resp *client.Response, err error) error {
	if resp != nil {
		if printErr := output.PrintResponse(s.out, s.format, resp); printErr != nil {
			return printErr
		}
	}
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("server responded with status %d", resp.Status)
	}
	return nil
}

// withSession runs fn against an open session
func withSession(cmd *cobra.Command, g *Globals, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := openSession(ctx, cmd, g)
	if err != nil {
		return err
	}
	defer s.close()

	return fn(ctx, s)
}

// call is the common shape of pass-through commands: one client call, printed
func call(g *Globals, fn func(ctx context.Context, c *client.Client, args []string) (*client.Response, error)) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, g, func(ctx context.Context, s *session) error {
			return s.finish(fn(ctx, s.client, args))
		})
	}
}
