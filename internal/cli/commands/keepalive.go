package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

const defaultKeepaliveSchedule = "@every 5m"

// NewKeepaliveCmd creates the keepalive command
func NewKeepaliveCmd(g *Globals) *cobra.Command {
	var schedule string

	cmd := &cobra.Command{
		Use:   "keepalive",
		Short: "Periodically verify the session so it is refreshed before it lapses",
		Long: `Check the stored session on a schedule until interrupted.

Each check verifies the access token and refreshes it when the server
reports it expired. The schedule accepts cron expressions and descriptors
such as "@every 5m" or "*/10 * * * *".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runKeepalive(ctx, cmd, g, schedule)
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", defaultKeepaliveSchedule, "Cron schedule for session checks")

	return cmd
}

func runKeepalive(ctx context.Context, cmd *cobra.Command, g *Globals, schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	s, err := openSession(ctx, cmd, g)
	if err != nil {
		return err
	}
	defer s.close()

	if !s.client.HasToken(ctx) {
		return fmt.Errorf("not logged in to %s, run 'authctl login'", s.server.URL)
	}

	logger := g.Logger.With().Str("server", s.server.URL).Logger()
	failed := make(chan struct{}, 1)

	check := func() {
		valid, err := s.client.CheckSession(ctx)
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("Session check failed, will retry on next tick")
		case !valid:
			logger.Error().Msg("Session is no longer valid")
			select {
			case failed <- struct{}{}:
			default:
			}
		default:
			logger.Debug().Msg("Session is valid")
		}
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(schedule, check); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	fmt.Fprintf(s.out, "Keeping session alive for %s (%s), press Ctrl+C to stop\n", s.server.URL, schedule)

	// Run immediately, then on schedule
	check()
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	select {
	case <-ctx.Done():
		fmt.Fprintln(s.out, "Stopped")
		return nil
	case <-failed:
		return fmt.Errorf("session expired, run 'authctl login'")
	}
}
