package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/authcenter/authctl/internal/models"
)

// revokedRetention is how long revoked sessions are kept for auditing
const revokedRetention = 24 * time.Hour

// PurgeSessions deletes sessions that expired, or were revoked more than a
// day before now, and returns how many were removed
func PurgeSessions(db *gorm.DB, now time.Time) (int64, error) {
	result := db.
		Where("expires_at <= ? OR (revoked_at IS NOT NULL AND revoked_at <= ?)", now, now.Add(-revokedRetention)).
		Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// StartSessionCleanup runs PurgeSessions on schedule until ctx is cancelled
func StartSessionCleanup(ctx context.Context, db *gorm.DB, schedule string, logger zerolog.Logger) error {
	run := func() {
		removed, err := PurgeSessions(db, time.Now())
		if err != nil {
			logger.Error().Err(err).Msg("Session cleanup failed")
			return
		}
		if removed > 0 {
			logger.Info().Int64("removed", removed).Msg("Purged stale sessions")
		} else {
			logger.Debug().Msg("No stale sessions to purge")
		}
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(schedule, run); err != nil {
		return fmt.Errorf("invalid session cleanup schedule %q: %w", schedule, err)
	}

	logger.Info().Str("schedule", schedule).Msg("Starting session cleanup")

	// Run immediately on startup, then on schedule
	run()
	scheduler.Start()

	go func() {
		<-ctx.Done()
		<-scheduler.Stop().Done()
		logger.Debug().Msg("Session cleanup stopped")
	}()
	return nil
}
