// Package janitor runs periodic maintenance: completing sessions that went
// idle without a session_end event and keeping the FTS index compact.
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/ferdian/memoir/pkg/memory"
	"github.com/ferdian/memoir/pkg/session"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Janitor sweeps on a cron schedule. Stale sessions are completed through
// the tracker so the transition and status broadcasts stay paired.
type Janitor struct {
	store      *memory.Store
	tracker    *session.Tracker
	staleAfter time.Duration
	logger     zerolog.Logger

	cron    *cron.Cron
	entryID cron.EntryID
}

// New parses the schedule ("@every 5m" or a standard cron expression) and
// prepares the sweep. An invalid schedule is a construction error so the
// daemon fails fast.
func New(schedule string, store *memory.Store, tracker *session.Tracker,
	staleAfter time.Duration, logger zerolog.Logger) (*Janitor, error) {

	if staleAfter <= 0 {
		staleAfter = 2 * time.Hour
	}

	j := &Janitor{
		store:      store,
		tracker:    tracker,
		staleAfter: staleAfter,
		logger:     logger,
		cron:       cron.New(),
	}

	entryID, err := j.cron.AddFunc(schedule, j.sweep)
	if err != nil {
		return nil, fmt.Errorf("failed to parse janitor schedule %q: %w", schedule, err)
	}
	j.entryID = entryID
	return j, nil
}

// Start begins scheduled sweeps.
func (j *Janitor) Start() {
	j.cron.Start()
	j.logger.Info().Dur("stale_after", j.staleAfter).Msg("Janitor started")
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.logger.Info().Msg("Janitor stopped")
}

// sweep is one maintenance pass. Exported behavior is through Sweep for
// tests and the CLI.
func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := j.Sweep(ctx); err != nil {
		j.logger.Warn().Err(err).Msg("Janitor sweep failed")
	}
}

// Sweep completes stale active sessions and optimizes the FTS index.
func (j *Janitor) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-j.staleAfter)

	stale, err := j.store.StaleActiveSessions(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to find stale sessions: %w", err)
	}

	for _, sessionID := range stale {
		if err := j.tracker.Complete(ctx, sessionID); err != nil {
			j.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to complete stale session")
			continue
		}
		j.logger.Info().Str("session_id", sessionID).Msg("Completed stale session")
	}

	if err := j.store.OptimizeFTS(ctx); err != nil {
		return err
	}
	return nil
}
