package daemon

import (
	"context"
	"time"
)

// EventLoop runs periodic housekeeping: it keeps the queue depth and active
// session gauges in sync with storage so metrics survive daemon restarts.
type EventLoop struct {
	daemon *Daemon
}

// NewEventLoop creates a new event loop
func NewEventLoop(d *Daemon) *EventLoop {
	return &EventLoop{
		daemon: d,
	}
}

// Run runs the event loop until the context is canceled.
func (e *EventLoop) Run(ctx context.Context) {
	e.daemon.logger.Info().Msg("Event loop started")

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.daemon.logger.Info().Msg("Event loop stopping")
			return

		case <-ticker.C:
			e.syncGauges(ctx)
		}
	}
}

// syncGauges recomputes the observable state from storage. The tracker
// updates gauges on every transition; this pass corrects drift after
// crashes or missed events.
func (e *EventLoop) syncGauges(ctx context.Context) {
	d := e.daemon

	d.tracker.PublishStatus(ctx)

	depth, err := d.queueStore.Depth(ctx)
	if err != nil {
		d.logger.Warn().Err(err).Msg("Failed to read queue depth")
		return
	}

	sessions, err := d.queueStore.SessionsWithPending(ctx)
	if err != nil {
		d.logger.Warn().Err(err).Msg("Failed to list sessions with pending events")
		return
	}

	if depth > 0 {
		d.logger.Debug().
			Int("depth", depth).
			Int("sessions", len(sessions)).
			Msg("Queue stats")
	}

	// A session with a backlog but no running processor means a wakeup was
	// missed somewhere; restart it.
	for _, sessionID := range sessions {
		if !d.pool.Running(sessionID) {
			d.logger.Warn().Str("session_id", sessionID).Msg("Restarting stalled session processor")
			d.pool.StartSession(d.ctx, sessionID)
		}
	}
}
