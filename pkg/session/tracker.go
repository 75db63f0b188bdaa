// Package session owns the lifecycle of recorded sessions: creation on
// first sight, monotonic completion, and the broadcast invariant that
// every transition is immediately followed by a recomputed processing
// status with no interleaved event from this producer.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ferdian/memoir/internal/observability"
	"github.com/ferdian/memoir/pkg/capture"
	"github.com/ferdian/memoir/pkg/events"
	"github.com/ferdian/memoir/pkg/memory"
	"github.com/rs/zerolog"
)

// DepthReader reports total pending queue depth for status events.
type DepthReader interface {
	Depth(ctx context.Context) (int, error)
}

// Tracker serializes lifecycle transitions. All transition methods take
// one mutex, publish the transition event, then publish the recomputed
// status before releasing, so observers never see a transition without
// its status or another event wedged between them.
type Tracker struct {
	mu          sync.Mutex
	store       *memory.Store
	depth       DepthReader
	broadcaster *events.Broadcaster
	logger      zerolog.Logger
}

// NewTracker wires the lifecycle tracker.
func NewTracker(store *memory.Store, depth DepthReader, broadcaster *events.Broadcaster, logger zerolog.Logger) *Tracker {
	observability.EnsureRegistered()
	return &Tracker{
		store:       store,
		depth:       depth,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Observe ensures the event's session exists, creating it (and announcing
// session_started) on first sight. Returns the session row.
func (t *Tracker) Observe(ctx context.Context, ev *capture.Event) (*memory.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sess, err := t.store.GetSession(ctx, ev.SessionID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, memory.ErrSessionNotFound) {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}

	sess, err = t.store.CreateSession(ctx, ev.SessionID, ev.Project())
	if err != nil {
		return nil, err
	}

	t.logger.Info().
		Str("session_id", sess.SessionID).
		Str("project", sess.Project).
		Msg("Session started")

	t.broadcaster.Publish(events.KindSessionStarted, sess.SessionID, map[string]string{
		"project": sess.Project,
	})
	t.publishStatusLocked(ctx)
	return sess, nil
}

// RecordPrompt stores a prompt and announces it.
func (t *Tracker) RecordPrompt(ctx context.Context, sessionID, content string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.store.AddPrompt(ctx, sessionID, content); err != nil {
		return err
	}

	t.broadcaster.Publish(events.KindNewPrompt, sessionID, nil)
	t.publishStatusLocked(ctx)
	return nil
}

// ObservationQueued announces that an event was accepted into the queue.
func (t *Tracker) ObservationQueued(ctx context.Context, sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.broadcaster.Publish(events.KindObservationQueued, sessionID, nil)
	t.publishStatusLocked(ctx)
}

// Complete transitions the session to completed. Idempotent: repeat calls
// (and racing callers) broadcast the transition at most once.
func (t *Tracker) Complete(ctx context.Context, sessionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	transitioned, err := t.store.CompleteSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !transitioned {
		return nil
	}

	t.logger.Info().Str("session_id", sessionID).Msg("Session completed")

	t.broadcaster.Publish(events.KindSessionCompleted, sessionID, nil)
	t.publishStatusLocked(ctx)
	return nil
}

// PublishStatus recomputes and broadcasts the processing status on demand
// (ticker, post-processing updates).
func (t *Tracker) PublishStatus(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.publishStatusLocked(ctx)
}

func (t *Tracker) publishStatusLocked(ctx context.Context) {
	active, err := t.store.ActiveSessionCount(ctx)
	if err != nil {
		t.logger.Warn().Err(err).Msg("Failed to count active sessions for status")
		return
	}
	depth, err := t.depth.Depth(ctx)
	if err != nil {
		t.logger.Warn().Err(err).Msg("Failed to read queue depth for status")
		return
	}

	observability.SetActiveSessions(active)
	t.broadcaster.Publish(events.KindProcessingStatus, "", events.ProcessingStatus{
		ActiveSessions: active,
		PendingDepth:   depth,
	})
}
