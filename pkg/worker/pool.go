package worker

import (
	"context"
	"encoding/json"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/ferdian/memoir/pkg/capture"
	"github.com/ferdian/memoir/pkg/memory"
	"github.com/ferdian/memoir/pkg/queue"
	"github.com/ferdian/memoir/pkg/session"
	"github.com/ferdian/memoir/pkg/vector"
	"github.com/rs/zerolog"
)

// Pool supervises one processing goroutine per active session. Each
// goroutine drains that session's queue processor, summarizes events into
// observations, persists them, and feeds the similarity index. A failed
// message is logged and skipped; the loop never dies with the session.
type Pool struct {
	store      *memory.Store
	queueStore *queue.Store
	notifier   *queue.Notifier
	summarizer Summarizer
	index      vector.Index
	tracker    *session.Tracker
	logger     zerolog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewPool wires the worker pool.
func NewPool(store *memory.Store, queueStore *queue.Store, notifier *queue.Notifier,
	summarizer Summarizer, index vector.Index, tracker *session.Tracker, logger zerolog.Logger) *Pool {
	return &Pool{
		store:      store,
		queueStore: queueStore,
		notifier:   notifier,
		summarizer: summarizer,
		index:      index,
		tracker:    tracker,
		logger:     logger,
	}
}

// StartSession launches the session's processing goroutine if it is not
// already running.
func (p *Pool) StartSession(ctx context.Context, sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancels == nil {
		p.cancels = make(map[string]context.CancelFunc)
	}
	if _, running := p.cancels[sessionID]; running {
		return
	}

	sctx, cancel := context.WithCancel(ctx)
	p.cancels[sessionID] = cancel

	runID, _ := gonanoid.New(8)
	logger := p.logger.With().
		Str("session_id", sessionID).
		Str("run_id", runID).
		Logger()

	processor := queue.NewProcessor(sessionID, p.queueStore, p.notifier, logger)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			p.mu.Lock()
			delete(p.cancels, sessionID)
			p.mu.Unlock()
		}()

		logger.Debug().Msg("Session worker started")
		for msg := range processor.Run(sctx) {
			p.process(sctx, logger, msg)
		}
		logger.Debug().Msg("Session worker stopped")
	}()
}

// process handles one claimed message. Failures are logged and the message
// is skipped; with claim-and-delete semantics a skipped message is gone.
func (p *Pool) process(ctx context.Context, logger zerolog.Logger, msg queue.Message) {
	var ev capture.Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		logger.Error().Err(err).Int64("message_id", msg.ID).Msg("Skipping undecodable message")
		return
	}

	draft, err := p.summarizer.Summarize(ctx, &ev)
	if err != nil {
		logger.Warn().Err(err).Int64("message_id", msg.ID).Msg("Summarizer failed, skipping message")
		return
	}

	obs := &memory.Observation{
		SessionID:        ev.SessionID,
		Project:          ev.Project(),
		Type:             draft.Type,
		Title:            draft.Title,
		Subtitle:         draft.Subtitle,
		Facts:            draft.Facts,
		Narrative:        draft.Narrative,
		Concepts:         draft.Concepts,
		FilesRead:        draft.FilesRead,
		FilesModified:    draft.FilesModified,
		PromptTokens:     draft.PromptTokens,
		CompletionTokens: draft.CompletionTokens,
	}
	id, err := p.store.AddObservation(ctx, obs)
	if err != nil {
		logger.Error().Err(err).Int64("message_id", msg.ID).Msg("Failed to store observation, skipping")
		return
	}

	if err := p.index.Add(ctx, vector.Document{
		ObservationID: id,
		SessionID:     obs.SessionID,
		Project:       obs.Project,
		Type:          obs.Type,
		Text:          draft.EmbeddingText(),
		CreatedAt:     obs.CreatedAt,
	}); err != nil {
		// The observation is stored and findable lexically; index lag is
		// tolerable and logged, not fatal
		logger.Warn().Err(err).Int64("observation_id", id).Msg("Failed to index observation")
	}

	logger.Debug().
		Int64("observation_id", id).
		Str("type", obs.Type).
		Msg("Observation processed")

	p.tracker.PublishStatus(ctx)
}

// StopSession cancels one session's worker without touching the others.
func (p *Pool) StopSession(sessionID string) {
	p.mu.Lock()
	cancel, ok := p.cancels[sessionID]
	p.mu.Unlock()
	if ok {
		cancel()
	}
}

// Running reports whether the session currently has a worker.
func (p *Pool) Running(sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.cancels[sessionID]
	return ok
}

// StopAll cancels every worker and waits for them to exit.
func (p *Pool) StopAll() {
	p.mu.Lock()
	for _, cancel := range p.cancels {
		cancel()
	}
	p.mu.Unlock()
	p.wg.Wait()
}
