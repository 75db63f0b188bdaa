package queue

import (
	"context"
	"errors"
	"time"

	"github.com/ferdian/memoir/internal/observability"
	"github.com/rs/zerolog"
)

// retryInterval is how long the processor backs off after a transient
// storage failure before claiming again.
const retryInterval = time.Second

// Claimer is the slice of the store the processor needs.
type Claimer interface {
	ClaimAndDelete(ctx context.Context, sessionID string) (*Message, error)
}

// Processor drains one session's queue in order and emits each claimed
// message on a channel. It blocks on the notifier when the queue is empty,
// subscribing before the final emptiness re-check so an enqueue racing the
// transition to idle still produces a wakeup.
type Processor struct {
	sessionID string
	claimer   Claimer
	notifier  *Notifier
	logger    zerolog.Logger
}

// NewProcessor creates a processor for one session.
func NewProcessor(sessionID string, claimer Claimer, notifier *Notifier, logger zerolog.Logger) *Processor {
	return &Processor{
		sessionID: sessionID,
		claimer:   claimer,
		notifier:  notifier,
		logger:    logger.With().Str("session_id", sessionID).Logger(),
	}
}

// Run starts the drain loop and returns the channel of claimed messages.
// The channel is closed when ctx is cancelled. Each message is delivered
// exactly once to the channel; a transient claim failure is retried after
// retryInterval without skipping or reordering.
func (p *Processor) Run(ctx context.Context) <-chan Message {
	out := make(chan Message)

	go func() {
		defer close(out)

		sub := p.notifier.Subscribe(p.sessionID)
		defer sub.Cancel()

		for {
			msg, err := p.claimer.ClaimAndDelete(ctx, p.sessionID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if errors.Is(err, ErrTransientStorage) {
					observability.RecordClaimRetry()
					p.logger.Warn().Err(err).Msg("Transient claim failure, retrying")
					select {
					case <-time.After(retryInterval):
						continue
					case <-ctx.Done():
						return
					}
				}
				p.logger.Error().Err(err).Msg("Claim failed")
				select {
				case <-time.After(retryInterval):
					continue
				case <-ctx.Done():
					return
				}
			}

			if msg != nil {
				select {
				case out <- *msg:
					continue
				case <-ctx.Done():
					return
				}
			}

			// Queue looked empty. The subscription was established before
			// this check, so an enqueue that landed since the claim has
			// already signalled sub and the wait below returns immediately.
			select {
			case <-sub.Ready():
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
