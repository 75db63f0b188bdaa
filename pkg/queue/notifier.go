package queue

import "sync"

// Notifier delivers in-process enqueue wakeups per session. Readiness is
// level-triggered: a subscription's channel carries at most one pending
// signal, so many notifies while the consumer is busy collapse into one
// wakeup, and the consumer drains the store until empty after each.
type Notifier struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

// Subscription is one consumer's registration for a session's wakeups.
type Subscription struct {
	notifier  *Notifier
	sessionID string
	ready     chan struct{}
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscribe registers for wakeups on one session. The caller must Cancel
// the subscription when done; callers subscribe BEFORE re-checking the
// store so an enqueue between check and wait cannot be missed.
func (n *Notifier) Subscribe(sessionID string) *Subscription {
	sub := &Subscription{
		notifier:  n,
		sessionID: sessionID,
		ready:     make(chan struct{}, 1),
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs[sessionID] == nil {
		n.subs[sessionID] = make(map[*Subscription]struct{})
	}
	n.subs[sessionID][sub] = struct{}{}
	return sub
}

// Notify signals every subscriber of the session. Never blocks: a
// subscriber that already has a pending signal is left as-is.
func (n *Notifier) Notify(sessionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for sub := range n.subs[sessionID] {
		select {
		case sub.ready <- struct{}{}:
		default:
		}
	}
}

// Ready returns the channel that receives at most one pending wakeup.
func (s *Subscription) Ready() <-chan struct{} {
	return s.ready
}

// Cancel removes the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.notifier.mu.Lock()
	defer s.notifier.mu.Unlock()
	if subs := s.notifier.subs[s.sessionID]; subs != nil {
		delete(subs, s)
		if len(subs) == 0 {
			delete(s.notifier.subs, s.sessionID)
		}
	}
}
