// Package gateway is the outward surface of the memoir daemon: the HTTP
// ingest endpoint the host assistant's hooks POST to, the search and
// timeline APIs, and a websocket stream of session events.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ferdian/memoir/internal/observability"
	"github.com/ferdian/memoir/pkg/capture"
	"github.com/ferdian/memoir/pkg/events"
	"github.com/ferdian/memoir/pkg/queue"
	"github.com/ferdian/memoir/pkg/search"
	"github.com/ferdian/memoir/pkg/session"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Workers is the slice of the worker pool the gateway drives.
type Workers interface {
	StartSession(ctx context.Context, sessionID string)
	StopSession(sessionID string)
}

// Config carries the gateway's listen and auth settings.
type Config struct {
	Host         string
	Port         int
	SharedSecret string
}

// Server wires the HTTP surface over the daemon's services.
type Server struct {
	cfg          Config
	sharedSecret string

	validator    *capture.Validator
	tracker      *session.Tracker
	queueStore   *queue.Store
	notifier     *queue.Notifier
	orchestrator *search.Orchestrator
	broadcaster  *events.Broadcaster
	workers      Workers
	limiter      *RateLimiter
	registry     *ClientRegistry
	logger       zerolog.Logger

	httpServer *http.Server
	upgrader   websocket.Upgrader
	baseCtx    context.Context
}

// NewServer assembles the gateway. All services are injected by the
// daemon; the server owns only the HTTP plumbing and the client registry.
func NewServer(cfg Config, validator *capture.Validator, tracker *session.Tracker,
	queueStore *queue.Store, notifier *queue.Notifier, orchestrator *search.Orchestrator,
	broadcaster *events.Broadcaster, workers Workers, limiter *RateLimiter,
	logger zerolog.Logger) *Server {

	observability.EnsureRegistered()
	return &Server{
		cfg:          cfg,
		sharedSecret: cfg.SharedSecret,
		validator:    validator,
		tracker:      tracker,
		queueStore:   queueStore,
		notifier:     notifier,
		orchestrator: orchestrator,
		broadcaster:  broadcaster,
		workers:      workers,
		limiter:      limiter,
		registry:     NewClientRegistry(),
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The daemon binds loopback by default; remote setups put a
			// reverse proxy in front
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler builds the route mux. Exposed for httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/events", s.requireAuth(s.handleEvents))
	mux.HandleFunc("/api/search", s.requireAuth(s.handleSearch))
	mux.HandleFunc("/api/timeline", s.requireAuth(s.handleTimeline))
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", observability.MetricsHandler())
	return mux
}

// Start begins serving. Non-blocking; errors after startup are logged.
func (s *Server) Start(ctx context.Context) error {
	s.baseCtx = ctx
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Gateway server stopped unexpectedly")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("Gateway listening")
	return nil
}

// Stop shuts down gracefully: stop accepting, drain in-flight requests
// within the timeout, then drop websocket clients and the rate limiter.
func (s *Server) Stop(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.registry.CloseAll()
	s.limiter.Stop()
	return err
}

// handleEvents is the ingest pipeline: rate limit, validate, track the
// session, durably enqueue, wake the processor, announce.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	addr, _, _ := net.SplitHostPort(r.RemoteAddr)
	if addr == "" {
		addr = r.RemoteAddr
	}
	if !s.limiter.Allow(addr) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	ev, err := s.validator.Validate(body)
	if err != nil {
		var verr *capture.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":  "invalid event",
				"issues": verr.Issues,
			})
			return
		}
		writeError(w, http.StatusBadRequest, "invalid event")
		return
	}

	ctx := r.Context()
	if _, err := s.tracker.Observe(ctx, ev); err != nil {
		s.logger.Error().Err(err).Str("session_id", ev.SessionID).Msg("Failed to observe session")
		writeError(w, http.StatusInternalServerError, "failed to track session")
		return
	}

	switch ev.Kind {
	case capture.KindSessionEnd:
		if err := s.tracker.Complete(ctx, ev.SessionID); err != nil {
			s.logger.Error().Err(err).Str("session_id", ev.SessionID).Msg("Failed to complete session")
			writeError(w, http.StatusInternalServerError, "failed to complete session")
			return
		}
		s.workers.StopSession(ev.SessionID)
		writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
		return

	case capture.KindSessionStart:
		s.workers.StartSession(s.baseContext(), ev.SessionID)
		writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
		return
	}

	if ev.Kind == capture.KindPrompt {
		if err := s.tracker.RecordPrompt(ctx, ev.SessionID, ev.Prompt); err != nil {
			s.logger.Warn().Err(err).Str("session_id", ev.SessionID).Msg("Failed to record prompt")
		}
	}

	if _, err := s.queueStore.Enqueue(ctx, ev.SessionID, json.RawMessage(body)); err != nil {
		s.logger.Error().Err(err).Str("session_id", ev.SessionID).Msg("Failed to enqueue event")
		writeError(w, http.StatusServiceUnavailable, "failed to enqueue event")
		return
	}
	s.notifier.Notify(ev.SessionID)
	s.workers.StartSession(s.baseContext(), ev.SessionID)
	s.tracker.ObservationQueued(ctx, ev.SessionID)

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var q search.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid query")
		return
	}

	result, err := s.orchestrator.Search(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	timeline, err := s.orchestrator.BuildTimeline(r.Context(),
		r.URL.Query().Get("project"), nil, nil, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build timeline")
		return
	}
	writeJSON(w, http.StatusOK, timeline)
}

// handleWebSocket upgrades and streams broadcaster events until the
// client disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(r) && r.URL.Query().Get("token") != s.sharedSecret {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	client := newClient(conn, r.RemoteAddr)
	s.registry.Add(client)
	s.logger.Debug().Str("client_id", client.ID).Msg("Websocket client connected")

	eventCh, unsubscribe := s.broadcaster.Subscribe()

	// Writer: broadcaster events to the socket
	go func() {
		for ev := range eventCh {
			if err := client.WriteJSON(ev); err != nil {
				client.Close()
				return
			}
		}
	}()

	// Reader: only to notice the disconnect
	go func() {
		defer func() {
			unsubscribe()
			s.registry.Remove(client.ID)
			client.Close()
			s.logger.Debug().Str("client_id", client.ID).Msg("Websocket client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"clients": s.registry.Count(),
	})
}

func (s *Server) baseContext() context.Context {
	if s.baseCtx != nil {
		return s.baseCtx
	}
	return context.Background()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
