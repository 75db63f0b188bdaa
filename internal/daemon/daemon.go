// Package daemon is the composition root: it builds every service in
// dependency order, owns their lifecycles, and runs the periodic event loop.
package daemon

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/ferdian/memoir/internal/config"
	"github.com/ferdian/memoir/internal/logger"
	"github.com/ferdian/memoir/internal/observability"
	"github.com/ferdian/memoir/internal/tracing"
	"github.com/ferdian/memoir/pkg/capture"
	"github.com/ferdian/memoir/pkg/events"
	"github.com/ferdian/memoir/pkg/gateway"
	"github.com/ferdian/memoir/pkg/janitor"
	"github.com/ferdian/memoir/pkg/memory"
	"github.com/ferdian/memoir/pkg/queue"
	"github.com/ferdian/memoir/pkg/search"
	"github.com/ferdian/memoir/pkg/session"
	"github.com/ferdian/memoir/pkg/vector"
	"github.com/ferdian/memoir/pkg/worker"
)

// Daemon holds every service of the memoir daemon.
type Daemon struct {
	config *config.Config
	loader *config.Loader
	logger *logger.Logger

	db          *sql.DB
	store       *memory.Store
	queueStore  *queue.Store
	notifier    *queue.Notifier
	broadcaster *events.Broadcaster
	tracker     *session.Tracker

	index    vector.Index
	embedder *vector.CachingEmbedder

	merger       *search.Merger
	orchestrator *search.Orchestrator

	pool          *worker.Pool
	limiter       *gateway.RateLimiter
	gatewayServer *gateway.Server
	janitor       *janitor.Janitor
	watcher       *config.Watcher

	eventLoop *EventLoop
	lifecycle *LifecycleManager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime time.Time
	running   bool
	mu        sync.RWMutex

	tracingEnabled bool
}

// New builds the daemon. Construction follows dependency order: storage
// first, then the services layered on it. A failed migration is fatal here;
// the daemon never serves against a half-migrated database. The loader may
// be nil, which disables config hot reload.
func New(cfg *config.Config, loader *config.Loader, log *logger.Logger) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	observability.EnsureRegistered()

	tracingEnabled := true
	if err := tracing.InitOpenTelemetry("memoir-daemon"); err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
		tracingEnabled = false
	}

	d := &Daemon{
		config:         cfg,
		loader:         loader,
		logger:         log,
		ctx:            ctx,
		cancel:         cancel,
		tracingEnabled: tracingEnabled,
	}

	if err := d.initialize(); err != nil {
		cancel()
		if d.tracingEnabled {
			_ = tracing.ShutdownOpenTelemetry(context.Background())
			d.tracingEnabled = false
		}
		if d.db != nil {
			d.db.Close()
		}
		return nil, err
	}

	d.eventLoop = NewEventLoop(d)
	d.lifecycle = NewLifecycleManager(d)

	return d, nil
}

func (d *Daemon) initialize() error {
	zl := d.logger.GetZerolog()

	db, err := memory.Open(filepath.Join(d.config.DataDir, "memoir.db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	d.db = db

	if err := memory.Migrate(db, zl); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	d.logger.Info().Msg("Database ready")

	d.store = memory.NewStore(db, zl)
	d.queueStore = queue.NewStore(db, zl)
	d.notifier = queue.NewNotifier()
	d.broadcaster = events.NewBroadcaster(zl)
	d.tracker = session.NewTracker(d.store, d.queueStore, d.broadcaster, zl)
	d.logger.Info().Msg("Storage layer initialized")

	if err := d.initializeIndex(); err != nil {
		return fmt.Errorf("failed to initialize vector index: %w", err)
	}

	summarizer, err := worker.NewSummarizer(d.config.Summarizer.Provider,
		d.config.Summarizer.APIKey, d.config.Summarizer.Model)
	if err != nil {
		return fmt.Errorf("failed to create summarizer: %w", err)
	}
	d.logger.Info().Str("provider", summarizer.Name()).Msg("Summarizer initialized")

	strategies := []search.Strategy{search.NewLexicalStrategy(d.store)}
	if d.config.Vector.Index != "disabled" {
		strategies = append(strategies, search.NewVectorStrategy(d.index))
	}
	timeout := time.Duration(d.config.Search.StrategyTimeoutMS) * time.Millisecond
	d.merger = search.NewMerger(strategies, d.config.Search.Weights, timeout, zl)
	d.orchestrator = search.NewOrchestrator(d.merger, d.store, d.config.Search.SnippetLength, zl)
	d.logger.Info().Int("strategies", len(strategies)).Msg("Search initialized")

	d.pool = worker.NewPool(d.store, d.queueStore, d.notifier, summarizer, d.index, d.tracker, zl)
	d.logger.Info().Msg("Worker pool initialized")

	validator, err := capture.NewValidator()
	if err != nil {
		return fmt.Errorf("failed to create event validator: %w", err)
	}

	d.limiter = gateway.NewRateLimiter(d.config.Gateway.RateLimitPerMin)
	d.gatewayServer = gateway.NewServer(gateway.Config{
		Host:         d.config.Gateway.Host,
		Port:         d.config.Gateway.Port,
		SharedSecret: d.config.Gateway.SharedSecret,
	}, validator, d.tracker, d.queueStore, d.notifier, d.orchestrator,
		d.broadcaster, d.pool, d.limiter, zl)
	d.logger.Info().Int("port", d.config.Gateway.Port).Msg("Gateway initialized")

	staleAfter := time.Duration(d.config.Janitor.StaleAfterMinutes) * time.Minute
	jan, err := janitor.New(d.config.Janitor.Schedule, d.store, d.tracker, staleAfter, zl)
	if err != nil {
		return fmt.Errorf("failed to create janitor: %w", err)
	}
	d.janitor = jan
	d.logger.Info().Str("schedule", d.config.Janitor.Schedule).Msg("Janitor initialized")

	return nil
}

// initializeIndex selects the similarity backend from config. Disabled means
// the noop index; search then runs lexical-only.
func (d *Daemon) initializeIndex() error {
	zl := d.logger.GetZerolog()

	if d.config.Vector.Index == "disabled" {
		d.index = vector.NewNoopIndex()
		d.logger.Info().Msg("Vector index disabled")
		return nil
	}

	embedder := vector.NewOpenAIEmbedder(d.config.Vector.Embedding.APIKey, d.config.Vector.Embedding.Model)
	cached, err := vector.NewCachingEmbedder(embedder, d.config.Vector.Embedding.CacheSize)
	if err != nil {
		return fmt.Errorf("failed to create embedding cache: %w", err)
	}
	d.embedder = cached

	switch d.config.Vector.Index {
	case "sqlitevec":
		index, err := vector.NewSQLiteVecIndex(d.db, cached, zl)
		if err != nil {
			return err
		}
		d.index = index
	case "chromem":
		index, err := vector.NewChromemIndex(cached, zl)
		if err != nil {
			return err
		}
		d.index = index
	default:
		return fmt.Errorf("unknown vector index %q", d.config.Vector.Index)
	}

	d.logger.Info().Str("index", d.config.Vector.Index).Msg("Vector index initialized")
	return nil
}

// Start brings the daemon online: PID file, gateway, janitor, resumed
// sessions, the event loop, and the config watcher.
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	d.logger.Info().Msg("Starting memoir daemon")

	if err := d.lifecycle.Start(); err != nil {
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	if err := d.gatewayServer.Start(d.ctx); err != nil {
		return fmt.Errorf("failed to start gateway server: %w", err)
	}

	d.janitor.Start()

	d.resumePendingSessions()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.eventLoop.Run(d.ctx)
	}()

	if d.loader != nil {
		watcher, err := config.NewWatcher(d.loader, d.logger.GetZerolog(), d.applyConfig)
		if err != nil {
			d.logger.Warn().Err(err).Msg("Config watcher unavailable, hot reload disabled")
		} else {
			d.watcher = watcher
			d.logger.Info().Str("path", d.loader.GetConfigPath()).Msg("Config watcher started")
		}
	}

	d.logger.Info().Msg("Daemon started")
	return nil
}

// resumePendingSessions restarts processing for sessions that still had
// queued events when the previous run stopped.
func (d *Daemon) resumePendingSessions() {
	sessions, err := d.queueStore.SessionsWithPending(d.ctx)
	if err != nil {
		d.logger.Warn().Err(err).Msg("Failed to list sessions with pending events")
		return
	}
	for _, sessionID := range sessions {
		d.pool.StartSession(d.ctx, sessionID)
	}
	if len(sessions) > 0 {
		d.logger.Info().Int("sessions", len(sessions)).Msg("Resumed pending sessions")
	}
}

// applyConfig hot-applies the reloadable subset: merge weights and the
// ingest rate limit. Everything else takes effect on restart.
func (d *Daemon) applyConfig(cfg *config.Config) {
	d.merger.SetWeights(cfg.Search.Weights)
	d.limiter.SetLimit(cfg.Gateway.RateLimitPerMin)

	d.mu.Lock()
	d.config.Search.Weights = cfg.Search.Weights
	d.config.Gateway.RateLimitPerMin = cfg.Gateway.RateLimitPerMin
	d.mu.Unlock()

	d.logger.Info().Msg("Applied reloaded config")
}

// Stop shuts down gracefully, in reverse of startup: stop taking input,
// drain the workers, then release storage.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	d.logger.Info().Msg("Stopping memoir daemon")

	if d.watcher != nil {
		d.watcher.Stop()
	}

	if err := d.gatewayServer.Stop(5 * time.Second); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop gateway server")
	}

	d.janitor.Stop()
	d.pool.StopAll()

	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		d.logger.Warn().Msg("Timeout waiting for goroutines to stop")
	}

	if err := d.index.Close(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to close vector index")
	}
	if d.embedder != nil {
		d.embedder.Close()
	}

	if err := d.db.Close(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to close database")
	}

	if d.tracingEnabled {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := tracing.ShutdownOpenTelemetry(shutdownCtx); err != nil {
			d.logger.Error().Err(err).Msg("Failed to shutdown tracing")
		}
		cancel()
		d.tracingEnabled = false
	}

	if err := d.lifecycle.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	d.logger.Info().Msg("Daemon stopped")
	return nil
}

// Wait blocks until SIGINT or SIGTERM, then stops the daemon.
func (d *Daemon) Wait() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	d.logger.Info().Str("signal", sig.String()).Msg("Received signal")

	if err := d.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop daemon")
	}
}

// Status reports whether the daemon runs and for how long.
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{Running: d.running}
	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
	}
	return status
}

// Status represents daemon status
type Status struct {
	Running   bool
	Uptime    time.Duration
	StartTime time.Time
}

// GetConfig returns the daemon configuration
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}

// GetLogger returns the daemon logger
func (d *Daemon) GetLogger() *logger.Logger {
	return d.logger
}

// GetStore returns the observation store
func (d *Daemon) GetStore() *memory.Store {
	return d.store
}

// GetOrchestrator returns the search orchestrator
func (d *Daemon) GetOrchestrator() *search.Orchestrator {
	return d.orchestrator
}
