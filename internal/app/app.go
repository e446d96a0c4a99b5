// Package app implements the application layer for concord.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/concord/internal/adapters/storage"
	"go.trai.ch/concord/internal/adapters/telemetry"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/core/ports"
	"go.trai.ch/concord/internal/engine/propagation"
	"go.trai.ch/concord/internal/engine/readpath"
	"go.trai.ch/concord/internal/engine/reconcile"
	"go.trai.ch/concord/internal/engine/versioning"
	"go.trai.ch/zerr"
)

// TracerName is the instrumentation name of every span concord starts.
const TracerName = "concord"

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	watcher      ports.ConfigWatcher
	opener       *storage.Opener
	logger       ports.Logger
	workDir      string

	mu sync.Mutex
	rt *runtime
}

// runtime is everything built from one loaded configuration.
type runtime struct {
	cfg      *domain.Config
	stores   *storage.Stores
	stamper  *versioning.Stamper
	coord    *propagation.Coordinator
	reader   *readpath.Reader
	job      *reconcile.Job
	metrics  *telemetry.Metrics
	recorder *telemetry.Recorder
	influx   *telemetry.InfluxSink
	tp       *sdktrace.TracerProvider
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	watcher ports.ConfigWatcher,
	opener *storage.Opener,
	log ports.Logger,
) *App {
	return &App{
		configLoader: loader,
		watcher:      watcher,
		opener:       opener,
		logger:       log,
		workDir:      ".",
	}
}

// WithWorkDir sets the directory configuration discovery starts from.
func (a *App) WithWorkDir(dir string) *App {
	a.workDir = dir
	return a
}

// Open loads the configuration and connects every store. Operations open
// the App on first use, so calling Open is only needed to fail early.
func (a *App) Open(ctx context.Context) error {
	_, err := a.session(ctx)
	return err
}

// Config returns the configuration the App was opened with.
func (a *App) Config(ctx context.Context) (*domain.Config, error) {
	rt, err := a.session(ctx)
	if err != nil {
		return nil, err
	}
	return rt.cfg, nil
}

func (a *App) session(ctx context.Context) (*runtime, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rt != nil {
		return a.rt, nil
	}

	cfg, err := a.configLoader.Load(a.workDir)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}

	if cfg.LogJSON {
		if j, ok := a.logger.(interface{ SetJSON(bool) }); ok {
			j.SetJSON(true)
		}
	}

	rt, err := a.build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.rt = rt
	return rt, nil
}

// build wires the engine around freshly opened stores.
func (a *App) build(ctx context.Context, cfg *domain.Config) (*runtime, error) {
	stores, err := a.opener.Open(ctx, cfg)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to open stores")
	}

	rt := &runtime{
		cfg:      cfg,
		stores:   stores,
		metrics:  telemetry.NewMetrics(),
		recorder: telemetry.NewRecorder(),
	}

	var tracer ports.Tracer = telemetry.NewNoOpTracer()
	if cfg.SpanMetrics {
		// Span durations feed the same registry as the events.
		rt.tp = telemetry.Setup(telemetry.NewBridge(rt.metrics))
		tracer = telemetry.NewOTelTracer(TracerName)
	}

	sinks := telemetry.Fanout{rt.metrics, rt.recorder, telemetry.NewLogSink(a.logger)}
	if cfg.Influx.Enabled() {
		rt.influx = telemetry.NewInfluxSink(cfg.Influx, a.logger)
		sinks = append(sinks, rt.influx)
	}

	s := cfg.Settings
	rt.stamper = versioning.NewStamper(stores.Canonical, s.VersionMode)
	rt.coord = propagation.NewCoordinator(
		stores.Derived,
		stores.Markers,
		stores.DeadLetters,
		stores.Discrepancies,
		sinks,
		a.logger,
		tracer,
		s.Propagation,
		s.TTL,
	)
	rt.reader = readpath.NewReader(
		stores.Canonical,
		stores.Repository(domain.RoleCache),
		stores.Markers,
		sinks,
		a.logger,
		tracer,
		s.TTL,
		s.Propagation.CallTimeout,
	)
	rt.job = reconcile.NewJob(
		stores.Canonical,
		stores.Derived,
		rt.coord,
		stores.Discrepancies,
		sinks,
		a.logger,
		tracer,
		s.Reconcile,
	)
	return rt, nil
}

// ApplySettings swaps the tunables that can change without reconnecting.
// Worker pool size, queue size and version mode need a restart.
func (a *App) ApplySettings(ctx context.Context, s domain.Settings) error {
	rt, err := a.session(ctx)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	cur := rt.cfg.Settings
	if s.Propagation.Workers != cur.Propagation.Workers ||
		s.Propagation.QueueSize != cur.Propagation.QueueSize ||
		s.VersionMode != cur.VersionMode {
		a.logger.Warn("worker pool, queue size and version mode changes take effect after a restart")
	}

	rt.coord.SetTTL(s.TTL)
	rt.reader.SetTTL(s.TTL)
	rt.job.SetPolicy(s.Reconcile)

	next := *rt.cfg
	next.Settings.TTL = s.TTL
	next.Settings.Reconcile = s.Reconcile
	rt.cfg = &next
	return nil
}

// Reload re-reads the configuration file at path and applies its settings.
// Store changes are reported but not applied.
func (a *App) Reload(ctx context.Context, path string) error {
	rt, err := a.session(ctx)
	if err != nil {
		return err
	}

	cfg, err := a.configLoader.LoadFile(path)
	if err != nil {
		return zerr.Wrap(err, "failed to reload configuration")
	}
	a.mu.Lock()
	current := rt.cfg.Stores
	a.mu.Unlock()
	for _, role := range domain.Roles {
		if cfg.Stores[role] != current[role] {
			a.logger.Warn(fmt.Sprintf("store configuration for %s changed, restart to reconnect", role))
		}
	}
	if err := a.ApplySettings(ctx, cfg.Settings); err != nil {
		return err
	}
	a.logger.Info(fmt.Sprintf("configuration reloaded from %s", path))
	return nil
}

// Close drains queued propagation, stops reconciliation and disconnects every store.
// An App that was never opened closes immediately.
func (a *App) Close(ctx context.Context) error {
	a.mu.Lock()
	rt := a.rt
	a.rt = nil
	a.mu.Unlock()
	if rt == nil {
		return nil
	}

	rt.job.Stop()
	errs := rt.coord.Close(ctx)
	if rt.influx != nil {
		errs = errors.Join(errs, rt.influx.Close())
	}
	if rt.tp != nil {
		errs = errors.Join(errs, rt.tp.Shutdown(ctx))
	}
	errs = errors.Join(errs, rt.stores.Close(ctx))
	return errs
}
