package calibraflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/ghalamif/CalibraFlow/internal/adapters/journal"
	"github.com/ghalamif/CalibraFlow/internal/adapters/observability"
	"github.com/ghalamif/CalibraFlow/internal/adapters/opcua"
	"github.com/ghalamif/CalibraFlow/internal/adapters/queue"
	"github.com/ghalamif/CalibraFlow/internal/adapters/remote"
	"github.com/ghalamif/CalibraFlow/internal/adapters/simulation"
	"github.com/ghalamif/CalibraFlow/internal/adapters/sink"
	"github.com/ghalamif/CalibraFlow/internal/adapters/store"
	"github.com/ghalamif/CalibraFlow/internal/app/anomalies"
	"github.com/ghalamif/CalibraFlow/internal/app/engine"
	"github.com/ghalamif/CalibraFlow/internal/app/httpapi"
	"github.com/ghalamif/CalibraFlow/internal/app/logger"
	"github.com/ghalamif/CalibraFlow/internal/app/pipeline"
	"github.com/ghalamif/CalibraFlow/internal/app/schedule"
	"github.com/ghalamif/CalibraFlow/internal/ports"
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	remote        Remote
	source        ValueSource
	sink          ReadingSink
	journal       Journal
	queue         ReadingQueue
	observability Observability
	logger        *zap.Logger
}

// WithRemote replaces the HTTP platform client (useful for tests or other backends).
func WithRemote(r Remote) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.remote = r
	}
}

// WithValueSource injects a custom value source (Modbus, MQTT, replay files, etc.).
func WithValueSource(src ValueSource) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.source = src
	}
}

// WithReadingSink enables the archive with a custom sink instead of Postgres.
func WithReadingSink(s ReadingSink) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.sink = s
	}
}

// WithJournal lets callers bring their own journal implementation.
func WithJournal(j Journal) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.journal = j
	}
}

// WithReadingQueue injects a custom archive queue implementation.
func WithReadingQueue(q ReadingQueue) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.queue = q
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithLogger uses the given zap logger for the default Prometheus observability.
func WithLogger(l *zap.Logger) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.logger = l
	}
}

// Runtime wires the telemetry store, sync engine, schedule planner, optional
// reading archive and query API, and exposes lifecycle hooks for embedding
// CalibraFlow inside any Go service.
type Runtime struct {
	cfg      *Config
	obs      ports.Observability
	log      *zap.Logger
	store    *store.TelemetryStore
	remote   ports.Remote
	source   ports.ValueSource
	opcua    *opcua.Source
	engine   *engine.Engine
	planner  *schedule.Planner
	archiver *pipeline.Archiver
	db       *sql.DB
	api      *httpapi.Server
}

// NewRuntime bootstraps the default adapters (platform HTTP client, simulated
// or OPC UA value source, file journal + Postgres archive when configured,
// Prometheus/zap observability). RuntimeOption values override any of them.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	rt := &Runtime{cfg: cfg, log: overrides.logger}

	rt.obs = overrides.observability
	if rt.obs == nil {
		if rt.log == nil {
			l, err := logger.New(cfg.Log)
			if err != nil {
				return nil, fmt.Errorf("build logger: %w", err)
			}
			rt.log = l
		}
		rt.obs = observability.NewPromObs(rt.log)
	}

	pol := cfg.Sync
	pol.ApplyDefaults()
	rt.store = store.NewTelemetryStore(pol.HistoryCapacity)

	rt.remote = overrides.remote
	if rt.remote == nil {
		client, err := remote.NewClient(cfg.Remote, rt.obs)
		if err != nil {
			return nil, err
		}
		rt.remote = client
	}

	if err := rt.buildSource(overrides.source, pol.Perturbation); err != nil {
		return nil, err
	}
	if err := rt.buildArchive(overrides); err != nil {
		return nil, err
	}

	engineOpts := []engine.Option{engine.WithObservability(rt.obs)}
	if rt.archiver != nil {
		engineOpts = append(engineOpts, engine.WithArchive(rt.archiver))
	}
	eng, err := engine.New(rt.store, rt.remote, rt.source, pol, engineOpts...)
	if err != nil {
		return nil, err
	}
	rt.engine = eng

	planner, err := schedule.NewPlanner(rt.remote, rt.remote, pol, rt.obs)
	if err != nil {
		return nil, err
	}
	rt.planner = planner

	if !cfg.HTTP.Disabled {
		rt.api = httpapi.New(httpapi.Config{
			Addr:           cfg.HTTP.Addr,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
		}, httpapi.Deps{
			Snapshots:    rt.store,
			Syncer:       rt.engine,
			Planner:      rt.planner,
			Anomalies:    rt.remote,
			Calibrations: rt.remote,
			Obs:          rt.obs,
		})
	}
	return rt, nil
}

func (rt *Runtime) buildSource(override ValueSource, span float64) error {
	if override != nil {
		rt.source = override
		return nil
	}
	sim := simulation.NewSource(span)
	if rt.cfg.OPCUA == nil {
		rt.source = sim
		return nil
	}
	src, err := opcua.NewSource(*rt.cfg.OPCUA, sim, rt.obs)
	if err != nil {
		return fmt.Errorf("opcua source: %w", err)
	}
	rt.opcua = src
	rt.source = src
	return nil
}

// buildArchive wires journal → queue → sink when a sink is injected or a
// Postgres connection string is configured.
func (rt *Runtime) buildArchive(o runtimeOverrides) error {
	if o.sink == nil && !rt.cfg.Archive.Enabled() {
		return nil
	}

	pol := rt.cfg.Archive.Policy
	pol.ApplyDefaults()

	j := o.journal
	if j == nil {
		fj, err := journal.NewFileJournal(rt.cfg.Archive.JournalDir)
		if err != nil {
			return err
		}
		j = fj
	}

	q := o.queue
	if q == nil {
		q = queue.NewMemQueue(pol.MaxQueueLen)
	}

	snk := o.sink
	if snk == nil {
		db, err := sql.Open("postgres", rt.cfg.Archive.ConnString)
		if err != nil {
			return err
		}
		rt.db = db
		snk = sink.NewPostgresSink(db, rt.cfg.Archive.Table)
	}

	archiver, err := pipeline.NewArchiver(j, q, snk, pol, rt.obs)
	if err != nil {
		return err
	}
	rt.archiver = archiver
	return nil
}

// Start connects live sources, starts the archive, the sync engine, the
// periodic schedule refresh and the query API. It returns immediately; call
// Run to block on a context instead.
func (rt *Runtime) Start() error {
	if rt == nil {
		return fmt.Errorf("runtime is nil")
	}
	if rt.opcua != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := rt.opcua.Connect(ctx); err != nil {
			rt.obs.LogError("opcua_connect_failed", err)
		}
		cancel()
	}
	if rt.archiver != nil {
		if err := rt.archiver.Start(); err != nil {
			return err
		}
	}
	if err := rt.engine.Start(); err != nil {
		return err
	}
	if err := rt.planner.Start(); err != nil {
		return err
	}
	if rt.api != nil {
		rt.api.Start()
	}
	return nil
}

// Run starts the runtime and blocks until the provided context is cancelled.
// Upon cancellation it attempts a graceful shutdown.
func (rt *Runtime) Run(ctx context.Context) error {
	if err := rt.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return rt.Shutdown(shutdownCtx)
}

// Shutdown stops the query API, the planner, the engine and the archive, then
// closes the database connection.
func (rt *Runtime) Shutdown(ctx context.Context) error {
	var errs []error

	if rt.api != nil {
		if err := rt.api.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}
	if err := rt.planner.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := rt.engine.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if rt.archiver != nil {
		if err := rt.archiver.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if rt.log != nil {
		_ = rt.log.Sync()
	}

	return errors.Join(errs...)
}

// Snapshot returns an immutable copy of sensors and history.
func (rt *Runtime) Snapshot() Snapshot { return rt.store.Snapshot() }

// Status reports the sync engine state.
func (rt *Runtime) Status() Status { return rt.engine.Status() }

// RefreshSensors reloads the sensor list from the platform.
func (rt *Runtime) RefreshSensors(ctx context.Context) error {
	return rt.engine.RefreshSensors(ctx)
}

// Schedule returns the last published plan for a sensor.
func (rt *Runtime) Schedule(sensorID string) Plan {
	plan, _ := rt.planner.Plan(sensorID)
	return plan
}

// RefreshSchedule re-derives the plan for a sensor now.
func (rt *Runtime) RefreshSchedule(ctx context.Context, sensorID string) (Plan, error) {
	return rt.planner.Refresh(ctx, sensorID)
}

// Select makes the sensor the target of the periodic schedule refresh.
func (rt *Runtime) Select(ctx context.Context, sensorID string) (Plan, error) {
	return rt.planner.Select(ctx, sensorID)
}

// AnomalySummary fetches the anomaly list and aggregates it.
func (rt *Runtime) AnomalySummary(ctx context.Context) (AnomalySummary, error) {
	list, err := rt.remote.ListAnomalies(ctx)
	if err != nil {
		return AnomalySummary{}, err
	}
	return anomalies.Summarize(list, time.Now()), nil
}

// Calibrations returns the platform calibration history, optionally for one sensor.
func (rt *Runtime) Calibrations(ctx context.Context, sensorID string) ([]CalibrationRecord, error) {
	return rt.remote.ListCalibrations(ctx, sensorID)
}

// Handler exposes the query API for embedding in an existing server. It is
// nil when the API is disabled.
func (rt *Runtime) Handler() http.Handler {
	if rt.api == nil {
		return nil
	}
	return rt.api.Handler()
}
