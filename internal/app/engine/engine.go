package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ghalamif/CalibraFlow/internal/adapters/observability"
	"github.com/ghalamif/CalibraFlow/internal/adapters/store"
	"github.com/ghalamif/CalibraFlow/internal/domain"
	"github.com/ghalamif/CalibraFlow/internal/ports"
)

var (
	ErrStopped        = errors.New("engine: stopped")
	ErrAlreadyStarted = errors.New("engine: already started")
)

// Remote is the part of the platform API the engine talks to.
type Remote interface {
	ports.SensorDirectory
	ports.Ingestion
	ports.AnomalyDetector
	ports.HistoryQuery
}

type Option func(*Engine)

// WithArchive forwards every simulated reading to the archive.
func WithArchive(a ports.ReadingArchive) Option {
	return func(e *Engine) { e.archive = a }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithObservability(obs ports.Observability) Option {
	return func(e *Engine) { e.obs = obs }
}

// Status is a point-in-time view of the engine for presentation.
type Status struct {
	Running    bool      `json:"running"`
	Loading    bool      `json:"loading"`
	LastUpdate time.Time `json:"last_update"`
	LastError  string    `json:"last_error,omitempty"`
	Cycles     uint64    `json:"cycles"`
	Sensors    int       `json:"sensors"`
	Source     string    `json:"source"`
}

// Engine advances every known sensor on a fixed cadence and keeps the store
// in step with the platform. Remote calls run as independent tasks; their
// failures are logged and never roll back the local update.
type Engine struct {
	store   *store.TelemetryStore
	remote  Remote
	source  ports.ValueSource
	archive ports.ReadingArchive
	policy  ports.SyncPolicy
	obs     ports.Observability
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	tasks  sync.WaitGroup

	// gate guards store mutations; once stopped is set nothing writes.
	gate     sync.RWMutex
	stopped  bool
	started  bool
	loopDone chan struct{}

	statusMu   sync.Mutex
	loading    bool
	lastUpdate time.Time
	lastErr    error
	cycles     uint64
}

func New(st *store.TelemetryStore, remote Remote, src ports.ValueSource, pol ports.SyncPolicy, opts ...Option) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("telemetry store is required")
	}
	if remote == nil {
		return nil, fmt.Errorf("remote is required")
	}
	if src == nil {
		return nil, fmt.Errorf("value source is required")
	}
	pol.ApplyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		store:  st,
		remote: remote,
		source: src,
		policy: pol,
		obs:    observability.Nop{},
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// Start refreshes the sensor list and launches the ticker loop. A failed
// initial refresh is recorded in LastError; the loop still starts.
func (e *Engine) Start() error {
	e.gate.Lock()
	if e.stopped {
		e.gate.Unlock()
		return ErrStopped
	}
	if e.started {
		e.gate.Unlock()
		return ErrAlreadyStarted
	}
	e.started = true
	e.loopDone = make(chan struct{})
	e.gate.Unlock()

	if err := e.RefreshSensors(e.ctx); err != nil && !errors.Is(err, ErrStopped) {
		e.obs.LogError("initial_refresh_failed", err)
	}

	go e.loop()
	return nil
}

func (e *Engine) loop() {
	defer close(e.loopDone)
	ticker := time.NewTicker(e.policy.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.RunCycle(e.ctx)
		}
	}
}

// Stop closes the write gate, cancels the loop and in-flight tasks and waits
// for them. No store mutation happens after Stop returns.
func (e *Engine) Stop(ctx context.Context) error {
	e.gate.Lock()
	alreadyStopped := e.stopped
	e.stopped = true
	loopDone := e.loopDone
	e.gate.Unlock()

	e.cancel()
	if alreadyStopped {
		return nil
	}

	done := make(chan struct{})
	go func() {
		if loopDone != nil {
			<-loopDone
		}
		e.tasks.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return e.source.Close()
}

// Wait blocks until the tasks spawned so far have finished.
func (e *Engine) Wait() {
	e.tasks.Wait()
}

// RunCycle performs one sync step for every sensor currently in the store.
// Sensors advance concurrently; RunCycle returns once every local update is
// applied, while the remote tasks they spawn keep running.
func (e *Engine) RunCycle(ctx context.Context) {
	e.obs.IncCounter("calibra_sync_cycles_total", 1)

	sensors := e.store.Sensors()
	var reads sync.WaitGroup
	for _, s := range sensors {
		s := s // per-iteration copy (go 1.21 loop semantics)
		if ctx.Err() != nil {
			break
		}
		reads.Add(1)
		if !e.spawn(func(ctx context.Context) {
			defer reads.Done()
			e.advance(ctx, s)
		}) {
			reads.Done()
		}
	}
	reads.Wait()
	if ctx.Err() != nil {
		return
	}

	e.statusMu.Lock()
	e.lastUpdate = e.now()
	e.cycles++
	e.statusMu.Unlock()
	e.obs.SetGauge("calibra_sensors_tracked", float64(len(sensors)))
}

func (e *Engine) advance(ctx context.Context, s domain.Sensor) {
	baseline := SafeBaseline(s.Value)
	raw, err := e.source.Next(ctx, s, baseline)
	if err != nil {
		e.obs.LogError("value_source_failed", err,
			ports.Field{Key: "sensor_id", Value: s.ID},
			ports.Field{Key: "source", Value: e.source.Name()})
		return
	}
	value := round2(raw)
	drift := ComputeDrift(baseline, value)
	ts := e.now()

	var updated bool
	if !e.mutate(func() { updated = e.store.UpdateSensor(s.ID, value, drift, ts) }) || !updated {
		return
	}

	e.spawn(func(ctx context.Context) { e.submit(ctx, s.ID, value) })
	e.spawn(func(ctx context.Context) { e.detect(ctx, s.ID, value) })
	e.spawn(func(ctx context.Context) { e.pullHistory(ctx, s) })
	if e.archive != nil {
		r := &domain.Reading{
			ID:         uuid.NewString(),
			SensorID:   s.ID,
			SensorName: s.Name,
			Value:      value,
			Unit:       s.Unit,
			Timestamp:  ts,
			Drift:      &drift,
		}
		e.spawn(func(context.Context) { e.forward(r) })
	}
}

func (e *Engine) submit(ctx context.Context, sensorID string, value float64) {
	if err := e.remote.SubmitReading(ctx, sensorID, value); err != nil {
		e.remoteFailed("submit_reading_failed", err, sensorID)
	}
}

func (e *Engine) detect(ctx context.Context, sensorID string, value float64) {
	det, err := e.remote.DetectAnomaly(ctx, sensorID, value)
	if err != nil {
		e.remoteFailed("detect_anomaly_failed", err, sensorID)
		return
	}
	if det.IsAnomaly {
		e.obs.IncCounter("calibra_anomalies_flagged_total", 1)
		e.obs.LogInfo("anomaly_detected",
			ports.Field{Key: "sensor_id", Value: sensorID},
			ports.Field{Key: "value", Value: value},
			ports.Field{Key: "confidence", Value: det.Confidence},
			ports.Field{Key: "score", Value: det.Score},
			ports.Field{Key: "model", Value: det.Model})
	}
}

func (e *Engine) pullHistory(ctx context.Context, s domain.Sensor) {
	hist, err := e.remote.GetHistory(ctx, s.Name)
	if err != nil {
		e.remoteFailed("history_fetch_failed", err, s.ID)
		return
	}
	if len(hist) == 0 {
		return
	}
	last := hist[len(hist)-1]
	last.SensorID = s.ID
	if last.SensorName == "" {
		last.SensorName = s.Name
	}
	e.mutate(func() { e.store.AppendReading(s.ID, last) })
}

func (e *Engine) forward(r *domain.Reading) {
	if err := e.archive.Publish(r); err != nil {
		e.obs.LogError("archive_publish_failed", err, ports.Field{Key: "sensor_id", Value: r.SensorID})
	}
}

func (e *Engine) remoteFailed(msg string, err error, sensorID string) {
	if errors.Is(err, context.Canceled) {
		return
	}
	e.obs.IncCounter("calibra_remote_failures_total", 1)
	e.obs.LogError(msg, err, ports.Field{Key: "sensor_id", Value: sensorID})
}

// RefreshSensors replaces the sensor list from the directory. On failure the
// previous list is kept and the error is retained until the next success.
func (e *Engine) RefreshSensors(ctx context.Context) error {
	e.setLoading(true)
	defer e.setLoading(false)

	list, err := e.remote.ListSensors(ctx)
	if err != nil {
		e.statusMu.Lock()
		e.lastErr = err
		e.statusMu.Unlock()
		e.remoteFailed("refresh_sensors_failed", err, "")
		return err
	}

	if !e.mutate(func() { e.store.ReplaceSensors(list) }) {
		return ErrStopped
	}

	e.statusMu.Lock()
	e.lastErr = nil
	e.lastUpdate = e.now()
	e.statusMu.Unlock()
	e.obs.SetGauge("calibra_sensors_tracked", float64(len(list)))
	e.obs.LogInfo("sensors_refreshed", ports.Field{Key: "count", Value: len(list)})
	return nil
}

// LastError returns the error of the most recent failed refresh, or nil.
func (e *Engine) LastError() error {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	return e.lastErr
}

func (e *Engine) Status() Status {
	e.gate.RLock()
	running := e.started && !e.stopped
	e.gate.RUnlock()

	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	st := Status{
		Running:    running,
		Loading:    e.loading,
		LastUpdate: e.lastUpdate,
		Cycles:     e.cycles,
		Sensors:    len(e.store.Sensors()),
		Source:     e.source.Name(),
	}
	if e.lastErr != nil {
		st.LastError = e.lastErr.Error()
	}
	return st
}

func (e *Engine) setLoading(v bool) {
	e.statusMu.Lock()
	e.loading = v
	e.statusMu.Unlock()
}

// mutate runs fn unless the engine has been stopped and reports whether it ran.
func (e *Engine) mutate(fn func()) bool {
	e.gate.RLock()
	defer e.gate.RUnlock()
	if e.stopped {
		return false
	}
	fn()
	return true
}

// spawn runs fn as a tracked task and reports whether it was started.
func (e *Engine) spawn(fn func(ctx context.Context)) bool {
	e.gate.RLock()
	if e.stopped {
		e.gate.RUnlock()
		return false
	}
	e.tasks.Add(1)
	e.gate.RUnlock()

	go func() {
		defer e.tasks.Done()
		fn(e.ctx)
	}()
	return true
}
