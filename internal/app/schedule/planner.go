package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ghalamif/CalibraFlow/internal/adapters/observability"
	"github.com/ghalamif/CalibraFlow/internal/domain"
	"github.com/ghalamif/CalibraFlow/internal/ports"
)

var ErrStopped = errors.New("schedule: planner stopped")

// Plan is the published calibration schedule for one sensor.
type Plan struct {
	SensorID  string                 `json:"sensor_id"`
	Entries   []domain.ScheduleEntry `json:"entries"`
	Origin    domain.ScheduleOrigin  `json:"origin"`
	Forecast  *domain.DriftForecast  `json:"forecast,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
	LastError string                 `json:"last_error,omitempty"`
}

// Planner derives a local schedule from the drift forecast and lets a
// non-empty server schedule replace it. The selected sensor is refreshed on
// the analytics interval.
type Planner struct {
	forecasts ports.ForecastService
	schedules ports.ScheduleService
	policy    ports.SyncPolicy
	obs       ports.Observability
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	cron   *cron.Cron

	mu       sync.RWMutex
	plans    map[string]Plan
	gens     map[string]uint64
	selected string
	started  bool
	stopped  bool
}

func NewPlanner(fc ports.ForecastService, sc ports.ScheduleService, pol ports.SyncPolicy, obs ports.Observability) (*Planner, error) {
	if fc == nil || sc == nil {
		return nil, fmt.Errorf("forecast and schedule services are required")
	}
	if obs == nil {
		obs = observability.Nop{}
	}
	pol.ApplyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Planner{
		forecasts: fc,
		schedules: sc,
		policy:    pol,
		obs:       obs,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		plans:     make(map[string]Plan),
		gens:      make(map[string]uint64),
	}, nil
}

// Refresh fetches the forecast, publishes the locally derived plan and then
// lets the server schedule take precedence when it is non-empty. A forecast
// failure keeps the previously published plan and is returned.
func (p *Planner) Refresh(ctx context.Context, sensorID string) (Plan, error) {
	gen, ok := p.begin(sensorID)
	if !ok {
		return Plan{}, ErrStopped
	}
	p.obs.IncCounter("calibra_schedule_refresh_total", 1)

	fc, err := p.forecasts.GetDriftForecast(ctx, sensorID, p.policy.ForecastHorizon)
	if err != nil {
		p.obs.IncCounter("calibra_remote_failures_total", 1)
		p.obs.LogError("drift_forecast_failed", err, ports.Field{Key: "sensor_id", Value: sensorID})
		p.recordError(sensorID, gen, err)
		plan, _ := p.Plan(sensorID)
		return plan, err
	}

	now := p.now()
	local := Plan{
		SensorID:  sensorID,
		Entries:   Derive(fc, now, p.policy.Thresholds, p.policy.ForecastStep),
		Origin:    domain.OriginLocal,
		Forecast:  &fc,
		UpdatedAt: now,
	}
	p.publish(gen, local)

	server, err := p.schedules.GetCalibrationSchedule(ctx, sensorID)
	if err != nil {
		p.obs.IncCounter("calibra_remote_failures_total", 1)
		p.obs.LogError("server_schedule_failed", err, ports.Field{Key: "sensor_id", Value: sensorID})
		return local, nil
	}
	if len(server) == 0 {
		return local, nil
	}

	remote := local
	remote.Entries = server
	remote.Origin = domain.OriginRemote
	p.publish(gen, remote)
	return remote, nil
}

// Plan returns the last published plan for the sensor.
func (p *Planner) Plan(sensorID string) (Plan, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	plan, ok := p.plans[sensorID]
	if !ok {
		return Plan{SensorID: sensorID, Entries: []domain.ScheduleEntry{}, Origin: domain.OriginNone}, false
	}
	plan.Entries = append([]domain.ScheduleEntry(nil), plan.Entries...)
	return plan, true
}

// Select makes sensorID the target of the periodic refresh and refreshes it now.
func (p *Planner) Select(ctx context.Context, sensorID string) (Plan, error) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return Plan{}, ErrStopped
	}
	p.selected = sensorID
	p.mu.Unlock()
	return p.Refresh(ctx, sensorID)
}

func (p *Planner) Selected() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.selected
}

// Start schedules the periodic refresh of the selected sensor.
func (p *Planner) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}
	if p.started {
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	spec := fmt.Sprintf("@every %s", p.policy.AnalyticsInterval)
	if _, err := c.AddFunc(spec, p.tick); err != nil {
		return fmt.Errorf("schedule analytics refresh: %w", err)
	}
	c.Start()
	p.cron = c
	p.started = true
	return nil
}

func (p *Planner) tick() {
	id := p.Selected()
	if id == "" {
		return
	}
	_, _ = p.Refresh(p.ctx, id)
}

// Stop cancels in-flight refreshes and waits for a running tick to return.
// Nothing is published afterwards.
func (p *Planner) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = true
	c := p.cron
	p.mu.Unlock()

	p.cancel()
	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Planner) begin(sensorID string) (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return 0, false
	}
	p.gens[sensorID]++
	return p.gens[sensorID], true
}

// publish drops results of a refresh that a newer one has superseded.
func (p *Planner) publish(gen uint64, plan Plan) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || p.gens[plan.SensorID] != gen {
		return
	}
	p.plans[plan.SensorID] = plan
}

func (p *Planner) recordError(sensorID string, gen uint64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || p.gens[sensorID] != gen {
		return
	}
	plan, ok := p.plans[sensorID]
	if !ok {
		plan = Plan{SensorID: sensorID, Entries: []domain.ScheduleEntry{}, Origin: domain.OriginNone}
	}
	plan.LastError = err.Error()
	p.plans[sensorID] = plan
}
