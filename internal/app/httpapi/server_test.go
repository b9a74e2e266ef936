package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ghalamif/CalibraFlow/internal/adapters/remote"
	"github.com/ghalamif/CalibraFlow/internal/adapters/store"
	"github.com/ghalamif/CalibraFlow/internal/app/engine"
	"github.com/ghalamif/CalibraFlow/internal/app/schedule"
	"github.com/ghalamif/CalibraFlow/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSyncer struct {
	err       error
	refreshes int
}

func (s *stubSyncer) Status() engine.Status { return engine.Status{Running: true, Cycles: 3} }
func (s *stubSyncer) RefreshSensors(context.Context) error {
	s.refreshes++
	return s.err
}

type stubPlanner struct {
	plan     schedule.Plan
	err      error
	selected string
}

func (p *stubPlanner) Plan(id string) (schedule.Plan, bool) {
	plan := p.plan
	plan.SensorID = id
	return plan, true
}
func (p *stubPlanner) Refresh(_ context.Context, id string) (schedule.Plan, error) {
	plan, _ := p.Plan(id)
	return plan, p.err
}
func (p *stubPlanner) Select(ctx context.Context, id string) (schedule.Plan, error) {
	p.selected = id
	return p.Refresh(ctx, id)
}

type stubFeed struct {
	anomalies []domain.Anomaly
	err       error
}

func (f *stubFeed) ListAnomalies(context.Context) ([]domain.Anomaly, error) { return f.anomalies, f.err }
func (f *stubFeed) ListCalibrations(_ context.Context, id string) ([]domain.CalibrationRecord, error) {
	return []domain.CalibrationRecord{{ID: "1", SensorID: id, Method: "offset"}}, f.err
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type fixture struct {
	store   *store.TelemetryStore
	syncer  *stubSyncer
	planner *stubPlanner
	feed    *stubFeed
	server  *Server
}

func newFixture() *fixture {
	st := store.NewTelemetryStore(50)
	st.ReplaceSensors([]domain.Sensor{{ID: "1", Name: "Boiler", Value: 70}})
	st.AppendReading("1", domain.Reading{ID: "r1", SensorID: "1", Value: 70})

	f := &fixture{
		store:   st,
		syncer:  &stubSyncer{},
		planner: &stubPlanner{plan: schedule.Plan{Origin: domain.OriginLocal, Entries: []domain.ScheduleEntry{{Priority: domain.PriorityHigh}}}},
		feed:    &stubFeed{},
	}
	f.server = New(Config{PollInterval: 10 * time.Millisecond}, Deps{
		Snapshots:    st,
		Syncer:       f.syncer,
		Planner:      f.planner,
		Anomalies:    f.feed,
		Calibrations: f.feed,
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return rec, env
}

func TestSnapshotEndpoint(t *testing.T) {
	f := newFixture()
	rec, env := f.do(t, http.MethodGet, "/api/v1/snapshot")
	if rec.Code != http.StatusOK || env.Code != 0 {
		t.Fatalf("unexpected response %d %+v", rec.Code, env)
	}
	var snap store.Snapshot
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap.Sensors) != 1 || len(snap.History["1"]) != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	f := newFixture()
	if rec, _ := f.do(t, http.MethodGet, "/api/v1/sensors/1/history"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec, env := f.do(t, http.MethodGet, "/api/v1/sensors/404/history"); rec.Code != http.StatusNotFound || env.Code != http.StatusNotFound {
		t.Fatalf("expected 404 envelope, got %d %+v", rec.Code, env)
	}
}

func TestRefreshSensorsMapsErrors(t *testing.T) {
	f := newFixture()
	if rec, _ := f.do(t, http.MethodPost, "/api/v1/sensors/refresh"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	f.syncer.err = remote.ErrSessionExpired
	if rec, _ := f.do(t, http.MethodPost, "/api/v1/sensors/refresh"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired session, got %d", rec.Code)
	}

	f.syncer.err = errors.New("connection refused")
	if rec, _ := f.do(t, http.MethodPost, "/api/v1/sensors/refresh"); rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for remote failure, got %d", rec.Code)
	}
	if f.syncer.refreshes != 3 {
		t.Fatalf("expected 3 refreshes, got %d", f.syncer.refreshes)
	}
}

func TestScheduleEndpoints(t *testing.T) {
	f := newFixture()
	rec, env := f.do(t, http.MethodGet, "/api/v1/sensors/1/schedule")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var plan schedule.Plan
	if err := json.Unmarshal(env.Data, &plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if plan.SensorID != "1" || plan.Origin != domain.OriginLocal || len(plan.Entries) != 1 {
		t.Fatalf("unexpected plan %+v", plan)
	}

	if rec, _ := f.do(t, http.MethodPost, "/api/v1/sensors/1/select"); rec.Code != http.StatusOK || f.planner.selected != "1" {
		t.Fatalf("expected select to succeed, got %d (%q)", rec.Code, f.planner.selected)
	}
	if rec, _ := f.do(t, http.MethodPost, "/api/v1/sensors/9/select"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 selecting unknown sensor, got %d", rec.Code)
	}
	if rec, _ := f.do(t, http.MethodPost, "/api/v1/sensors/1/schedule/refresh"); rec.Code != http.StatusOK {
		t.Fatalf("expected refresh to succeed, got %d", rec.Code)
	}
}

func TestAnomalySummaryEndpoint(t *testing.T) {
	f := newFixture()
	f.server.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	f.feed.anomalies = []domain.Anomaly{
		{ID: "1", Severity: domain.SeverityCritical, Resolved: true, Timestamp: time.Date(2024, 5, 1, 11, 30, 0, 0, time.UTC)},
		{ID: "2", Severity: domain.SeverityLow},
	}

	rec, env := f.do(t, http.MethodGet, "/api/v1/anomalies/summary")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got anomalySummaryResponse
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if got.Total != 2 || got.Critical != 1 || got.LastHour != 1 || got.ResolutionRate != 0.5 {
		t.Fatalf("unexpected summary %+v", got)
	}
}

func TestCalibrationsEndpoint(t *testing.T) {
	f := newFixture()
	rec, env := f.do(t, http.MethodGet, "/api/v1/calibrations?sensor_id=4")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var records []domain.CalibrationRecord
	if err := json.Unmarshal(env.Data, &records); err != nil || len(records) != 1 || records[0].SensorID != "4" {
		t.Fatalf("unexpected records %+v (%v)", records, err)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture()
	if rec, _ := f.do(t, http.MethodGet, "/healthz"); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected healthz response %d %q", rec.Code, rec.Body.String())
	}
	if rec, _ := f.do(t, http.MethodGet, "/metrics"); rec.Code != http.StatusOK {
		t.Fatalf("expected metrics endpoint, got %d", rec.Code)
	}
}

func TestSnapshotStreamPushesOnChange(t *testing.T) {
	f := newFixture()
	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/snapshots", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first store.Snapshot
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read first snapshot: %v", err)
	}

	f.store.UpdateSensor("1", 71, 1.43, time.Now())

	var second store.Snapshot
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("read second snapshot: %v", err)
	}
	if second.Version <= first.Version {
		t.Fatalf("expected newer version, got %d after %d", second.Version, first.Version)
	}
	if s, _ := second.Sensor("1"); s.Value != 71 {
		t.Fatalf("expected updated value in pushed snapshot, got %v", s.Value)
	}
}

type countingSnapshots struct {
	*store.TelemetryStore
	mu    sync.Mutex
	polls int
}

func (c *countingSnapshots) Version() uint64 {
	c.mu.Lock()
	c.polls++
	c.mu.Unlock()
	return c.TelemetryStore.Version()
}

func (c *countingSnapshots) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.polls
}

func TestShutdownClosesSnapshotStreams(t *testing.T) {
	f := newFixture()
	snaps := &countingSnapshots{TelemetryStore: f.store}
	server := New(Config{PollInterval: 5 * time.Millisecond}, Deps{
		Snapshots:    snaps,
		Syncer:       f.syncer,
		Planner:      f.planner,
		Anomalies:    f.feed,
		Calibrations: f.feed,
	})
	srv := httptest.NewServer(server.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/snapshots"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first store.Snapshot
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read first snapshot: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("expected going-away close after shutdown, got %v", err)
	}

	after := snaps.count()
	time.Sleep(50 * time.Millisecond)
	if got := snaps.count(); got != after {
		t.Fatalf("stream kept polling after shutdown: %d -> %d", after, got)
	}

	if _, resp, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil {
		t.Fatalf("expected new streams to be refused after shutdown")
	} else if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for a stream opened after shutdown, got %v", resp)
	}
}

func TestSnapshotStreamChecksOrigin(t *testing.T) {
	f := newFixture()
	server := New(Config{AllowedOrigins: []string{"http://dashboard.local"}}, Deps{
		Snapshots:    f.store,
		Syncer:       f.syncer,
		Planner:      f.planner,
		Anomalies:    f.feed,
		Calibrations: f.feed,
	})
	srv := httptest.NewServer(server.Handler())
	defer srv.Close()
	defer server.Shutdown(context.Background())

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/snapshots"

	bad := http.Header{"Origin": []string{"http://evil.local"}}
	if _, resp, err := websocket.DefaultDialer.Dial(wsURL, bad); err == nil {
		t.Fatalf("expected foreign origin to be rejected")
	} else if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign origin, got %v", resp)
	}

	good := http.Header{"Origin": []string{"http://dashboard.local"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, good)
	if err != nil {
		t.Fatalf("dial with allowed origin: %v", err)
	}
	conn.Close()
}
