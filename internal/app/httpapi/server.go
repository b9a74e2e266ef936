package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ghalamif/CalibraFlow/internal/adapters/observability"
	"github.com/ghalamif/CalibraFlow/internal/adapters/store"
	"github.com/ghalamif/CalibraFlow/internal/app/engine"
	"github.com/ghalamif/CalibraFlow/internal/app/schedule"
	"github.com/ghalamif/CalibraFlow/internal/ports"
)

type Config struct {
	Addr           string
	AllowedOrigins []string
	// PollInterval is how often the snapshot stream checks the store version.
	PollInterval time.Duration
}

// Snapshots is the read side of the telemetry store.
type Snapshots interface {
	Snapshot() store.Snapshot
	Version() uint64
}

type Syncer interface {
	Status() engine.Status
	RefreshSensors(ctx context.Context) error
}

type Planner interface {
	Plan(sensorID string) (schedule.Plan, bool)
	Refresh(ctx context.Context, sensorID string) (schedule.Plan, error)
	Select(ctx context.Context, sensorID string) (schedule.Plan, error)
}

type Deps struct {
	Snapshots    Snapshots
	Syncer       Syncer
	Planner      Planner
	Anomalies    ports.AnomalyFeed
	Calibrations ports.CalibrationHistory
	Obs          ports.Observability
}

// Server is the read-mostly HTTP surface for presentation collaborators.
type Server struct {
	cfg  Config
	deps Deps
	now  func() time.Time
	srv  *http.Server

	// streams tracks websocket handlers; http.Server.Shutdown does not wait
	// for hijacked connections.
	streamMu sync.Mutex
	streams  sync.WaitGroup
	closing  bool
	done     chan struct{}
}

func New(cfg Config, deps Deps) *Server {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if deps.Obs == nil {
		deps.Obs = observability.Nop{}
	}
	return &Server{cfg: cfg, deps: deps, now: time.Now, done: make(chan struct{})}
}

func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())
	r.Use(cors.New(s.corsConfig()))

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws/snapshots", s.streamSnapshots)

	v1 := r.Group("/api/v1")
	v1.GET("/snapshot", s.getSnapshot)
	v1.GET("/status", s.getStatus)
	v1.POST("/sensors/refresh", s.refreshSensors)
	v1.GET("/sensors/:id/history", s.getHistory)
	v1.GET("/sensors/:id/schedule", s.getSchedule)
	v1.POST("/sensors/:id/schedule/refresh", s.refreshSchedule)
	v1.POST("/sensors/:id/select", s.selectSensor)
	v1.GET("/anomalies/summary", s.getAnomalySummary)
	v1.GET("/calibrations", s.getCalibrations)
	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if len(s.cfg.AllowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.cfg.AllowedOrigins
		cfg.AllowCredentials = true
	}
	return cfg
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.deps.Obs.LogError("http_request_failed", errors.New(http.StatusText(c.Writer.Status())),
				ports.Field{Key: "path", Value: c.FullPath()},
				ports.Field{Key: "status", Value: c.Writer.Status()},
				ports.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()})
		}
	}
}

// Start listens in the background; use Shutdown to stop.
func (s *Server) Start() {
	s.srv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := s.srv
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.deps.Obs.LogCritical("http_server_exited", err, ports.Field{Key: "addr", Value: s.cfg.Addr})
		}
	}()
	s.deps.Obs.LogInfo("http_server_listening", ports.Field{Key: "addr", Value: s.cfg.Addr})
}

// Shutdown stops the listener, closes open snapshot streams and waits for
// their handlers to return.
func (s *Server) Shutdown(ctx context.Context) error {
	s.streamMu.Lock()
	if !s.closing {
		s.closing = true
		close(s.done)
	}
	s.streamMu.Unlock()

	if s.srv != nil {
		if err := s.srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	drained := make(chan struct{})
	go func() {
		s.streams.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// trackStream registers a stream handler unless the server is shutting down.
func (s *Server) trackStream() bool {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	if s.closing {
		return false
	}
	s.streams.Add(1)
	return true
}
