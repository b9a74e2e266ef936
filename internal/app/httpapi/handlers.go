package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ghalamif/CalibraFlow/internal/adapters/remote"
	"github.com/ghalamif/CalibraFlow/internal/app/anomalies"
	"github.com/ghalamif/CalibraFlow/internal/domain"
)

func (s *Server) getSnapshot(c *gin.Context) {
	ok(c, s.deps.Snapshots.Snapshot())
}

func (s *Server) getStatus(c *gin.Context) {
	ok(c, s.deps.Syncer.Status())
}

func (s *Server) refreshSensors(c *gin.Context) {
	if err := s.deps.Syncer.RefreshSensors(c.Request.Context()); err != nil {
		s.remoteError(c, err)
		return
	}
	ok(c, s.deps.Syncer.Status())
}

func (s *Server) getHistory(c *gin.Context) {
	id := c.Param("id")
	snap := s.deps.Snapshots.Snapshot()
	hist, known := snap.History[id]
	if _, isSensor := snap.Sensor(id); !isSensor && !known {
		fail(c, http.StatusNotFound, "unknown sensor")
		return
	}
	if hist == nil {
		hist = []domain.Reading{}
	}
	ok(c, hist)
}

func (s *Server) getSchedule(c *gin.Context) {
	plan, _ := s.deps.Planner.Plan(c.Param("id"))
	ok(c, plan)
}

func (s *Server) refreshSchedule(c *gin.Context) {
	plan, err := s.deps.Planner.Refresh(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.remoteError(c, err)
		return
	}
	ok(c, plan)
}

func (s *Server) selectSensor(c *gin.Context) {
	id := c.Param("id")
	if _, found := s.deps.Snapshots.Snapshot().Sensor(id); !found {
		fail(c, http.StatusNotFound, "unknown sensor")
		return
	}
	plan, err := s.deps.Planner.Select(c.Request.Context(), id)
	if err != nil {
		s.remoteError(c, err)
		return
	}
	ok(c, plan)
}

type anomalySummaryResponse struct {
	anomalies.Summary
	ResolutionRate float64 `json:"resolution_rate"`
}

func (s *Server) getAnomalySummary(c *gin.Context) {
	list, err := s.deps.Anomalies.ListAnomalies(c.Request.Context())
	if err != nil {
		s.remoteError(c, err)
		return
	}
	sum := anomalies.Summarize(list, s.now())
	ok(c, anomalySummaryResponse{Summary: sum, ResolutionRate: sum.ResolutionRate()})
}

func (s *Server) getCalibrations(c *gin.Context) {
	records, err := s.deps.Calibrations.ListCalibrations(c.Request.Context(), c.Query("sensor_id"))
	if err != nil {
		s.remoteError(c, err)
		return
	}
	ok(c, records)
}

// remoteError maps collaborator failures onto HTTP statuses; session errors
// are passed through for the presentation layer to handle.
func (s *Server) remoteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, remote.ErrSessionExpired), errors.Is(err, remote.ErrUnauthorized):
		fail(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, remote.ErrNotFound):
		fail(c, http.StatusNotFound, err.Error())
	default:
		fail(c, http.StatusBadGateway, err.Error())
	}
}
