package httpapi

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ghalamif/CalibraFlow/internal/ports"
)

const writeWait = 5 * time.Second

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{CheckOrigin: s.checkOrigin}
}

// checkOrigin mirrors the CORS policy: any origin when none are configured,
// otherwise only listed ones. Requests without an Origin header are not
// from browsers and pass.
func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 || slices.Contains(s.cfg.AllowedOrigins, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(s.cfg.AllowedOrigins, origin)
}

// streamSnapshots pushes the current snapshot on connect and again whenever
// the store version changes.
func (s *Server) streamSnapshots(c *gin.Context) {
	if !s.trackStream() {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	defer s.streams.Done()

	up := s.upgrader()
	conn, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	var sent uint64
	first := true
	for {
		if v := s.deps.Snapshots.Version(); first || v != sent {
			snap := s.deps.Snapshots.Snapshot()
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snap); err != nil {
				s.deps.Obs.LogError("snapshot_stream_write_failed", err,
					ports.Field{Key: "remote", Value: c.Request.RemoteAddr})
				return
			}
			sent = snap.Version
			first = false
		}

		select {
		case <-closed:
			return
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
