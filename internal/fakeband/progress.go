package fakeband

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fslongjin/bandsweep/internal/logx"
	"github.com/fslongjin/bandsweep/pkg/model"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// StreamProgress pushes progress frames for the band's in-flight deletion of
// the requested scope. It waits for the deletion to start, then sends a done
// frame once it finishes.
func (s *Server) StreamProgress(c *gin.Context) {
	if s.drain.IsDraining() {
		fail(c, http.StatusServiceUnavailable, "service is draining")
		return
	}
	if _, err := s.world.Bands(c.Query("access_token")); err != nil {
		failFor(c, err)
		return
	}
	kind, err := model.ParseScopeKind(c.Query("scope"))
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	scope, ok := scopeFromRequest(c, kind)
	if !ok {
		return
	}
	bandKey := c.Param("key")

	ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logx.WithComponent(c.Request.Context(), "fakeband").Warn("failed to upgrade progress stream", "error", err)
		return
	}
	defer ws.Close()

	release := s.drain.TrackStream()
	defer release()

	ticker := time.NewTicker(s.opts.ProgressInterval)
	defer ticker.Stop()
	idle := time.NewTimer(s.opts.StreamIdleTimeout)
	defer idle.Stop()

	started := false
	for {
		est, running := s.world.Progress(bandKey, scope)
		switch {
		case running:
			started = true
			if err := writeFrame(ws, model.ProgressMessage{Type: model.ProgressMessageUpdate, Current: est.Current, Total: est.Total}); err != nil {
				return
			}
		case started:
			_ = writeFrame(ws, model.ProgressMessage{Type: model.ProgressMessageDone})
			return
		}

		select {
		case <-c.Request.Context().Done():
			return
		case <-idle.C:
			if !started {
				_ = writeFrame(ws, model.ProgressMessage{Type: model.ProgressMessageError, Message: "no deletion in progress"})
				return
			}
		case <-ticker.C:
		}
	}
}

func writeFrame(ws *websocket.Conn, msg model.ProgressMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return ws.WriteMessage(websocket.TextMessage, data)
}
