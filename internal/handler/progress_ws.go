package handler

import (
	"net/http"
	"time"

	"mediadl/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamProgress handles GET /api/progress/:id/ws. It pushes every job
// snapshot until the job reaches a terminal state, then closes normally.
func (h *DownloadHandler) StreamProgress(c *gin.Context) {
	id := c.Param("id")
	updates, cancel, err := h.store.Subscribe(id)
	if err != nil {
		// evicted jobs may still be served from the mirror
		if job, ok := h.store.Get(id); ok {
			c.JSON(http.StatusOK, job)
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"status": "not_found"})
		return
	}
	defer cancel()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Logger.Warn("WebSocket upgrade failed", zap.String("job_id", id), zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Time{})

	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Logger.Debug("WebSocket read error", zap.String("job_id", id), zap.Error(err))
				}
				return
			}
		}
	}()

	for {
		select {
		case <-clientGone:
			return
		case job, ok := <-updates:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(job); err != nil {
				logger.Logger.Debug("WebSocket write failed", zap.String("job_id", id), zap.Error(err))
				return
			}
		}
	}
}
