package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StreamEvents pushes the requesting user's workflow events over SSE.
// Events for other users' projects are filtered out before encoding.
func (r *Router) StreamEvents(c *gin.Context) {
	userID := c.GetInt64("UserID")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	headers := c.Writer.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")

	c.Status(http.StatusOK)
	if _, err := fmt.Fprint(c.Writer, "retry: 3000\n\n"); err == nil {
		flusher.Flush()
	}

	subID, events := r.bus.Subscribe(16)
	defer r.bus.Unsubscribe(subID)

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(20 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case env, open := <-events:
			if !open {
				return
			}
			if env.UserID != userID {
				continue
			}
			encoded, err := json.Marshal(env.Event)
			if err != nil {
				r.logger.Warn("stream_event_encode_failed", zap.Error(err), zap.String("event_id", env.ID))
				continue
			}
			if _, err := fmt.Fprintf(c.Writer, "id: %s\ndata: %s\n\n", env.ID, encoded); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(c.Writer, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
