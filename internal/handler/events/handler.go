package events

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/lab-cases/internal/model"
	"github.com/jwalitptl/lab-cases/pkg/httputil"
	"github.com/jwalitptl/lab-cases/pkg/logger"
	"github.com/jwalitptl/lab-cases/pkg/messaging"
)

const keepAliveInterval = 15 * time.Second

// Handler streams cases-updated signals as server-sent events. Events carry
// no case data; clients re-fetch their lists.
type Handler struct {
	broker    messaging.Broker
	logger    *logger.Logger
	keepAlive time.Duration
}

func NewHandler(broker messaging.Broker, l *logger.Logger) *Handler {
	if l == nil {
		l = logger.Nop()
	}
	return &Handler{broker: broker, logger: l, keepAlive: keepAliveInterval}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/events", h.Stream)
}

func (h *Handler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	msgs, err := h.broker.Subscribe(ctx, model.CasesUpdatedChannel)
	if err != nil {
		h.logger.Warn(err, "failed to subscribe to case events")
		httputil.RespondWithError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-msgs:
			if !ok {
				return false
			}
			c.SSEvent(model.CasesUpdatedChannel, string(msg))
			return true
		case <-ticker.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return false
			}
			return true
		}
	})
}
