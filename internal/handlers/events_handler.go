package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"reliefboard/internal/realtime"
)

type EventsHandler struct {
	hub    *realtime.Hub
	logger *zap.Logger
}

func NewEventsHandler(hub *realtime.Hub, logger *zap.Logger) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{hub: hub, logger: logger}
}

// @Summary      即時失效通知
// @Description  WebSocket；任務異動後推送 {"type":"invalidate","prefix":"tasks",...}
// @Tags         Events
// @Router       /ws [get]
func (h *EventsHandler) Serve(c *gin.Context) {
	if err := h.hub.ServeWS(c.Writer, c.Request); err != nil {
		// upgrader already wrote the HTTP error
		h.logger.Debug("[ws][upgrade][err]", zap.Error(err))
		if !c.Writer.Written() {
			c.Status(http.StatusBadRequest)
		}
	}
}
