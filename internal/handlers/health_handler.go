package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	stats map[string]func() int
}

// NewHealthHandler reports each named gauge alongside the status.
func NewHealthHandler(stats map[string]func() int) *HealthHandler {
	return &HealthHandler{stats: stats}
}

// @Summary  Health check
// @Tags     System
// @Produce  json
// @Success  200  {object}  map[string]interface{}
// @Router   /healthz [get]
func (h *HealthHandler) Health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	for name, fn := range h.stats {
		body[name] = fn()
	}
	c.JSON(http.StatusOK, body)
}
