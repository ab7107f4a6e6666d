package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/progress-dashboard/internal/service"
	appErrors "github.com/noah-isme/progress-dashboard/pkg/errors"
	"github.com/noah-isme/progress-dashboard/pkg/response"
)

type readiness interface {
	Ready() bool
}

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	ready   readiness
}

// NewMetricsHandler constructs a metrics handler.
func NewMetricsHandler(metrics *service.MetricsService, ready readiness) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, ready: ready}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with process liveness and counters.
func (h *MetricsHandler) Health(c *gin.Context) {
	response.OK(c, gin.H{"status": "ok", "metrics": h.metrics.Snapshot()})
}

// Ready reports whether progress events have been loaded.
func (h *MetricsHandler) Ready(c *gin.Context) {
	if h.ready == nil || !h.ready.Ready() {
		response.Error(c, appErrors.ErrStoreNotLoaded)
		return
	}
	response.OK(c, gin.H{"status": "ready"})
}
