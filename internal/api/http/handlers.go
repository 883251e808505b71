// Package http serves the local diagnostics endpoint: liveness, Prometheus
// metrics, and a snapshot of the agent's internal state. It binds to loopback
// only and never carries remote-control traffic.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/devicepilot/agent/internal/infrastructure/monitoring"
	"github.com/devicepilot/agent/internal/pagechange"
	"github.com/devicepilot/agent/internal/session"
)

// Handlers serves the diagnostics routes.
type Handlers struct {
	session   *session.Context
	scheduler *pagechange.Scheduler
	metrics   *monitoring.Metrics
	started   time.Time
}

// NewHandlers creates the diagnostics handler set. Scheduler and metrics may
// be nil; the affected fields are omitted.
func NewHandlers(sess *session.Context, scheduler *pagechange.Scheduler, metrics *monitoring.Metrics) *Handlers {
	return &Handlers{
		session:   sess,
		scheduler: scheduler,
		metrics:   metrics,
		started:   time.Now(),
	}
}

// Register attaches the diagnostics routes.
func (h *Handlers) Register(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/state", h.State)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
			h.metrics.Registry(),
			promhttp.HandlerOpts{},
		)))
	}
}

// Health reports liveness and uptime.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(h.started).String(),
	})
}

// State reports session counters and the capture scheduler's condition.
func (h *Handlers) State(c *gin.Context) {
	body := gin.H{
		"session": h.session.Stats(),
	}
	if h.scheduler != nil {
		body["scheduler"] = gin.H{
			"state":          h.scheduler.State().String(),
			"last_unchanged": h.scheduler.LastUnchanged(),
		}
	}
	c.JSON(http.StatusOK, body)
}
