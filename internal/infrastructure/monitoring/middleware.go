package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware records diagnostics endpoint traffic.
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		metrics.DiagRequests.WithLabelValues(path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.DiagDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}
}

// Timer measures one extraction pass. The backend is only known once the
// surface has been classified, so it arrives at Stop.
type Timer struct {
	start   time.Time
	metrics *Metrics
}

// NewTimer starts timing an extraction.
func NewTimer(metrics *Metrics) *Timer {
	return &Timer{start: time.Now(), metrics: metrics}
}

// Stop records the elapsed duration for the backend that served the pass.
func (t *Timer) Stop(backend string) {
	if t.metrics == nil {
		return
	}
	t.metrics.ObserveExtraction(backend, time.Since(t.start))
}
