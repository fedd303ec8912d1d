package worker

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler exposes liveness, readiness and a metrics snapshot for
// the worker process.
func (w *Worker) HealthHandler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	// liveness: process is up
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	// readiness: worker loop is running
	r.GET("/readyz", func(c *gin.Context) {
		w.readyMu.RLock()
		ready := w.ready
		w.readyMu.RUnlock()

		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, w.metrics.Snapshot())
	})

	return r
}
