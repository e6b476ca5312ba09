package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"roadwatch-go/internal/models"
)

// SystemHandler handles system-related endpoints
type SystemHandler struct {
	WorkerID string
	started  time.Time
	runStats func() map[models.RunStatus]int
}

// NewSystemHandler creates a new system handler. runStats may be nil.
func NewSystemHandler(workerID string, runStats func() map[models.RunStatus]int) *SystemHandler {
	return &SystemHandler{
		WorkerID: workerID,
		started:  time.Now(),
		runStats: runStats,
	}
}

// @Summary Get system stats
// @Description Get process statistics and run counts by status
// @Tags system
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /system/stats [get]
func (h *SystemHandler) GetStats(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	runs := map[models.RunStatus]int{}
	if h.runStats != nil {
		runs = h.runStats()
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats": gin.H{
			"worker_id":      h.WorkerID,
			"uptime_seconds": int64(time.Since(h.started).Seconds()),
			"memory_mb":      m.Alloc / 1024 / 1024,
			"cpu_cores":      runtime.NumCPU(),
			"goroutines":     runtime.NumGoroutine(),
			"go_version":     runtime.Version(),
			"runs":           runs,
		},
		"timestamp": time.Now().Unix(),
	})
}
