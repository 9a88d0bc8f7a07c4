package endpoint

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// Gauge reads one live value, such as open connections or busy transcode
// slots.
type Gauge func() int

// Metrics reports runtime memory and goroutine figures plus the given
// gauges. Counters and histograms are exported over OTLP instead.
func Metrics(gauges map[string]Gauge) gin.HandlerFunc {
	return func(c *gin.Context) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		body := gin.H{
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"goroutines": runtime.NumGoroutine(),
			"memory": gin.H{
				"alloc_mb":       m.Alloc / 1024 / 1024,
				"total_alloc_mb": m.TotalAlloc / 1024 / 1024,
				"sys_mb":         m.Sys / 1024 / 1024,
				"gc_runs":        m.NumGC,
			},
		}
		for name, g := range gauges {
			body[name] = g()
		}
		c.JSON(http.StatusOK, body)
	}
}
