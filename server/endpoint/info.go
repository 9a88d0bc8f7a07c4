package endpoint

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/voxrelay/component"
	"github.com/kbukum/voxrelay/version"
)

// Describer lists the running components, as component.Registry.Describe does.
type Describer func() []component.Description

var startTime = time.Now()

// Info reports build information, uptime and the configured components
// (transcription mode and backend, storage provider, relay feed).
func Info(serviceName string, describer Describer) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"service": serviceName,
			"build":   version.Get(),
			"uptime":  time.Since(startTime).Round(time.Second).String(),
		}
		if describer != nil {
			body["components"] = describer()
		}
		c.JSON(http.StatusOK, body)
	}
}
