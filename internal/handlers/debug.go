package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chatneto/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func userIDFromContext(c *gin.Context) *int {
	value, ok := c.Get("userID")
	if !ok {
		return nil
	}
	userID, ok := value.(int)
	if !ok {
		return nil
	}
	return &userID
}
