// Package handlers holds HTTP handlers that do not belong to a module.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mantonx/fragreel/internal/logger"
	"github.com/mantonx/fragreel/internal/system"
)

// HealthHandler answers liveness probes
type HealthHandler struct {
	modelAvailable func() bool
	dataDir        string
}

// NewHealthHandler creates a health handler. modelAvailable is evaluated on
// every request so a model copied in after startup is picked up.
func NewHealthHandler(modelAvailable func() bool, dataDir string) *HealthHandler {
	return &HealthHandler{
		modelAvailable: modelAvailable,
		dataDir:        dataDir,
	}
}

// GetHealth handles GET /api/health
func (h *HealthHandler) GetHealth(c *gin.Context) {
	storage, err := system.GetStorageInfo(c.Request.Context(), h.dataDir)
	if err != nil {
		logger.Debug("storage stats unavailable", "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"modelLoaded": h.modelAvailable(),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"storage":     storage,
	})
}
