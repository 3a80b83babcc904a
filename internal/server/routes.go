package server

import (
	"github.com/gin-gonic/gin"
	"github.com/mantonx/fragreel/internal/modules/montagemodule"
	"github.com/mantonx/fragreel/internal/server/handlers"
)

// setupRoutes mounts the health probe and the montage API
func setupRoutes(r *gin.Engine, module *montagemodule.Module) {
	health := handlers.NewHealthHandler(module.ModelAvailable, module.Areas().DataDir())
	r.GET("/api/health", health.GetHealth)

	module.RegisterRoutes(r)
}
