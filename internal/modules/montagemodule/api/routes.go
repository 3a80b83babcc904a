package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the montage API.
//
// API Structure:
//
//	/api
//	├── /upload/video         - Store a gameplay video
//	├── /upload/audio         - Store a music track
//	├── /process              - Start a montage job
//	├── /status/:jobId        - Poll a job
//	├── /download/:filename   - Fetch a finished montage
//	├── /cleanup              - Empty every storage area
//	└── /jobs                 - List jobs and their event journal
func RegisterRoutes(router *gin.Engine, handler *APIHandler) {
	api := router.Group("/api")
	{
		api.POST("/upload/video", handler.UploadVideo)
		api.POST("/upload/audio", handler.UploadAudio)

		api.POST("/process", handler.Process)
		api.GET("/status/:jobId", handler.GetStatus)
		api.GET("/download/:filename", handler.Download)
		api.POST("/cleanup", handler.Cleanup)

		api.GET("/jobs", handler.ListJobs)
		api.GET("/jobs/:jobId/events", handler.GetJobEvents)
	}
}
