// Package api provides HTTP handlers and routes for the montage module.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/fragreel/internal/api"
	"github.com/mantonx/fragreel/internal/modules/montagemodule/types"
	apptypes "github.com/mantonx/fragreel/internal/types"
)

// APIHandler translates HTTP requests into montage service calls
type APIHandler struct {
	service MontageService
	logger  hclog.Logger
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(service MontageService, logger hclog.Logger) *APIHandler {
	return &APIHandler{
		service: service,
		logger:  logger.Named("montage-api"),
	}
}

// ProcessRequest is the body of POST /api/process
type ProcessRequest struct {
	VideoFilename string `json:"videoFilename"`
	AudioFilename string `json:"audioFilename"`
}

// UploadResponse is returned by both upload endpoints
type UploadResponse struct {
	Message string `json:"message"`
	*types.UploadResult
}

// UploadVideo handles POST /api/upload/video
//
// Multipart field "video". Storing a video resets the intermediate clips
// area.
func (h *APIHandler) UploadVideo(c *gin.Context) {
	h.upload(c, "video", "No video file provided", "Video uploaded successfully", h.service.UploadVideo)
}

// UploadAudio handles POST /api/upload/audio
//
// Multipart field "audio". The response carries the track's title and
// artist when the file is tagged.
func (h *APIHandler) UploadAudio(c *gin.Context) {
	h.upload(c, "audio", "No audio file provided", "Audio uploaded successfully", h.service.UploadAudio)
}

type uploadFunc func(ctx context.Context, filename string, r io.Reader) (*types.UploadResult, error)

func (h *APIHandler) upload(c *gin.Context, field, missing, success string, store uploadFunc) {
	header, err := c.FormFile(field)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.RespondWithError(c, apptypes.NewPayloadTooLargeError(maxErr.Limit))
			return
		}
		api.RespondWithValidationError(c, missing)
		return
	}

	file, err := header.Open()
	if err != nil {
		api.RespondWithInternalError(c, "Failed to read upload", err)
		return
	}
	defer file.Close()

	result, err := store(c.Request.Context(), header.Filename, file)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, UploadResponse{Message: success, UploadResult: result})
}

// Process handles POST /api/process
//
// Request body:
//
//	{"videoFilename": "string", "audioFilename": "string"}
//
// The job runs in the background; the reply carries its id with 202.
func (h *APIHandler) Process(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.VideoFilename == "" || req.AudioFilename == "" {
		api.RespondWithValidationError(c, "Video and audio filenames are required")
		return
	}

	jobID, err := h.service.Submit(c.Request.Context(), req.VideoFilename, req.AudioFilename)
	if err != nil {
		api.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Processing started",
		"jobId":   jobID,
	})
}

// GetStatus handles GET /api/status/:jobId
func (h *APIHandler) GetStatus(c *gin.Context) {
	j, err := h.service.Status(c.Param("jobId"))
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, j)
}

// Download handles GET /api/download/:filename
func (h *APIHandler) Download(c *gin.Context) {
	path, err := h.service.OpenArtifact(c.Param("filename"))
	if err != nil {
		api.RespondWithError(c, err)
		return
	}

	c.Header("Content-Type", "video/mp4")
	c.FileAttachment(path, filepath.Base(path))
}

// Cleanup handles POST /api/cleanup
func (h *APIHandler) Cleanup(c *gin.Context) {
	if err := h.service.PurgeAll(c.Request.Context()); err != nil {
		api.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cleanup completed successfully"})
}

// ListJobs handles GET /api/jobs
func (h *APIHandler) ListJobs(c *gin.Context) {
	jobs := h.service.ListJobs()
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// GetJobEvents handles GET /api/jobs/:jobId/events
func (h *APIHandler) GetJobEvents(c *gin.Context) {
	events, err := h.service.JobEvents(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		api.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}
