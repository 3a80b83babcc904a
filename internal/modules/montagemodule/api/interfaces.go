package api

import (
	"context"
	"io"

	"github.com/mantonx/fragreel/internal/modules/montagemodule/core/job"
	"github.com/mantonx/fragreel/internal/modules/montagemodule/core/journal"
	"github.com/mantonx/fragreel/internal/modules/montagemodule/types"
)

// MontageService is what the handlers need from the montage manager. It is
// declared here so the api package does not import its parent module.
type MontageService interface {
	UploadVideo(ctx context.Context, filename string, r io.Reader) (*types.UploadResult, error)
	UploadAudio(ctx context.Context, filename string, r io.Reader) (*types.UploadResult, error)
	Submit(ctx context.Context, videoFilename, audioFilename string) (string, error)
	Status(id string) (job.Job, error)
	ListJobs() []job.Job
	JobEvents(ctx context.Context, id string) ([]journal.JobEvent, error)
	OpenArtifact(filename string) (string, error)
	PurgeAll(ctx context.Context) error
}
