// Package types declares the collaborator contracts the montage pipeline
// drives. The executor only ever sees these interfaces.
package types

import "context"

// Detector finds kill moments in a gameplay video. Implementations persist
// the timestamps to timestampsPath, one value in seconds per line, and
// return them in ascending order.
type Detector interface {
	Detect(ctx context.Context, videoPath, timestampsPath string) ([]float64, error)
}

// Extractor cuts one clip per timestamp out of the video into clipsDir and
// returns the clip paths in playback order.
type Extractor interface {
	Extract(ctx context.Context, videoPath, timestampsPath, clipsDir string) ([]string, error)
}

// Assembler concatenates the clips in clipsDir over the music track and
// writes the montage to outputPath.
type Assembler interface {
	Assemble(ctx context.Context, clipsDir, musicPath, outputPath string) error
}

// Collaborators bundles the three pipeline stages
type Collaborators struct {
	Detector  Detector
	Extractor Extractor
	Assembler Assembler
}

// UploadResult describes a stored upload
type UploadResult struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
}
