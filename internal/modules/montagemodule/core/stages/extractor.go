package stages

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"
)

// FFmpegExtractor cuts a fixed window around every kill timestamp
type FFmpegExtractor struct {
	runner     CommandRunner
	ffmpegPath string
	before     time.Duration
	after      time.Duration
	logger     hclog.Logger
}

// NewFFmpegExtractor creates an extractor keeping before seconds of lead-in
// and after seconds of follow-through per kill
func NewFFmpegExtractor(runner CommandRunner, ffmpegPath string, before, after time.Duration, logger hclog.Logger) *FFmpegExtractor {
	return &FFmpegExtractor{
		runner:     runner,
		ffmpegPath: ffmpegPath,
		before:     before,
		after:      after,
		logger:     logger.Named("extractor"),
	}
}

// ClipName returns the file name of the n-th clip, counting from 1
func ClipName(n int) string {
	return fmt.Sprintf("kill_clip_%03d.mp4", n)
}

// Extract runs one ffmpeg cut per timestamp
func (e *FFmpegExtractor) Extract(ctx context.Context, videoPath, timestampsPath, clipsDir string) ([]string, error) {
	timestamps, err := ReadTimestamps(timestampsPath)
	if err != nil {
		return nil, err
	}

	clips := make([]string, 0, len(timestamps))
	for i, ts := range timestamps {
		start := ts - e.before.Seconds()
		if start < 0 {
			start = 0
		}
		duration := ts + e.after.Seconds() - start

		out := filepath.Join(clipsDir, ClipName(i+1))
		args := []string{
			"-y",
			"-ss", formatSeconds(start),
			"-i", videoPath,
			"-t", formatSeconds(duration),
			"-c:v", "libx264",
			"-c:a", "aac",
			"-movflags", "+faststart",
			out,
		}

		if _, err := e.runner.Run(ctx, e.ffmpegPath, args...); err != nil {
			return clips, fmt.Errorf("failed to extract clip %d at %ss: %w", i+1, formatSeconds(ts), err)
		}
		clips = append(clips, out)
	}

	e.logger.Info("extracted clips", "video", videoPath, "count", len(clips), "dir", clipsDir)
	return clips, nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
