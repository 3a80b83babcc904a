package stages

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// ErrNoClips is returned when there is nothing to put in a montage
var ErrNoClips = errors.New("no clips to assemble")

const concatListName = "concat_list.txt"

// FFmpegAssembler joins clips with ffmpeg's concat demuxer and lays the music
// track underneath, cut to the shorter of the two.
type FFmpegAssembler struct {
	runner     CommandRunner
	ffmpegPath string
	logger     hclog.Logger
}

// NewFFmpegAssembler creates an assembler backed by runner
func NewFFmpegAssembler(runner CommandRunner, ffmpegPath string, logger hclog.Logger) *FFmpegAssembler {
	return &FFmpegAssembler{
		runner:     runner,
		ffmpegPath: ffmpegPath,
		logger:     logger.Named("assembler"),
	}
}

// Assemble writes the montage for every .mp4 clip in clipsDir, in name order
func (a *FFmpegAssembler) Assemble(ctx context.Context, clipsDir, musicPath, outputPath string) error {
	clips, err := ListClips(clipsDir)
	if err != nil {
		return err
	}
	if len(clips) == 0 {
		return ErrNoClips
	}

	listPath := filepath.Join(clipsDir, concatListName)
	if err := writeConcatList(listPath, clips); err != nil {
		return err
	}
	defer os.Remove(listPath)

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-i", musicPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "libx264",
		"-c:a", "aac",
		"-shortest",
		"-movflags", "+faststart",
		outputPath,
	}

	if _, err := a.runner.Run(ctx, a.ffmpegPath, args...); err != nil {
		return fmt.Errorf("montage assembly failed: %w", err)
	}

	a.logger.Info("assembled montage", "clips", len(clips), "output", outputPath)
	return nil
}

// ListClips returns the .mp4 files directly inside dir in lexical order
func ListClips(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list clips: %w", err)
	}

	var clips []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".mp4") {
			continue
		}
		clips = append(clips, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(clips)
	return clips, nil
}

func writeConcatList(path string, clips []string) error {
	var b strings.Builder
	for _, clip := range clips {
		abs, err := filepath.Abs(clip)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}
	return nil
}
