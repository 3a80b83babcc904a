// Package montagetest provides in-process pipeline collaborators for tests.
// They produce the same files the real detector and ffmpeg stages would.
package montagetest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/mantonx/fragreel/internal/modules/montagemodule/core/stages"
	"github.com/mantonx/fragreel/internal/modules/montagemodule/types"
)

// Pipeline is a configurable fake of all three stages
type Pipeline struct {
	Kills       []float64
	DetectErr   error
	ExtractErr  error
	AssembleErr error
	PanicIn     string

	// Hold, when non-nil, blocks Detect until it is closed
	Hold chan struct{}

	// Observe runs at the start of every stage with the stage name
	Observe func(stage string)

	DetectCalls   atomic.Int32
	ExtractCalls  atomic.Int32
	AssembleCalls atomic.Int32

	mu       sync.Mutex
	clipDirs []string
}

// NewPipeline returns a fake that finds three kills and succeeds
func NewPipeline() *Pipeline {
	return &Pipeline{Kills: []float64{4, 12.5, 30}}
}

// Collaborators exposes the fake through the executor contract
func (p *Pipeline) Collaborators() types.Collaborators {
	return types.Collaborators{
		Detector:  detector{p},
		Extractor: extractor{p},
		Assembler: assembler{p},
	}
}

// ClipDirs lists the clip directories Extract was asked to write into
func (p *Pipeline) ClipDirs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clipDirs...)
}

func (p *Pipeline) enter(stage string) {
	if p.Observe != nil {
		p.Observe(stage)
	}
	if p.PanicIn == stage {
		panic(stage + " exploded")
	}
}

type detector struct{ p *Pipeline }

func (d detector) Detect(ctx context.Context, videoPath, timestampsPath string) ([]float64, error) {
	d.p.DetectCalls.Add(1)
	if d.p.Hold != nil {
		select {
		case <-d.p.Hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.p.enter("detect")

	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("video not readable: %w", err)
	}
	if d.p.DetectErr != nil {
		return nil, d.p.DetectErr
	}
	if err := stages.WriteTimestamps(timestampsPath, d.p.Kills); err != nil {
		return nil, err
	}
	return stages.ReadTimestamps(timestampsPath)
}

type extractor struct{ p *Pipeline }

func (e extractor) Extract(ctx context.Context, videoPath, timestampsPath, clipsDir string) ([]string, error) {
	e.p.ExtractCalls.Add(1)
	e.p.enter("extract")

	e.p.mu.Lock()
	e.p.clipDirs = append(e.p.clipDirs, clipsDir)
	e.p.mu.Unlock()

	if e.p.ExtractErr != nil {
		return nil, e.p.ExtractErr
	}
	timestamps, err := stages.ReadTimestamps(timestampsPath)
	if err != nil {
		return nil, err
	}

	clips := make([]string, 0, len(timestamps))
	for i, ts := range timestamps {
		path := filepath.Join(clipsDir, stages.ClipName(i+1))
		if err := os.WriteFile(path, []byte(fmt.Sprintf("clip@%v", ts)), 0644); err != nil {
			return clips, err
		}
		clips = append(clips, path)
	}
	return clips, nil
}

type assembler struct{ p *Pipeline }

func (a assembler) Assemble(ctx context.Context, clipsDir, musicPath, outputPath string) error {
	a.p.AssembleCalls.Add(1)
	a.p.enter("assemble")

	if a.p.AssembleErr != nil {
		return a.p.AssembleErr
	}
	clips, err := stages.ListClips(clipsDir)
	if err != nil {
		return err
	}
	if len(clips) == 0 {
		return stages.ErrNoClips
	}
	return os.WriteFile(outputPath, []byte(fmt.Sprintf("montage of %d clips", len(clips))), 0644)
}
