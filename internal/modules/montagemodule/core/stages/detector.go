package stages

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// CommandDetector runs an external kill detection program. The program is
// invoked as `<command> <args...> --model <model> --video <video> --output
// <timestamps>` and must write one timestamp in seconds per line.
type CommandDetector struct {
	runner    CommandRunner
	command   string
	args      []string
	modelPath string
	logger    hclog.Logger
}

// NewCommandDetector creates a detector backed by runner
func NewCommandDetector(runner CommandRunner, command string, args []string, modelPath string, logger hclog.Logger) *CommandDetector {
	return &CommandDetector{
		runner:    runner,
		command:   command,
		args:      append([]string(nil), args...),
		modelPath: modelPath,
		logger:    logger.Named("detector"),
	}
}

// Detect runs the detector and reads back the timestamps it wrote
func (d *CommandDetector) Detect(ctx context.Context, videoPath, timestampsPath string) ([]float64, error) {
	args := append([]string(nil), d.args...)
	args = append(args,
		"--model", d.modelPath,
		"--video", videoPath,
		"--output", timestampsPath,
	)

	if _, err := d.runner.Run(ctx, d.command, args...); err != nil {
		return nil, fmt.Errorf("kill detection failed: %w", err)
	}

	timestamps, err := ReadTimestamps(timestampsPath)
	if err != nil {
		return nil, err
	}

	d.logger.Info("detected kills", "video", videoPath, "count", len(timestamps))
	return timestamps, nil
}

// ReadTimestamps parses a timestamps file. Blank lines are skipped and the
// result is sorted ascending.
func ReadTimestamps(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open timestamps: %w", err)
	}
	defer f.Close()

	var timestamps []float64
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ts, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp on line %d: %q", lineNo, line)
		}
		if ts < 0 {
			return nil, fmt.Errorf("negative timestamp on line %d: %v", lineNo, ts)
		}
		timestamps = append(timestamps, ts)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read timestamps: %w", err)
	}

	sort.Float64s(timestamps)
	return timestamps, nil
}

// WriteTimestamps writes timestamps in the format ReadTimestamps accepts
func WriteTimestamps(path string, timestamps []float64) error {
	var b strings.Builder
	for _, ts := range timestamps {
		b.WriteString(strconv.FormatFloat(ts, 'f', -1, 64))
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}
