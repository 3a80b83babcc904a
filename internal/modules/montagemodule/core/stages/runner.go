// Package stages provides the process-backed pipeline collaborators: an
// external kill detector and ffmpeg driven clip extraction and assembly.
package stages

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// maxOutputTail bounds how much process output is carried into an error
const maxOutputTail = 512

// CommandRunner interface for command execution (enables mocking in tests)
type CommandRunner interface {
	Run(ctx context.Context, cmd string, args ...string) ([]byte, error)
}

// ExecRunner implements CommandRunner using os/exec
type ExecRunner struct {
	logger hclog.Logger
}

// NewExecRunner creates a runner that logs every invocation at debug level
func NewExecRunner(logger hclog.Logger) *ExecRunner {
	return &ExecRunner{logger: logger.Named("exec")}
}

// Run executes a command and returns its combined output. A non-zero exit
// is reported with the tail of the output attached.
func (r *ExecRunner) Run(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	r.logger.Debug("running command", "command", cmd, "args", strings.Join(args, " "))

	command := exec.CommandContext(ctx, cmd, args...)
	output, err := command.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return output, ctx.Err()
		}
		return output, fmt.Errorf("%s failed: %w%s", cmd, err, formatTail(output))
	}
	return output, nil
}

func formatTail(output []byte) string {
	text := strings.TrimSpace(string(output))
	if text == "" {
		return ""
	}
	if len(text) > maxOutputTail {
		text = "..." + text[len(text)-maxOutputTail:]
	}
	return ": " + text
}
