// Package stages provides the external-command stages of the job pipeline.
package stages

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/bartekus/matrixci/internal/ctxlog"
	"github.com/bartekus/matrixci/internal/runner"
)

// EnvStage names the running stage in the stage process environment.
const EnvStage = "MATRIXCI_STAGE"

// noteLines is how much trailing output a failing stage reports.
const noteLines = 20

// waitDelay bounds how long a killed stage may keep its output pipes open.
var waitDelay = 10 * time.Second

// ExecStage runs one external command. Its exit status is the only signal.
type ExecStage struct {
	name runner.StageName
	args []string
}

// NewExec creates a stage running args. A relative args[0] containing a
// path separator resolves against the project source directory.
func NewExec(name runner.StageName, args []string) (*ExecStage, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return nil, fmt.Errorf("stage %s: empty command", name)
	}
	return &ExecStage{name: name, args: append([]string(nil), args...)}, nil
}

func (s *ExecStage) Name() runner.StageName { return s.name }

// Args returns the configured command line.
func (s *ExecStage) Args() []string { return append([]string(nil), s.args...) }

func (s *ExecStage) Run(ctx context.Context, env *runner.Env) runner.StageResult {
	logger := ctxlog.FromContext(ctx)

	cmd := exec.CommandContext(ctx, s.program(env), s.args[1:]...)
	cmd.Dir = env.WorkDir
	cmd.Env = append(append([]string(nil), env.Vars...), EnvStage+"="+string(s.name))
	cmd.WaitDelay = waitDelay

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()

	res := runner.StageResult{Stage: s.name}
	if env.LogDir != "" {
		path := filepath.Join(env.LogDir, string(s.name)+".log")
		if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
			logger.Warn("Writing stage log failed.", "stage", s.name, "error", err)
		} else {
			res.LogPath = path
		}
	}

	if runErr == nil {
		res.Status = runner.StatusPass
		return res
	}

	res.Status = runner.StatusFail
	res.ExitCode = runner.ExitNotRun
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		// -1 when the process was killed by a signal.
		res.ExitCode = exitErr.ExitCode()
		res.Note = tail(out.String(), noteLines)
	} else {
		res.Note = joinLines(runErr.Error(), tail(out.String(), noteLines))
	}
	if res.ExitCode == 0 {
		res.ExitCode = runner.ExitNotRun
	}
	return res
}

func (s *ExecStage) program(env *runner.Env) string {
	prog := s.args[0]
	if filepath.IsAbs(prog) || !strings.ContainsRune(prog, '/') || env.SourceDir == "" {
		return prog
	}
	return filepath.Join(env.SourceDir, prog)
}

// tail keeps the last n lines of output.
func tail(output string, n int) string {
	output = strings.TrimSpace(output)
	lines := strings.Split(output, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
		return "...(truncated)...\n" + strings.Join(lines, "\n")
	}
	return output
}

func joinLines(head, rest string) string {
	if rest == "" {
		return head
	}
	return head + "\n" + rest
}
