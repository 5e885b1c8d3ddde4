// Package workspace allocates the private execution context of each job: a
// fresh working directory and environment, destroyed once the job's outcome
// is recorded.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bartekus/matrixci/internal/ctxlog"
	"github.com/bartekus/matrixci/internal/matrix"
	"github.com/bartekus/matrixci/internal/runner"
)

// Environment variables every stage process receives.
const (
	EnvToolchain = "MATRIXCI_TOOLCHAIN"
	EnvOS        = "MATRIXCI_OS"
	EnvTriple    = "MATRIXCI_TRIPLE"
	EnvJob       = "MATRIXCI_JOB"
	EnvSourceDir = "MATRIXCI_SOURCE_DIR"
	EnvWorkDir   = "MATRIXCI_WORK_DIR"
)

// Arena hands out one directory per job under Root.
type Arena struct {
	// Root holds the per-job directories.
	Root string
	// SourceDir is the project checkout exposed to stages.
	SourceDir string
	// LogRoot receives per-job stage logs; empty disables them.
	LogRoot string
	// Extra is added to every job environment after the base environment.
	// Reserved per-job variables are never replaced.
	Extra map[string]string
	// Keep leaves job directories in place after Release.
	Keep bool
	// BaseEnv is the inherited process environment; nil means os.Environ().
	BaseEnv []string
}

var _ runner.Provisioner = (*Arena)(nil)

// Provision creates the job directory and its environment. A directory left
// over from an earlier run is removed first so no state carries over.
func (a *Arena) Provision(ctx context.Context, job matrix.JobSpec) (*runner.Env, error) {
	if a.Root == "" {
		return nil, errors.New("workspace root is not set")
	}

	dir := filepath.Join(a.Root, job.Key())
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clearing %s: %w", dir, err)
	}
	for _, sub := range []string{"", "target", "tmp"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("creating job directory: %w", err)
		}
	}

	var logDir string
	if a.LogRoot != "" {
		logDir = filepath.Join(a.LogRoot, job.Key())
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
	}

	ctxlog.FromContext(ctx).Debug("Provisioned job workspace.", "dir", dir)

	return &runner.Env{
		Job:       job,
		SourceDir: a.SourceDir,
		WorkDir:   dir,
		LogDir:    logDir,
		Vars:      a.environ(job, dir),
	}, nil
}

// Release removes the job directory unless Keep is set. Logs are kept.
func (a *Arena) Release(env *runner.Env) error {
	if a.Keep || env == nil || env.WorkDir == "" {
		return nil
	}
	return os.RemoveAll(env.WorkDir)
}

// Reserved reports whether key is a per-job variable owned by the arena.
// Configured environment entries may not replace these.
func Reserved(key string) bool {
	switch key {
	case "RUSTUP_TOOLCHAIN", "CARGO_TARGET_DIR", "TMPDIR":
		return true
	}
	return strings.HasPrefix(key, "MATRIXCI_")
}

func (a *Arena) environ(job matrix.JobSpec, dir string) []string {
	base := a.BaseEnv
	if base == nil {
		base = os.Environ()
	}

	vars := map[string]string{
		EnvToolchain:       string(job.Version),
		EnvOS:              job.Platform.OS,
		EnvTriple:          job.Platform.Triple,
		EnvJob:             job.ID(),
		EnvSourceDir:       a.SourceDir,
		EnvWorkDir:         dir,
		"RUSTUP_TOOLCHAIN": string(job.Version),
		"CARGO_TARGET_DIR": filepath.Join(dir, "target"),
		"TMPDIR":           filepath.Join(dir, "tmp"),
	}
	for k, v := range a.Extra {
		if Reserved(k) {
			continue
		}
		vars[k] = v
	}

	out := make([]string, 0, len(base)+len(vars))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, overridden := vars[k]; overridden {
			continue
		}
		out = append(out, kv)
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+vars[k])
	}
	return out
}
