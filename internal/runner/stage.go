package runner

import (
	"context"
	"fmt"

	"github.com/bartekus/matrixci/internal/matrix"
)

// Env is the execution context owned by one job for its lifetime. Nothing in
// it is shared with other jobs.
type Env struct {
	Job matrix.JobSpec
	// SourceDir is the project checkout, shared read-only.
	SourceDir string
	// WorkDir is the job's private working directory.
	WorkDir string
	// LogDir receives full stage output; empty disables log files.
	LogDir string
	// Vars is the KEY=VALUE environment handed to every stage process.
	Vars []string
}

// Stage defines one step of the job pipeline.
type Stage interface {
	Name() StageName

	// Run executes the stage in env. A non-zero ExitCode is a failure.
	Run(ctx context.Context, env *Env) StageResult
}

// Provisioner allocates and destroys per-job execution contexts.
type Provisioner interface {
	Provision(ctx context.Context, job matrix.JobSpec) (*Env, error)
	Release(env *Env) error
}

// ExecutionContextError reports a job whose execution context could not be
// provisioned. The executor records it as a setup-stage failure.
type ExecutionContextError struct {
	Job matrix.JobSpec
	Err error
}

func (e *ExecutionContextError) Error() string {
	return fmt.Sprintf("provisioning execution context for %s: %v", e.Job.ID(), e.Err)
}

func (e *ExecutionContextError) Unwrap() error { return e.Err }
