// Package runner executes the fixed stage pipeline for one job of the matrix.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bartekus/matrixci/internal/ctxlog"
	"github.com/bartekus/matrixci/internal/matrix"
)

// Executor runs the stage pipeline of a job. It is safe for concurrent use
// as long as its stages and provisioner are.
type Executor struct {
	stages      []Stage
	provisioner Provisioner
	timeout     time.Duration
	out         *lineWriter
}

// Option configures an Executor.
type Option func(*Executor)

// WithStageTimeout bounds every stage. Zero disables the bound.
func WithStageTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// WithProgress writes one PASS/FAIL/SKIP line per stage to w.
func WithProgress(w io.Writer) Option {
	return func(e *Executor) { e.out = &lineWriter{w: w} }
}

// NewExecutor creates an executor. stages must follow StageOrder exactly.
func NewExecutor(stages []Stage, p Provisioner, opts ...Option) (*Executor, error) {
	if len(stages) != len(StageOrder) {
		return nil, fmt.Errorf("pipeline needs %d stages, got %d", len(StageOrder), len(stages))
	}
	for i, s := range stages {
		if s.Name() != StageOrder[i] {
			return nil, fmt.Errorf("stage %d is %q, want %q", i, s.Name(), StageOrder[i])
		}
	}
	if p == nil {
		return nil, errors.New("pipeline needs a provisioner")
	}

	e := &Executor{
		stages:      stages,
		provisioner: p,
		out:         &lineWriter{w: io.Discard},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run executes every stage of job in order and stops at the first failure.
// Stages after the failing one are recorded as skipped and never invoked.
// Nothing is retried.
func (e *Executor) Run(ctx context.Context, job matrix.JobSpec) (outcome JobOutcome) {
	logger := ctxlog.FromContext(ctx).With(
		"job", job.ID(),
		"index", job.Index,
		"version", job.Version,
		"os", job.Platform.OS,
		"triple", job.Platform.Triple,
	)
	ctx = ctxlog.WithLogger(ctx, logger)
	start := time.Now()

	outcome = JobOutcome{
		Job:    job,
		Status: JobSuccess,
		Stages: make([]StageResult, 0, len(e.stages)),
	}
	defer func() { outcome.Duration = time.Since(start) }()

	if err := ctx.Err(); err != nil {
		e.stop(&outcome, StageSetup, ExitNotRun, JobCancelled)
		e.skipFrom(&outcome, 0, "run cancelled before job started")
		e.out.printf("[%s] CANCELLED before start\n", job.ID())
		return outcome
	}

	env, err := e.provisioner.Provision(ctx, job)
	if err != nil {
		ectx := &ExecutionContextError{Job: job, Err: err}
		logger.Warn("Execution context provisioning failed.", "error", ectx)
		outcome.Stages = append(outcome.Stages, StageResult{
			Stage:    StageSetup,
			Status:   StatusFail,
			ExitCode: ExitNotRun,
			Note:     ectx.Error(),
		})
		e.stop(&outcome, StageSetup, ExitNotRun, JobFailure)
		e.skipFrom(&outcome, 1, "skipped after setup failed")
		e.out.printf("[%s] FAIL %s (%v)\n", job.ID(), StageSetup, ectx)
		return outcome
	}
	defer func() {
		if err := e.provisioner.Release(env); err != nil {
			logger.Warn("Releasing execution context failed.", "error", err)
		}
	}()

	for i, stage := range e.stages {
		name := stage.Name()
		if ctx.Err() != nil {
			e.stop(&outcome, name, ExitNotRun, JobCancelled)
			e.skipFrom(&outcome, i, "run cancelled")
			e.out.printf("[%s] CANCELLED before %s\n", job.ID(), name)
			return outcome
		}

		logger.Debug("Stage started.", "stage", name)
		res := e.runStage(ctx, stage, env)
		outcome.Stages = append(outcome.Stages, res)

		if res.Status == StatusPass {
			logger.Debug("Stage passed.", "stage", name, "duration", res.Duration)
			e.out.printf("[%s] PASS %s (%s)\n", job.ID(), name, res.Duration.Round(time.Millisecond))
			continue
		}

		status := JobFailure
		if ctx.Err() != nil {
			status = JobCancelled
		}
		logger.Warn("Stage failed.", "stage", name, "exit_code", res.ExitCode, "status", status)
		e.stop(&outcome, name, res.ExitCode, status)
		e.skipFrom(&outcome, i+1, fmt.Sprintf("skipped after %s failed", name))
		e.out.printf("[%s] FAIL %s (exit %d)\n", job.ID(), name, res.ExitCode)
		return outcome
	}

	logger.Info("Job succeeded.", "duration", time.Since(start))
	return outcome
}

func (e *Executor) runStage(ctx context.Context, stage Stage, env *Env) StageResult {
	stageCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	res := stage.Run(stageCtx, env)
	res.Stage = stage.Name()
	res.Duration = time.Since(start)

	// A stage cannot opt out of the pipeline: anything but a clean pass fails.
	switch {
	case res.ExitCode == 0 && (res.Status == StatusPass || res.Status == ""):
		res.Status = StatusPass
	default:
		res.Status = StatusFail
		if res.ExitCode == 0 {
			res.ExitCode = ExitNotRun
		}
	}

	if res.Status == StatusFail && ctx.Err() == nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		res.ExitCode = ExitNotRun
		res.Note = joinNote(fmt.Sprintf("timed out after %s", e.timeout), res.Note)
	}
	return res
}

func (e *Executor) stop(o *JobOutcome, stage StageName, code int, status JobStatus) {
	o.Status = status
	o.FailedStage = stage
	o.ExitCode = code
}

func (e *Executor) skipFrom(o *JobOutcome, from int, note string) {
	for _, s := range e.stages[from:] {
		o.Stages = append(o.Stages, StageResult{
			Stage:  s.Name(),
			Status: StatusSkip,
			Note:   note,
		})
	}
}

func joinNote(head, tail string) string {
	if tail == "" {
		return head
	}
	return head + "\n" + tail
}

// lineWriter serializes progress lines from concurrently running jobs.
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lineWriter) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintf(l.w, format, args...)
}
