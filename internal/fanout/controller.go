// Package fanout dispatches every job of the matrix for concurrent
// execution and aggregates their outcomes into one RunOutcome.
package fanout

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bartekus/matrixci/internal/ctxlog"
	"github.com/bartekus/matrixci/internal/matrix"
	"github.com/bartekus/matrixci/internal/runner"
)

// JobRunner executes one job to completion. *runner.Executor implements it.
type JobRunner interface {
	Run(ctx context.Context, job matrix.JobSpec) runner.JobOutcome
}

// Controller runs all jobs with bounded concurrency. A failing job never
// stops its siblings.
type Controller struct {
	jobs  JobRunner
	limit int
	now   func() time.Time
}

// New creates a controller. A limit <= 0 means runtime.NumCPU().
func New(jobs JobRunner, limit int) *Controller {
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	return &Controller{jobs: jobs, limit: limit, now: time.Now}
}

// Limit returns the effective concurrency limit.
func (c *Controller) Limit() int { return c.limit }

// Run dispatches every job, waits for all of them and aggregates the
// outcomes in matrix order. Cancelling ctx aborts the run: running stages
// are killed and unstarted jobs report cancelled. An empty job list is an
// *matrix.EmptyMatrixError.
func (c *Controller) Run(ctx context.Context, jobs []matrix.JobSpec) (*RunOutcome, error) {
	if len(jobs) == 0 {
		return nil, &matrix.EmptyMatrixError{}
	}

	runID := uuid.NewString()
	logger := ctxlog.FromContext(ctx).With("run", runID)
	ctx = ctxlog.WithLogger(ctx, logger)
	start := c.now()

	logger.Info("Dispatching jobs.", "jobs", len(jobs), "concurrency", c.limit)

	// Each goroutine writes only its own slot.
	results := make([]runner.JobOutcome, len(jobs))

	var g errgroup.Group
	g.SetLimit(c.limit)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = c.jobs.Run(ctx, job)
			logger.Debug("Job finished.", "job", job.ID(), "status", results[i].Status)
			return nil
		})
	}
	_ = g.Wait()

	out := Aggregate(runID, results)
	out.StartedAt = start
	out.Duration = c.now().Sub(start)

	logger.Info("Run finished.",
		"status", out.Status,
		"failures", len(out.Failures),
		"cancelled", out.Cancelled,
		"duration", out.Duration,
	)
	return out, nil
}
