// Package orchestrator runs one CI trigger end to end in two phases: a
// synchronous planning phase that resolves versions and expands the job
// matrix, then a fan-out phase over that fixed job list.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/bartekus/matrixci/internal/config"
	"github.com/bartekus/matrixci/internal/ctxlog"
	"github.com/bartekus/matrixci/internal/fanout"
	"github.com/bartekus/matrixci/internal/matrix"
	"github.com/bartekus/matrixci/internal/report"
	"github.com/bartekus/matrixci/internal/runner"
	"github.com/bartekus/matrixci/internal/stages"
	"github.com/bartekus/matrixci/internal/versions"
	"github.com/bartekus/matrixci/internal/workspace"
)

// Options adjusts a run beyond the project configuration.
type Options struct {
	// MinVersion and CurrentVersion replace the corresponding source when set.
	MinVersion     string
	CurrentVersion string
	// Progress receives per-stage progress lines; nil discards them.
	Progress io.Writer
}

// Plan is the immutable result of the planning phase.
type Plan struct {
	Versions  []matrix.VersionSpec  `json:"versions"`
	Platforms []matrix.PlatformSpec `json:"platforms"`
	Jobs      []matrix.JobSpec      `json:"jobs"`
}

// Orchestrator wires configuration to the resolver, expander, executor and
// fan-out controller.
type Orchestrator struct {
	cfg  *config.Config
	opts Options
}

// New creates an orchestrator for a validated configuration.
func New(cfg *config.Config, opts Options) *Orchestrator {
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	return &Orchestrator{cfg: cfg, opts: opts}
}

// Resolver returns the version resolver for this configuration.
func (o *Orchestrator) Resolver() *versions.Resolver {
	var minimum versions.Source = versions.ManifestSource{
		Path:  o.cfg.Path(o.cfg.Manifest),
		Field: o.cfg.ManifestField,
	}
	if o.opts.MinVersion != "" {
		minimum = versions.StaticSource{Value: o.opts.MinVersion, Label: "--min-version"}
	}

	var current versions.Source = versions.PinnedSource{Path: o.cfg.Path(o.cfg.Pinned)}
	if o.opts.CurrentVersion != "" {
		current = versions.StaticSource{Value: o.opts.CurrentVersion, Label: "--current-version"}
	}
	return versions.NewResolver(minimum, current)
}

// Plan resolves the versions and expands the job matrix. It fails with a
// *versions.ResolutionError or *matrix.EmptyMatrixError before any job runs.
func (o *Orchestrator) Plan(ctx context.Context) (*Plan, error) {
	vs, err := o.Resolver().Resolve(ctx)
	if err != nil {
		return nil, err
	}
	jobs, err := matrix.Expand(vs, o.cfg.Platforms)
	if err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Info("Planned job matrix.",
		"versions", vs,
		"platforms", len(o.cfg.Platforms),
		"jobs", len(jobs),
	)
	return &Plan{Versions: vs, Platforms: o.cfg.Platforms, Jobs: jobs}, nil
}

// Execute runs every job of plan and writes the run report. The returned
// outcome is non-nil whenever the jobs were dispatched. The configuration is
// validated again before the report and work directories are touched.
func (o *Orchestrator) Execute(ctx context.Context, plan *Plan) (*fanout.RunOutcome, error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	pipeline, err := stages.Pipeline(o.cfg.Stages.Commands())
	if err != nil {
		return nil, err
	}

	store := report.NewStore(o.cfg.Path(o.cfg.ReportDir))
	if err := store.Reset(); err != nil {
		return nil, fmt.Errorf("clearing report directory: %w", err)
	}

	arena := &workspace.Arena{
		Root:      o.cfg.Path(o.cfg.WorkDir),
		SourceDir: o.cfg.Root,
		LogRoot:   store.LogDir(),
		Extra:     o.cfg.Env,
		Keep:      o.cfg.KeepWorkDirs,
	}

	executor, err := runner.NewExecutor(pipeline, arena,
		runner.WithStageTimeout(time.Duration(o.cfg.StageTimeout)),
		runner.WithProgress(o.opts.Progress),
	)
	if err != nil {
		return nil, err
	}

	out, err := fanout.New(executor, o.cfg.Concurrency).Run(ctx, plan.Jobs)
	if err != nil {
		return nil, err
	}

	if err := store.WriteRun(out); err != nil {
		return out, fmt.Errorf("writing run report: %w", err)
	}
	return out, nil
}

// Run plans and executes in one call.
func (o *Orchestrator) Run(ctx context.Context) (*fanout.RunOutcome, error) {
	plan, err := o.Plan(ctx)
	if err != nil {
		return nil, err
	}
	return o.Execute(ctx, plan)
}
