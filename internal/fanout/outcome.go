package fanout

import (
	"time"

	"github.com/bartekus/matrixci/internal/matrix"
	"github.com/bartekus/matrixci/internal/runner"
)

// RunStatus is the aggregate verdict of a run.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailure RunStatus = "failure"
)

// Failure is one failing (version, platform, stage) triple.
type Failure struct {
	Job      matrix.JobSpec   `json:"job"`
	Stage    runner.StageName `json:"stage"`
	ExitCode int              `json:"exit_code"`
}

// RunOutcome aggregates every JobOutcome of one run.
type RunOutcome struct {
	RunID     string              `json:"run_id"`
	Status    RunStatus           `json:"status"`
	Cancelled bool                `json:"cancelled"`
	Jobs      []runner.JobOutcome `json:"jobs"`
	Failures  []Failure           `json:"failures"`
	StartedAt time.Time           `json:"started_at"`
	Duration  time.Duration       `json:"duration_ns"`
}

func (o *RunOutcome) Succeeded() bool { return o.Status == RunSuccess }

// Aggregate builds the RunOutcome from per-job outcomes given in matrix
// order. The run succeeds iff every job succeeded. Cancelled jobs make the
// run fail and mark it cancelled but are not listed as failures.
func Aggregate(runID string, jobs []runner.JobOutcome) *RunOutcome {
	out := &RunOutcome{
		RunID:    runID,
		Status:   RunSuccess,
		Jobs:     jobs,
		Failures: []Failure{},
	}
	for _, j := range jobs {
		switch j.Status {
		case runner.JobSuccess:
		case runner.JobCancelled:
			out.Status = RunFailure
			out.Cancelled = true
		default:
			out.Status = RunFailure
			out.Failures = append(out.Failures, Failure{
				Job:      j.Job,
				Stage:    j.FailedStage,
				ExitCode: j.ExitCode,
			})
		}
	}
	return out
}
