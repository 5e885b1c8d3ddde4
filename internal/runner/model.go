package runner

import (
	"time"

	"github.com/bartekus/matrixci/internal/matrix"
)

// StageName identifies one stage of the job pipeline.
type StageName string

const (
	StageSetup StageName = "setup"
	StageBuild StageName = "build"
	StageTest  StageName = "test"
	StageStyle StageName = "style"
	StageDoc   StageName = "doc"
)

// StageOrder is the fixed stage sequence every job runs.
var StageOrder = []StageName{StageSetup, StageBuild, StageTest, StageStyle, StageDoc}

// StageStatus represents the outcome of a stage execution.
type StageStatus string

const (
	StatusPass StageStatus = "pass"
	StatusFail StageStatus = "fail"
	StatusSkip StageStatus = "skip"
)

// ExitNotRun is the exit status recorded when a stage process could not be
// started or did not exit on its own (timeout, signal).
const ExitNotRun = -1

// StageResult represents the result of a single stage execution.
type StageResult struct {
	Stage    StageName     `json:"stage"`
	Status   StageStatus   `json:"status"`
	ExitCode int           `json:"exit_code"`
	Note     string        `json:"note,omitempty"`
	LogPath  string        `json:"log_path,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// JobStatus is the terminal state of one job.
type JobStatus string

const (
	JobSuccess   JobStatus = "success"
	JobFailure   JobStatus = "failure"
	JobCancelled JobStatus = "cancelled"
)

// JobOutcome is the result of running the pipeline for one JobSpec. For a
// failed or cancelled job, FailedStage names the stage that stopped it and
// ExitCode carries that stage's exit status.
type JobOutcome struct {
	Job         matrix.JobSpec `json:"job"`
	Status      JobStatus      `json:"status"`
	FailedStage StageName      `json:"failed_stage,omitempty"`
	ExitCode    int            `json:"exit_code"`
	Stages      []StageResult  `json:"stages"`
	Duration    time.Duration  `json:"duration_ns"`
}

func (o JobOutcome) Succeeded() bool { return o.Status == JobSuccess }
