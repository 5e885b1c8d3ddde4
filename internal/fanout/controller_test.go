package fanout

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartekus/matrixci/internal/matrix"
	"github.com/bartekus/matrixci/internal/runner"
)

// fakeRunner fails the jobs listed in fail and records every dispatch.
type fakeRunner struct {
	fail  map[int]runner.StageName
	delay time.Duration

	mu      sync.Mutex
	ran     []int
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (f *fakeRunner) Run(ctx context.Context, job matrix.JobSpec) runner.JobOutcome {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	f.mu.Lock()
	f.ran = append(f.ran, job.Index)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return runner.JobOutcome{Job: job, Status: runner.JobCancelled, FailedStage: runner.StageBuild, ExitCode: runner.ExitNotRun}
		}
	}

	if stage, ok := f.fail[job.Index]; ok {
		return runner.JobOutcome{Job: job, Status: runner.JobFailure, FailedStage: stage, ExitCode: 1}
	}
	return runner.JobOutcome{Job: job, Status: runner.JobSuccess}
}

func jobs(t *testing.T, versions []matrix.VersionSpec, triples ...string) []matrix.JobSpec {
	t.Helper()
	platforms := make([]matrix.PlatformSpec, 0, len(triples))
	for _, tr := range triples {
		platforms = append(platforms, matrix.PlatformSpec{OS: "linux", Triple: tr})
	}
	out, err := matrix.Expand(versions, platforms)
	require.NoError(t, err)
	return out
}

func TestController_AllSucceed(t *testing.T) {
	js := jobs(t, []matrix.VersionSpec{"1.41.0", "1.60.0"}, "x86_64", "i686")
	fr := &fakeRunner{}

	out, err := New(fr, 2).Run(context.Background(), js)
	require.NoError(t, err)

	assert.Equal(t, RunSuccess, out.Status)
	assert.True(t, out.Succeeded())
	assert.Empty(t, out.Failures)
	assert.Len(t, out.Jobs, 4)
	_, err = uuid.Parse(out.RunID)
	assert.NoError(t, err)
}

func TestController_FailIndependent(t *testing.T) {
	js := jobs(t, []matrix.VersionSpec{"1.41.0", "1.52.0", "1.60.0"}, "x86_64", "i686", "aarch64")
	fr := &fakeRunner{fail: map[int]runner.StageName{0: runner.StageSetup}}

	out, err := New(fr, 1).Run(context.Background(), js)
	require.NoError(t, err)

	assert.Equal(t, RunFailure, out.Status)
	assert.False(t, out.Cancelled)
	require.Len(t, out.Jobs, len(js))
	assert.Len(t, fr.ran, len(js), "every job is dispatched even after the first fails")

	for i, j := range out.Jobs {
		assert.Equal(t, js[i], j.Job, "outcomes stay in matrix order")
		if i == 0 {
			assert.Equal(t, runner.JobFailure, j.Status)
			continue
		}
		assert.Equal(t, runner.JobSuccess, j.Status)
	}
	require.Len(t, out.Failures, 1)
	assert.Equal(t, Failure{Job: js[0], Stage: runner.StageSetup, ExitCode: 1}, out.Failures[0])
}

func TestController_RespectsLimit(t *testing.T) {
	js := jobs(t, []matrix.VersionSpec{"1.41.0", "1.60.0"}, "a", "b", "c", "d", "e")
	fr := &fakeRunner{delay: 10 * time.Millisecond}

	out, err := New(fr, 3).Run(context.Background(), js)
	require.NoError(t, err)
	assert.True(t, out.Succeeded())
	assert.LessOrEqual(t, fr.maxSeen.Load(), int32(3))
	assert.Len(t, fr.ran, 10)
}

func TestController_DefaultLimit(t *testing.T) {
	c := New(&fakeRunner{}, 0)
	assert.Positive(t, c.Limit())
}

func TestController_EmptyMatrix(t *testing.T) {
	fr := &fakeRunner{}
	_, err := New(fr, 2).Run(context.Background(), nil)
	require.ErrorIs(t, err, matrix.ErrEmptyMatrix)
	assert.Empty(t, fr.ran)
}

func TestController_Cancelled(t *testing.T) {
	js := jobs(t, []matrix.VersionSpec{"1.41.0", "1.60.0"}, "x86_64", "i686")
	fr := &fakeRunner{delay: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for fr.active.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	out, err := New(fr, 4).Run(ctx, js)
	require.NoError(t, err)
	assert.Equal(t, RunFailure, out.Status)
	assert.True(t, out.Cancelled)
	assert.Empty(t, out.Failures)
	assert.Len(t, out.Jobs, 4)
}

func TestAggregate(t *testing.T) {
	js := jobs(t, []matrix.VersionSpec{"1.41.0", "1.60.0"}, "x86_64", "i686")
	outcomes := []runner.JobOutcome{
		{Job: js[0], Status: runner.JobSuccess},
		{Job: js[1], Status: runner.JobFailure, FailedStage: runner.StageStyle, ExitCode: 1},
		{Job: js[2], Status: runner.JobSuccess},
		{Job: js[3], Status: runner.JobSuccess},
	}

	out := Aggregate("run-1", outcomes)
	assert.Equal(t, RunFailure, out.Status)
	assert.Equal(t, []Failure{{Job: js[1], Stage: runner.StageStyle, ExitCode: 1}}, out.Failures)
	assert.Len(t, out.Jobs, 4)

	ok := Aggregate("run-2", []runner.JobOutcome{{Job: js[0], Status: runner.JobSuccess}})
	assert.Equal(t, RunSuccess, ok.Status)
	assert.NotNil(t, ok.Failures)
}
