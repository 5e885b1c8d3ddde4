package orchestrator

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartekus/matrixci/internal/config"
	"github.com/bartekus/matrixci/internal/fanout"
	"github.com/bartekus/matrixci/internal/matrix"
	"github.com/bartekus/matrixci/internal/report"
	"github.com/bartekus/matrixci/internal/runner"
	"github.com/bartekus/matrixci/internal/versions"
)

const projectConfig = `
platforms:
  - os: linux
    triple: x86_64
  - os: linux
    triple: i686
stages:
  setup: ["sh", "-c", "touch \"$MATRIXCI_SOURCE_DIR/setup-$MATRIXCI_TOOLCHAIN-$MATRIXCI_TRIPLE\""]
  build: ["sh", "-c", "test -d \"$CARGO_TARGET_DIR\""]
  test: ["true"]
  style: ["sh", "-c", "[ \"$MATRIXCI_TOOLCHAIN/$MATRIXCI_TRIPLE\" != \"1.41.0/i686\" ]"]
  doc: ["sh", "-c", "touch \"$MATRIXCI_SOURCE_DIR/doc-$MATRIXCI_TOOLCHAIN-$MATRIXCI_TRIPLE\""]
concurrency: 2
`

func newProject(t *testing.T, minVersion, pinned string) *config.Config {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stage scripts need a POSIX shell")
	}

	root := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o600))
	}
	write(config.FileName, projectConfig)
	if minVersion != "" {
		write("Cargo.toml", "[package]\nname = \"lib\"\nrust-version = \""+minVersion+"\"\n")
	}
	if pinned != "" {
		write("rust-toolchain", pinned+"\n")
	}

	cfg, err := config.Load(root)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRun_Scenario(t *testing.T) {
	cfg := newProject(t, "1.41.0", "1.60.0")
	var progress bytes.Buffer

	o := New(cfg, Options{Progress: &progress})
	plan, err := o.Plan(context.Background())
	require.NoError(t, err)

	require.Len(t, plan.Jobs, 4)
	var ids []string
	for _, j := range plan.Jobs {
		ids = append(ids, j.ID())
	}
	assert.Equal(t, []string{"1.41.0/x86_64", "1.41.0/i686", "1.60.0/x86_64", "1.60.0/i686"}, ids)

	out, err := o.Execute(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, fanout.RunFailure, out.Status)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, plan.Jobs[1], out.Failures[0].Job)
	assert.Equal(t, runner.StageStyle, out.Failures[0].Stage)
	assert.Equal(t, 1, out.Failures[0].ExitCode)

	for i, j := range out.Jobs {
		if i == 1 {
			assert.Equal(t, runner.JobFailure, j.Status)
			continue
		}
		assert.Equal(t, runner.JobSuccess, j.Status, "job %s", j.Job.ID())
	}

	assert.NoFileExists(t, filepath.Join(cfg.Root, "doc-1.41.0-i686"), "doc never runs for the failing job")
	for _, name := range []string{"doc-1.41.0-x86_64", "doc-1.60.0-x86_64", "doc-1.60.0-i686"} {
		assert.FileExists(t, filepath.Join(cfg.Root, name))
	}

	last, err := report.NewStore(cfg.Path(cfg.ReportDir)).ReadRun()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, out.RunID, last.RunID)
	assert.FileExists(t, filepath.Join(cfg.Path(cfg.ReportDir), "logs", plan.Jobs[1].Key(), "style.log"))

	entries, err := os.ReadDir(cfg.Path(cfg.WorkDir))
	require.NoError(t, err)
	assert.Empty(t, entries, "job workspaces are destroyed after the outcome is recorded")

	assert.Contains(t, progress.String(), "[1.41.0/i686] FAIL style (exit 1)")
}

func TestRun_EqualVersionsRunTwice(t *testing.T) {
	cfg := newProject(t, "1.60.0", "1.60.0")

	out, err := New(cfg, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Succeeded())
	assert.Len(t, out.Jobs, 4)
}

func TestRun_ResolutionErrorSchedulesNothing(t *testing.T) {
	cfg := newProject(t, "", "1.60.0")

	out, err := New(cfg, Options{}).Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, out)

	var resErr *versions.ResolutionError
	assert.ErrorAs(t, err, &resErr)

	matches, err := filepath.Glob(filepath.Join(cfg.Root, "setup-*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.NoDirExists(t, cfg.Path(cfg.ReportDir))
}

func TestRun_EmptyMatrix(t *testing.T) {
	cfg := newProject(t, "1.41.0", "1.60.0")
	cfg.Platforms = nil

	_, err := New(cfg, Options{}).Run(context.Background())
	assert.ErrorIs(t, err, matrix.ErrEmptyMatrix)
}

func TestResolver_Overrides(t *testing.T) {
	cfg := newProject(t, "", "")

	vs, err := New(cfg, Options{MinVersion: "1.41.0", CurrentVersion: "nightly"}).Resolver().Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []matrix.VersionSpec{"1.41.0", "nightly"}, vs)
}

func TestRun_Cancelled(t *testing.T) {
	cfg := newProject(t, "1.41.0", "1.60.0")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := New(cfg, Options{}).Run(ctx)
	require.NoError(t, err)
	assert.True(t, out.Cancelled)
	assert.Equal(t, fanout.RunFailure, out.Status)
	matches, err := filepath.Glob(filepath.Join(cfg.Root, "setup-*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestRun_ReportDirAtRootLeavesCheckout(t *testing.T) {
	cfg := newProject(t, "1.41.0", "1.60.0")
	cfg.ReportDir = "."

	out, err := New(cfg, Options{}).Run(context.Background())
	var verr *config.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Nil(t, out)
	assert.FileExists(t, filepath.Join(cfg.Root, "Cargo.toml"))
	assert.FileExists(t, filepath.Join(cfg.Root, config.FileName))
}
