package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bartekus/matrixci/internal/fanout"
	"github.com/bartekus/matrixci/internal/runner"
)

// Store writes the report of a run under a base directory:
//
//	run.json            the RunOutcome
//	jobs/<key>.json     one JobOutcome per job
//	logs/<key>/*.log    full stage output
//
// The engine never reads a report back; each run starts from Reset.
type Store struct {
	baseDir string
}

// NewStore creates a store at the given base directory (e.g. .matrixci/run).
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Dir returns the base directory.
func (s *Store) Dir() string { return s.baseDir }

// LogDir returns the directory that receives per-job stage logs.
func (s *Store) LogDir() string { return filepath.Join(s.baseDir, "logs") }

func (s *Store) runPath() string {
	return filepath.Join(s.baseDir, "run.json")
}

// Reset clears the report directory.
func (s *Store) Reset() error {
	return os.RemoveAll(s.baseDir)
}

// ReadRun loads the last written run report. A missing report is (nil, nil).
func (s *Store) ReadRun() (*fanout.RunOutcome, error) {
	f, err := os.Open(s.runPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening run report: %w", err)
	}
	defer func() { _ = f.Close() }()

	var out fanout.RunOutcome
	if err := json.NewDecoder(f).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding run report: %w", err)
	}
	return &out, nil
}

// WriteRun saves the run outcome and one file per job outcome.
func (s *Store) WriteRun(out *fanout.RunOutcome) error {
	for _, job := range out.Jobs {
		if err := s.writeJob(job); err != nil {
			return fmt.Errorf("writing result for %s: %w", job.Job.ID(), err)
		}
	}
	return writeJSON(s.runPath(), out)
}

func (s *Store) writeJob(job runner.JobOutcome) error {
	return writeJSON(filepath.Join(s.baseDir, "jobs", job.Job.Key()+".json"), job)
}

func writeJSON(path string, v any) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		cerr := f.Close()
		if err == nil {
			err = cerr
		}
	}()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
