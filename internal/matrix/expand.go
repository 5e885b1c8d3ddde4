package matrix

import (
	"errors"
	"fmt"
)

// ErrEmptyMatrix is matched by every EmptyMatrixError.
var ErrEmptyMatrix = errors.New("empty job matrix")

// EmptyMatrixError reports a matrix with zero jobs. It is a configuration
// error, never a vacuous success.
type EmptyMatrixError struct {
	Versions  int
	Platforms int
}

func (e *EmptyMatrixError) Error() string {
	return fmt.Sprintf("empty job matrix: %d version(s) x %d platform(s)", e.Versions, e.Platforms)
}

func (e *EmptyMatrixError) Is(target error) bool { return target == ErrEmptyMatrix }

// Expand returns the Cartesian product of versions and platforms in
// version-major order: every platform of versions[0], then every platform
// of versions[1], and so on. Equal versions are not collapsed.
func Expand(versions []VersionSpec, platforms []PlatformSpec) ([]JobSpec, error) {
	if len(versions) == 0 || len(platforms) == 0 {
		return nil, &EmptyMatrixError{Versions: len(versions), Platforms: len(platforms)}
	}

	jobs := make([]JobSpec, 0, len(versions)*len(platforms))
	for _, v := range versions {
		for _, p := range platforms {
			jobs = append(jobs, JobSpec{
				Index:    len(jobs),
				Version:  v,
				Platform: p,
			})
		}
	}
	return jobs, nil
}
