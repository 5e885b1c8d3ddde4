package versions

import "fmt"

// ResolutionError reports a version source that could not be read or did
// not hold a usable version. It is fatal to the whole run.
type ResolutionError struct {
	Source string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving version from %s: %v", e.Source, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }
