// Package versions resolves the toolchain versions a run tests against: the
// declared minimum-supported version and the pinned current version.
package versions

import (
	"context"

	"github.com/bartekus/matrixci/internal/ctxlog"
	"github.com/bartekus/matrixci/internal/matrix"
)

// Resolver combines the minimum and current version sources.
type Resolver struct {
	Minimum Source
	Current Source
}

// NewResolver creates a resolver over the two sources.
func NewResolver(minimum, current Source) *Resolver {
	return &Resolver{Minimum: minimum, Current: current}
}

// Resolve returns [minimum, current]. Equal values are both kept. Any source
// failure is returned as a *ResolutionError and no partial result is given.
func (r *Resolver) Resolve(ctx context.Context) ([]matrix.VersionSpec, error) {
	logger := ctxlog.FromContext(ctx)

	out := make([]matrix.VersionSpec, 0, 2)
	for _, src := range []Source{r.Minimum, r.Current} {
		v, err := src.Resolve()
		if err != nil {
			return nil, &ResolutionError{Source: src.Describe(), Err: err}
		}
		logger.Debug("Resolved toolchain version.", "source", src.Describe(), "version", v)
		out = append(out, v)
	}
	return out, nil
}
