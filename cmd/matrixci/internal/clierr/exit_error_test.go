package clierr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bartekus/matrixci/internal/config"
	"github.com/bartekus/matrixci/internal/matrix"
	"github.com/bartekus/matrixci/internal/versions"
)

func TestExitCodeOf(t *testing.T) {
	assert.Equal(t, 0, ExitCodeOf(nil))
	assert.Equal(t, 1, ExitCodeOf(errors.New("plain")))
	assert.Equal(t, 7, ExitCodeOf(New(7, "seven")))
	assert.Equal(t, 1, ExitCodeOf(New(0, "never zero")))
	assert.Equal(t, 4, ExitCodeOf(fmt.Errorf("outer: %w", Newf(4, "inner %d", 4))))
}

func TestWrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(ExitConfig, "configuration error", cause)
	assert.Equal(t, "configuration error: disk full", err.Error())
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, "bare", Wrap(2, "bare", nil).Error())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"resolution", &versions.ResolutionError{Source: "Cargo.toml", Err: versions.ErrFieldMissing}, ExitResolution},
		{"empty matrix", fmt.Errorf("planning: %w", &matrix.EmptyMatrixError{Versions: 2}), ExitConfig},
		{"validation", &config.ValidationError{Problems: []string{"x"}}, ExitConfig},
		{"already coded", New(ExitCancelled, "cancelled"), ExitCancelled},
		{"unknown", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, ExitCodeOf(Classify(tt.err)))
		})
	}
	assert.NoError(t, Classify(nil))
}
