// Package matrix expands a resolved toolchain version sequence and the
// declared target platforms into the job matrix of a run.
package matrix

import (
	"fmt"
	"strings"
)

// VersionSpec names a toolchain version, e.g. "1.60.0" or "nightly-2024-01-01".
type VersionSpec string

func (v VersionSpec) String() string { return string(v) }

// PlatformSpec is one declared target platform.
type PlatformSpec struct {
	OS     string `json:"os" yaml:"os"`
	Triple string `json:"triple" yaml:"triple"`
}

func (p PlatformSpec) String() string {
	return p.OS + "/" + p.Triple
}

// JobSpec is one cell of the matrix. Index is its position in matrix order
// and is unique within a run even when two versions are equal.
type JobSpec struct {
	Index    int          `json:"index"`
	Version  VersionSpec  `json:"version"`
	Platform PlatformSpec `json:"platform"`
}

// ID returns a human-readable identity of the job ("1.60.0/x86_64-unknown-linux-gnu").
func (j JobSpec) ID() string {
	return fmt.Sprintf("%s/%s", j.Version, j.Platform.Triple)
}

// Key returns a filesystem-safe identity that is unique within a run.
func (j JobSpec) Key() string {
	return fmt.Sprintf("%02d-%s-%s", j.Index, sanitize(string(j.Version)), sanitize(j.Platform.Triple))
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
