package versions

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/bartekus/matrixci/internal/matrix"
)

var (
	ErrFieldMissing = errors.New("version field missing")
	ErrMalformed    = errors.New("malformed version")
)

var versionPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._+-]*$`)

// Source yields a single version string.
type Source interface {
	Resolve() (matrix.VersionSpec, error)
	// Describe names the source in errors and logs.
	Describe() string
}

// ManifestSource reads a version string from a TOML project manifest, e.g.
// the rust-version of Cargo.toml. Field is a dotted key path.
type ManifestSource struct {
	Path  string
	Field string
}

func (s ManifestSource) Describe() string {
	return fmt.Sprintf("%s (%s)", s.Path, s.Field)
}

func (s ManifestSource) Resolve() (matrix.VersionSpec, error) {
	var doc map[string]any
	if _, err := toml.DecodeFile(s.Path, &doc); err != nil {
		return "", fmt.Errorf("reading manifest: %w", err)
	}

	var cur any = doc
	for _, key := range strings.Split(s.Field, ".") {
		table, ok := cur.(map[string]any)
		if !ok {
			return "", fmt.Errorf("%w: %q is not a table", ErrFieldMissing, key)
		}
		if cur, ok = table[key]; !ok {
			return "", fmt.Errorf("%w: %s", ErrFieldMissing, s.Field)
		}
	}

	str, ok := cur.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T, want string", ErrMalformed, s.Field, cur)
	}
	return validate(str)
}

// PinnedSource reads the pinned toolchain descriptor. Both the legacy
// single-line form and the TOML form ([toolchain] channel = "...") are accepted.
type PinnedSource struct {
	Path string
}

func (s PinnedSource) Describe() string { return s.Path }

func (s PinnedSource) Resolve() (matrix.VersionSpec, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", fmt.Errorf("reading pinned descriptor: %w", err)
	}

	if filepath.Ext(s.Path) == ".toml" || bytes.Contains(data, []byte("[toolchain]")) {
		var desc struct {
			Toolchain struct {
				Channel string `toml:"channel"`
			} `toml:"toolchain"`
		}
		if _, err := toml.Decode(string(data), &desc); err != nil {
			return "", fmt.Errorf("decoding pinned descriptor: %w", err)
		}
		if desc.Toolchain.Channel == "" {
			return "", fmt.Errorf("%w: toolchain.channel", ErrFieldMissing)
		}
		return validate(desc.Toolchain.Channel)
	}

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	switch len(lines) {
	case 0:
		return "", fmt.Errorf("%w: descriptor is empty", ErrFieldMissing)
	case 1:
		return validate(lines[0])
	default:
		return "", fmt.Errorf("%w: descriptor has %d values, want 1", ErrMalformed, len(lines))
	}
}

// StaticSource is a version given directly, e.g. on the command line.
type StaticSource struct {
	Value string
	Label string
}

func (s StaticSource) Describe() string {
	if s.Label != "" {
		return s.Label
	}
	return "static value"
}

func (s StaticSource) Resolve() (matrix.VersionSpec, error) {
	return validate(s.Value)
}

func validate(raw string) (matrix.VersionSpec, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", fmt.Errorf("%w: empty", ErrMalformed)
	}
	if !versionPattern.MatchString(v) {
		return "", fmt.Errorf("%w: %q", ErrMalformed, v)
	}
	return matrix.VersionSpec(v), nil
}
