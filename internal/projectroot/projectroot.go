// Package projectroot locates the root of the project under test.
package projectroot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Marker is the file that identifies a project root.
const Marker = ".matrixci.yaml"

// ErrNotFound is returned when no ancestor directory holds Marker.
var ErrNotFound = errors.New("project root not found")

// Find walks up from start until it finds a directory containing Marker.
func Find(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		info, err := os.Stat(filepath.Join(dir, Marker))
		if err == nil && !info.IsDir() {
			return dir, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("checking %s: %w", dir, err)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: no %s in %s or any parent", ErrNotFound, Marker, start)
		}
		dir = parent
	}
}
