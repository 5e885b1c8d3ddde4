// Package golden compares rendered output with files under testdata/.
package golden

import (
	"flag"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// Update rewrites golden files with the current output.
var Update = flag.Bool("update", false, "update golden files")

func testdataDir(t *testing.T, skip int) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(skip)
	if !ok {
		t.Fatalf("runtime.Caller failed")
	}
	return filepath.Join(filepath.Dir(filename), "testdata")
}

// Assert compares got with testdata/<name>.golden next to the calling test,
// rewriting the file first when -update is set.
func Assert(t *testing.T, name, got string) {
	t.Helper()
	dir := testdataDir(t, 2)
	if *Update {
		Write(t, dir, name, got)
	}
	want, ok := Read(t, dir, name)
	if !ok {
		t.Fatalf("missing golden file %s.golden; run with -update", name)
	}
	if got != want {
		t.Errorf("output does not match %s.golden\n--- want\n%s\n--- got\n%s", name, want, got)
	}
}

// Read returns the golden content and whether the file exists.
func Read(t *testing.T, testdataDir, name string) (string, bool) {
	t.Helper()
	safeName(t, name)

	path := filepath.Join(testdataDir, name+".golden")
	data, err := os.ReadFile(path) //nolint:gosec // testdata path controlled by test
	if err != nil {
		if os.IsNotExist(err) {
			return "", false
		}
		t.Fatalf("read golden %s: %v", path, err)
	}
	return string(data), true
}

func Write(t *testing.T, testdataDir, name, content string) {
	t.Helper()
	safeName(t, name)

	if err := os.MkdirAll(testdataDir, 0o750); err != nil {
		t.Fatalf("mkdir testdata: %v", err)
	}
	path := filepath.Join(testdataDir, name+".golden")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write golden %s: %v", path, err)
	}
}

func safeName(t *testing.T, name string) {
	t.Helper()
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		t.Fatalf("invalid golden name %q", name)
	}
}
