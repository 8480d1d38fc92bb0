// Package testutil provides helpers for testing keywarden against fake
// external tools in isolation from the host system.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteTool writes an executable shell script into dir and returns its
// path. Tests use these as stand-ins for gpg, apt-key, and friends so
// the subprocess wrappers can be exercised without touching real
// trust-store state.
func WriteTool(t *testing.T, dir, name, script string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	body := "#!/bin/sh\n" + script + "\n"
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("failed to write fake tool %s: %v", name, err)
	}
	return path
}

// ScopedPath restricts PATH to the given directories for the duration
// of the test, so lookups only find the fake tools the test planted.
func ScopedPath(t *testing.T, dirs ...string) {
	t.Helper()

	path := ""
	for i, dir := range dirs {
		if i > 0 {
			path += string(os.PathListSeparator)
		}
		path += dir
	}
	t.Setenv("PATH", path)
}
