// Package testutil builds synthetic feed screenshots and their recorded
// detections for tests across the module.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o750)
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// WriteJSON marshals v into path, creating parent directories.
func WriteJSON(t *testing.T, path string, v any) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)))
	data, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err, "Failed to marshal %s", path)
	require.NoError(t, os.WriteFile(path, data, 0o600), "Failed to write %s", path)
}

// ReadJSON unmarshals the file at path into v.
func ReadJSON(t *testing.T, path string, v any) {
	t.Helper()

	data, err := os.ReadFile(path) //nolint:gosec // G304: test files with controlled paths
	require.NoError(t, err, "Failed to read %s", path)
	require.NoError(t, json.Unmarshal(data, v), "Failed to unmarshal %s", path)
}
