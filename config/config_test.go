package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHasNoOptimizationAndNoFutureFeatures(t *testing.T) {
	p := Default()
	assert.Equal(t, OptimizeNone, p.Optimize)
	assert.Empty(t, p.FutureFeatures)
	assert.False(t, p.DebugCapture)
}

func TestLoadParsesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
optimize: 2
future_features:
  annotations: true
debug_capture: true
`), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, OptimizeDocs, p.Optimize)
	assert.True(t, p.FutureFeatures["annotations"])
	assert.True(t, p.DebugCapture)
}

func TestLoadReturnsErrorForMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadReturnsErrorForMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("optimize: [this is not an int"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
