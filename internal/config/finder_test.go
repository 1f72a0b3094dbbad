package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindLocalConfig(t *testing.T) {
	// Create a temporary directory structure
	tempDir := t.TempDir()
	subDir := filepath.Join(tempDir, "subdir")
	err := os.Mkdir(subDir, 0o755)
	assert.NoError(t, err)

	// Create config files
	configYML := filepath.Join(subDir, ".gqlpipe.yml")
	err = os.WriteFile(configYML, []byte("name: backend"), 0o644)
	assert.NoError(t, err)

	// Test finding in subdir
	result := FindLocalConfig(subDir)
	assert.Equal(t, configYML, result)

	// Test finding in parent
	result = FindLocalConfig(filepath.Join(subDir, "deep"))
	assert.Equal(t, configYML, result)

	// Test not found
	result = FindLocalConfig(tempDir)
	assert.Equal(t, "", result)
}

func TestFindLocalConfig_PrefersYML(t *testing.T) {
	tempDir := t.TempDir()
	yml := filepath.Join(tempDir, ".gqlpipe.yml")
	json := filepath.Join(tempDir, ".gqlpipe.json")
	assert.NoError(t, os.WriteFile(json, []byte(`{"name":"x"}`), 0o644))
	assert.NoError(t, os.WriteFile(yml, []byte("name: x"), 0o644))

	assert.Equal(t, yml, FindLocalConfig(tempDir))
}
