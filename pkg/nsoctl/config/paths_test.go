package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigPath(t *testing.T) {
	t.Run("uses NSOCTL_CONFIG env var when set", func(t *testing.T) {
		customPath := "/custom/path/config.yaml"
		t.Setenv("NSOCTL_CONFIG", customPath)

		assert.Equal(t, customPath, DefaultConfigPath())
	})

	t.Run("uses user config dir when NSOCTL_CONFIG not set", func(t *testing.T) {
		t.Setenv("NSOCTL_CONFIG", "")

		result := DefaultConfigPath()
		assert.True(t, strings.HasSuffix(result, filepath.Join("nsoctl", "config.yaml")),
			"Expected path to end with nsoctl/config.yaml, got: %s", result)
	})
}

func TestDefaultTokenPath(t *testing.T) {
	result := DefaultTokenPath()
	assert.True(t, strings.HasSuffix(result, filepath.Join("nsoctl", "tokens.db")),
		"Expected path to end with nsoctl/tokens.db, got: %s", result)
	assert.True(t, filepath.IsAbs(result), "Expected absolute path, got: %s", result)
}
