package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-flash", cfg.Gemini.Model)
	assert.Equal(t, ":8001", cfg.Stages.Analysis.Addr)
	assert.Equal(t, "http://127.0.0.1:8002", cfg.Stages.Diagnosis.URL)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `gemini:
  api_key: file-key
  model: gemini-1.5-pro
stages:
  diagnosis:
    addr: ":9002"
    url: "http://diagnosis.internal:9002"
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file-key", cfg.Gemini.APIKey)
	assert.Equal(t, "gemini-1.5-pro", cfg.Gemini.Model)
	assert.Equal(t, ":9002", cfg.Stages.Diagnosis.Addr)
	assert.Equal(t, "http://diagnosis.internal:9002", cfg.Stages.Diagnosis.URL)
	// Untouched sections keep their defaults.
	assert.Equal(t, ":8001", cfg.Stages.Analysis.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gemini:\n  api_key: file-key\n"), 0o644))

	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("STAGE_ANALYSIS_ADDR", ":7001")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Gemini.APIKey)
	assert.Equal(t, ":7001", cfg.Stages.Analysis.Addr)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")

	cfg.Gemini.APIKey = "key"
	require.NoError(t, cfg.Validate())

	cfg.Stages.Remediation.Addr = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remediation")
}

func TestGeminiTimeout(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "120s", cfg.Gemini.Timeout)
	assert.Equal(t, float64(120), cfg.GeminiTimeout().Seconds())

	cfg.Gemini.Timeout = "not-a-duration"
	assert.Equal(t, float64(120), cfg.GeminiTimeout().Seconds())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Gemini.Model = "gemini-1.5-pro"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-pro", loaded.Gemini.Model)
}
