package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.hcl")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("no file yields defaults", func(t *testing.T) {
		t.Setenv(TokenEnvVar, "")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, ":8000", cfg.ListenAddr)
		assert.Equal(t, "https://api.datawrapper.de", cfg.Datawrapper.BaseURL)
		assert.Equal(t, "30s", cfg.Datawrapper.AttemptTimeout)
		assert.Equal(t, 3, cfg.Datawrapper.MaxRetries)
		assert.Empty(t, cfg.Datawrapper.Token)
	})

	t.Run("file values are decoded", func(t *testing.T) {
		t.Setenv(TokenEnvVar, "")
		path := writeConfigFile(t, `
listen_addr = ":9000"

datawrapper {
  base_url        = "https://dw.example.com"
  token           = "file-token"
  attempt_timeout = "10s"
  max_retries     = 5
}
`)

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, ":9000", cfg.ListenAddr)
		assert.Equal(t, "https://dw.example.com", cfg.Datawrapper.BaseURL)
		assert.Equal(t, "file-token", cfg.Datawrapper.Token)
		assert.Equal(t, "10s", cfg.Datawrapper.AttemptTimeout)
		assert.Equal(t, 5, cfg.Datawrapper.MaxRetries)
	})

	t.Run("environment token wins over file token", func(t *testing.T) {
		t.Setenv(TokenEnvVar, "env-token")
		path := writeConfigFile(t, `
datawrapper {
  token = "file-token"
}
`)

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "env-token", cfg.Datawrapper.Token)
	})

	t.Run("partial file keeps remaining defaults", func(t *testing.T) {
		t.Setenv(TokenEnvVar, "")
		path := writeConfigFile(t, `
datawrapper {
  base_url = "https://dw.example.com"
}
`)

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, ":8000", cfg.ListenAddr)
		assert.Equal(t, "30s", cfg.Datawrapper.AttemptTimeout)
		assert.Equal(t, 3, cfg.Datawrapper.MaxRetries)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.hcl"))
		require.Error(t, err)
	})

	t.Run("bad attempt_timeout is rejected", func(t *testing.T) {
		t.Setenv(TokenEnvVar, "")
		path := writeConfigFile(t, `
datawrapper {
  attempt_timeout = "soon"
}
`)

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "attempt_timeout")
	})
}

func TestParsedAttemptTimeout(t *testing.T) {
	d := &Datawrapper{AttemptTimeout: "45s"}
	assert.Equal(t, 45*time.Second, d.ParsedAttemptTimeout())

	d = &Datawrapper{AttemptTimeout: "garbage"}
	assert.Equal(t, 30*time.Second, d.ParsedAttemptTimeout())
}
