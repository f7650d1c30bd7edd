package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "clamp", cfg.Workspace.EscapePolicy)
	assert.Equal(t, 10*time.Minute, cfg.Pool.MaxSessionAge)
	assert.Equal(t, 30*time.Minute, cfg.Pool.MaxIdle)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(
		"server:\n  port: \"9000\"\npool:\n  max_session_age: 1m\n"), 0o644))

	t.Setenv("CONFIG_FILE", file)
	t.Setenv("PORT", "9100")

	cfg, err := Load()
	require.NoError(t, err)

	// Environment beats file; file beats defaults; defaults fill the rest.
	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.Pool.MaxSessionAge)
	assert.Equal(t, 30*time.Minute, cfg.Pool.MaxIdle)
}

func TestLoadRejectsBadEscapePolicy(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("WORKSPACE_ESCAPE_POLICY", "ignore")

	_, err := Load()
	assert.Error(t, err)
}
