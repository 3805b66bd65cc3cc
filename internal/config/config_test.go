package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"real", ModeReal},
		{" REAL ", ModeReal},
		{"Real", ModeReal},
		{"mock", ModeMock},
		{"", ModeMock},
		{"production", ModeMock},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveMode(tt.in), tt.in)
	}
}

func TestEffectiveMode(t *testing.T) {
	assert.Equal(t, ModeReal, EffectiveMode("real", ""))
	assert.Equal(t, ModeMock, EffectiveMode("real", "mock"))
	assert.Equal(t, ModeReal, EffectiveMode("mock", "REAL"))
	assert.Equal(t, ModeMock, EffectiveMode("", "  "))
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)
	assert.Equal(t, ModeMock, cfg.Mode)
	assert.Equal(t, "happy", cfg.Scenario)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, "127.0.0.1:8787", cfg.Listen)

	b := cfg.Backoff()
	assert.Equal(t, 3, b.Attempts)
	assert.Equal(t, 200*time.Millisecond, b.Initial)
	assert.Equal(t, 5*time.Second, b.Max)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "trustlens.yaml"), []byte(`
mode: real
base_url: https://backend.example.org/
timeout: 3s
retry:
  attempts: 5
  initial_backoff: 50ms
scenario: slow
`), 0o644))
	t.Setenv("TRUSTLENS_SCENARIO", "empty")
	t.Setenv("TRUSTLENS_RETRY_MAX_BACKOFF", "2s")

	cfg, err := Load(NewViper(), "")
	require.NoError(t, err)
	assert.Equal(t, ModeReal, cfg.Mode)
	assert.Equal(t, "https://backend.example.org", cfg.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, 5, cfg.Retry.Attempts)
	assert.Equal(t, 50*time.Millisecond, cfg.Retry.InitialBackoff)
	assert.Equal(t, 2*time.Second, cfg.Retry.MaxBackoff)
	assert.Equal(t, "empty", cfg.Scenario, "environment overrides the file")
}

func TestDecode_OverrideBeatsEnvironmentMode(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TRUSTLENS_MODE", "real")
	t.Setenv("TRUSTLENS_BASE_URL", "https://backend.example.org")

	v := NewViper()
	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, ModeReal, cfg.Mode)

	v.Set(KeyModeOverride, "mock")
	cfg, err = Decode(v)
	require.NoError(t, err)
	assert.Equal(t, ModeMock, cfg.Mode)

	v.Set(KeyModeOverride, " ")
	cfg, err = Decode(v)
	require.NoError(t, err)
	assert.Equal(t, ModeReal, cfg.Mode, "a blank override keeps the environment default")
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	_, err := Load(NewViper(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"real without base url", map[string]string{"TRUSTLENS_MODE": "real"}},
		{"bad base url", map[string]string{"TRUSTLENS_BASE_URL": "not a url"}},
		{"zero timeout", map[string]string{"TRUSTLENS_TIMEOUT": "0s"}},
		{"zero attempts", map[string]string{"TRUSTLENS_RETRY_ATTEMPTS": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(NewViper(), "")
			assert.Error(t, err)
		})
	}
}

func TestDecode_UnknownModeIsMock(t *testing.T) {
	v := NewViper()
	v.Set(KeyMode, "staging")
	cfg, err := Decode(v)
	require.NoError(t, err)
	assert.Equal(t, ModeMock, cfg.Mode)
}
