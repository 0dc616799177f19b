package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	cfg := Defaults()

	assert.Equal(t, filepath.Join("/xdg", "sessionizer", "config.yaml"), cfg.ConfigFile)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, "tmux", cfg.Tmux)
	assert.Equal(t, PickerAuto, cfg.Picker)
}

func TestDefaultConfigFile_HomeFallback(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/tester")

	want := filepath.Join("/home/tester", ".config", "sessionizer", "config.yaml")
	assert.Equal(t, want, DefaultConfigFile())
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("SESSIONIZER_CONFIG", "/tmp/s.toml")
	t.Setenv("SESSIONIZER_LOG_LEVEL", "debug")
	t.Setenv("SESSIONIZER_PICKER", "BUILTIN")
	t.Setenv("SESSIONIZER_TMUX", "/opt/bin/tmux")
	t.Setenv("SESSIONIZER_VERBOSE", "true")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, "/tmp/s.toml", cfg.ConfigFile)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, PickerBuiltin, cfg.Picker)
	assert.Equal(t, "/opt/bin/tmux", cfg.Tmux)
	assert.True(t, cfg.Verbose)
}

func TestLoad_OTELFallbackEnv(t *testing.T) {
	t.Setenv("SESSIONIZER_OTEL_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "Authorization=Basic abc")

	cfg, err := Load(New())
	require.NoError(t, err)
	assert.Equal(t, "http://collector:4318", cfg.OTELEndpoint)
	assert.Equal(t, "Authorization=Basic abc", cfg.OTELHeaders)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("SESSIONIZER_CONFIG", "/from/env.yaml")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.String("log-level", "", "")
	fs.String("picker", "", "")
	fs.Bool("verbose", false, "")
	require.NoError(t, fs.Parse([]string{"--config", "/from/flag.yaml", "--log-level", "error", "--verbose"}))

	v := New()
	require.NoError(t, BindFlags(v, fs))
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/from/flag.yaml", cfg.ConfigFile)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.True(t, cfg.Verbose)
}

func TestLoad_RejectsUnknownPicker(t *testing.T) {
	t.Setenv("SESSIONIZER_PICKER", "rofi")
	_, err := Load(New())
	assert.ErrorContains(t, err, "unknown picker")
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := []struct {
		in   string
		want string
	}{
		{"~/x/config.yaml", filepath.Join(home, "x", "config.yaml")},
		{"~", home},
		{"/abs/config.yaml", "/abs/config.yaml"},
		{"~other/config.yaml", "~other/config.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, expandHome(tt.in))
		})
	}
}
