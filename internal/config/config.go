// Package config resolves sessionizer runtime settings.
//
// Precedence (highest to lowest):
//  1. Command-line flags (--config, --log-level, --verbose, --picker)
//  2. Environment variables (SESSIONIZER_*, then standard OTEL_* fallbacks)
//  3. Built-in defaults
//
// The session history and tracked directories live in a separate document
// whose path is one of these settings; see package store.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "SESSIONIZER"

// Setting keys. Flag names match the keys with '_' replaced by '-'.
const (
	KeyConfig       = "config"
	KeyLogLevel     = "log_level"
	KeyVerbose      = "verbose"
	KeyTmux         = "tmux"
	KeyFzf          = "fzf"
	KeyPicker       = "picker"
	KeyOTELEndpoint = "otel_endpoint"
	KeyOTELHeaders  = "otel_headers"
)

// Picker modes.
const (
	PickerAuto    = "auto"
	PickerFzf     = "fzf"
	PickerBuiltin = "builtin"
)

// Config holds all sessionizer runtime settings.
type Config struct {
	// ConfigFile is the path of the document holding sessions and directories.
	ConfigFile string
	LogLevel   string
	// Verbose forces debug logging regardless of LogLevel.
	Verbose    bool

	// Binaries
	Tmux string
	Fzf  string

	// Picker is one of "auto", "fzf", "builtin".
	Picker string

	// OTEL
	OTELEndpoint string
	OTELHeaders  string // Comma-separated key=value pairs
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		ConfigFile: DefaultConfigFile(),
		LogLevel:   "warn",
		Tmux:       "tmux",
		Fzf:        "fzf",
		Picker:     PickerAuto,
	}
}

// DefaultConfigFile returns $XDG_CONFIG_HOME/sessionizer/config.yaml,
// falling back to ~/.config/sessionizer/config.yaml.
func DefaultConfigFile() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "sessionizer", "config.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "sessionizer", "config.yaml")
	}
	return filepath.Join(".sessionizer", "config.yaml")
}

// New returns a viper instance with defaults and environment bindings
// registered. Flags may be bound afterwards with BindFlags.
func New() *viper.Viper {
	v := viper.New()
	d := Defaults()
	v.SetDefault(KeyConfig, d.ConfigFile)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyVerbose, d.Verbose)
	v.SetDefault(KeyTmux, d.Tmux)
	v.SetDefault(KeyFzf, d.Fzf)
	v.SetDefault(KeyPicker, d.Picker)
	v.SetDefault(KeyOTELEndpoint, "")
	v.SetDefault(KeyOTELHeaders, "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv(KeyOTELEndpoint, envPrefix+"_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = v.BindEnv(KeyOTELHeaders, envPrefix+"_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
	return v
}

// BindFlags binds every flag in fs whose name maps to a setting key.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, key := range []string{KeyConfig, KeyLogLevel, KeyVerbose, KeyPicker, KeyTmux, KeyFzf} {
		f := fs.Lookup(strings.ReplaceAll(key, "_", "-"))
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", f.Name, err)
		}
	}
	return nil
}

// Load reads the settings from v and validates them.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		ConfigFile:   expandHome(v.GetString(KeyConfig)),
		LogLevel:     v.GetString(KeyLogLevel),
		Verbose:      v.GetBool(KeyVerbose),
		Tmux:         v.GetString(KeyTmux),
		Fzf:          v.GetString(KeyFzf),
		Picker:       strings.ToLower(v.GetString(KeyPicker)),
		OTELEndpoint: v.GetString(KeyOTELEndpoint),
		OTELHeaders:  v.GetString(KeyOTELHeaders),
	}

	if cfg.ConfigFile == "" {
		return nil, fmt.Errorf("config path is empty")
	}
	switch cfg.Picker {
	case PickerAuto, PickerFzf, PickerBuiltin:
	default:
		return nil, fmt.Errorf("unknown picker %q (supported: auto, fzf, builtin)", cfg.Picker)
	}
	if cfg.Tmux == "" {
		return nil, fmt.Errorf("tmux binary is empty")
	}
	return cfg, nil
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
