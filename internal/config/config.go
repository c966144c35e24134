// Package config loads the engine's runtime configuration from a YAML
// file, with LDLM_-prefixed environment variables overriding the file's
// values. Command-line flags are not bound.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/dittofs/ldlm/pkg/ldlm"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const envPrefix = "LDLM"

// Load reads configuration from configPath (or the default search path
// when empty) over ldlm.DefaultConfig. When a file is found, an
// environment variable prefixed LDLM_ overrides the value of a key the
// file sets; keys absent from the file keep their defaults. When no file
// is found, DefaultConfig is returned as is and the environment is not
// consulted.
func Load(configPath string) (*ldlm.Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := ldlm.DefaultConfig()
	if !found {
		return &cfg, nil
	}

	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// MustLoad behaves like Load but turns a missing explicit config file
// into an actionable error instead of silently falling back to defaults.
func MustLoad(configPath string) (*ldlm.Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", configPath)
		}
	}
	return Load(configPath)
}

// setupViper wires environment variable support and config file search
// under the engine's own prefix and default search directory.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	v.AddConfigPath(defaultConfigDir())
	v.AddConfigPath(".")
	v.SetConfigName("ldlm")
	v.SetConfigType("yaml")
}

// readConfigFile reads the configured file, treating "not found" as a
// normal, non-error condition: the caller falls back to defaults.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// durationDecodeHook lets config files and environment variables spell
// durations as "30s"/"5m"/"1h" instead of raw nanosecond counts.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// defaultConfigDir returns $XDG_CONFIG_HOME/ldlm, or ~/.config/ldlm, or
// "." if no home directory can be determined.
func defaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ldlm")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "ldlm")
}
