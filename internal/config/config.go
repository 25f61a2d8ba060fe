// SPDX-License-Identifier: Apache-2.0

// Package config loads askpass-bridge settings from a YAML file and
// ASKPASS_BRIDGE_* environment variables. Command-line flags are applied
// on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultServiceKey is the vault service name tokens are stored under.
const DefaultServiceKey = "git-askpass-bridge"

// Config holds all settings of the host process.
type Config struct {
	// RuntimeDir holds the channel socket. Empty means $XDG_RUNTIME_DIR,
	// then the temp directory. Ignored on Windows.
	RuntimeDir string `yaml:"runtime_dir"`
	// ScriptDir receives the askpass shell scripts.
	ScriptDir string `yaml:"script_dir"`
	// ClientPath is the askpass-client binary. Empty means next to the
	// running executable.
	ClientPath string `yaml:"client_path"`
	// Backend selects the token vault (see store.Open).
	Backend string `yaml:"backend"`
	// HelperPath is wincred-helper.exe for the wincred-helper backend.
	HelperPath string `yaml:"helper_path"`
	// ServiceKey scopes stored tokens in the vault.
	ServiceKey string `yaml:"service_key"`
	// PromptTimeout bounds how long a prompt waits for the user. Zero
	// waits forever.
	PromptTimeout time.Duration `yaml:"prompt_timeout"`
	LogLevel      string        `yaml:"log_level"`
	LogFormat     string        `yaml:"log_format"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		ScriptDir:  filepath.Join(DefaultDir(), "scripts"),
		Backend:    "auto",
		ServiceKey: DefaultServiceKey,
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

// DefaultDir returns the XDG-compliant config directory.
func DefaultDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "askpass-bridge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".askpass-bridge"
	}
	return filepath.Join(home, ".config", "askpass-bridge")
}

// DefaultPath is the config file read when none is given.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error when path is the default location.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"ASKPASS_BRIDGE_RUNTIME_DIR": &c.RuntimeDir,
		"ASKPASS_BRIDGE_SCRIPT_DIR":  &c.ScriptDir,
		"ASKPASS_BRIDGE_CLIENT_PATH": &c.ClientPath,
		"ASKPASS_BRIDGE_BACKEND":     &c.Backend,
		"ASKPASS_BRIDGE_HELPER_PATH": &c.HelperPath,
		"ASKPASS_BRIDGE_SERVICE_KEY": &c.ServiceKey,
		"ASKPASS_BRIDGE_LOG_LEVEL":   &c.LogLevel,
		"ASKPASS_BRIDGE_LOG_FORMAT":  &c.LogFormat,
	}
	for name, field := range strs {
		if v, ok := lookup(name); ok && v != "" {
			*field = v
		}
	}
	if v, ok := lookup("ASKPASS_BRIDGE_PROMPT_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ASKPASS_BRIDGE_PROMPT_TIMEOUT: %w", err)
		}
		c.PromptTimeout = d
	}
	return nil
}

// Validate checks values that cannot be caught by parsing.
func (c Config) Validate() error {
	if c.PromptTimeout < 0 {
		return fmt.Errorf("prompt_timeout must not be negative, got %s", c.PromptTimeout)
	}
	if c.ServiceKey == "" {
		return errors.New("service_key must not be empty")
	}
	if c.ScriptDir == "" {
		return errors.New("script_dir must not be empty")
	}
	return nil
}
