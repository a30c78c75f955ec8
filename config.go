package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the optional demo configuration loaded from config.yaml.
type Config struct {
	Reader struct {
		// Name selects a reader by substring match; empty picks the
		// first one.
		Name string `yaml:"name"`
	} `yaml:"reader"`

	Demo struct {
		// SelectPath is the file-id path the tour selects, written as
		// hex pairs separated by '/', e.g. "3F00/DF01".
		SelectPath string `yaml:"select_path"`

		// GenerateKeyID and GenerateKeyBits enable the on-card key
		// generation step when GenerateKeyBits is non-zero.
		GenerateKeyID   int `yaml:"generate_key_id"`
		GenerateKeyBits int `yaml:"generate_key_bits"`
	} `yaml:"demo"`
}

// loadConfig reads path and applies defaults. A missing file is not
// an error: the tour runs with defaults.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Demo.SelectPath = "3F00"

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if strings.TrimSpace(cfg.Demo.SelectPath) == "" {
		cfg.Demo.SelectPath = "3F00"
	}
	return cfg, nil
}
