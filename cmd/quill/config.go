package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// cliConfig mirrors the optional YAML config file. Flags and
// environment variables override anything set here.
type cliConfig struct {
	BaseURL        string        `yaml:"baseUrl"`
	Token          string        `yaml:"token"`
	UserID         string        `yaml:"userId"`
	Guest          bool          `yaml:"guest"`
	PageSize       int           `yaml:"pageSize"`
	Interval       time.Duration `yaml:"interval"`
	IntervalJitter *float64      `yaml:"intervalJitter"`
	Timeout        time.Duration `yaml:"timeout"`
}

func loadConfigFile(path string) (cliConfig, error) {
	var cfg cliConfig
	path = strings.TrimSpace(path)
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.PageSize < 0 {
		return cfg, fmt.Errorf("config %s: pageSize must not be negative", path)
	}
	if cfg.IntervalJitter != nil && (*cfg.IntervalJitter < 0 || *cfg.IntervalJitter > 1) {
		return cfg, fmt.Errorf("config %s: intervalJitter must be within [0, 1]", path)
	}
	return cfg, nil
}
