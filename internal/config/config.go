// Package config loads and validates the optional .dispatch YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for command execution.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultMaxOutput      = 30000 // characters of content kept per command
	DefaultMaxConcurrency = 10
	DefaultShell          = "bash"
)

// Config holds the parsed .dispatch configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version           int    `yaml:"version"`
	RawTimeout        string `yaml:"timeout"`         // e.g. "30s", "5m"; per-command wall clock
	RawMaxOutput      int    `yaml:"max_output"`      // characters kept per command before truncation
	RawMaxConcurrency int    `yaml:"max_concurrency"` // simultaneous commands per batch
	RawShell          string `yaml:"shell"`           // shell binary, resolved via PATH
}

// Timeout returns the configured per-command timeout or the default.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return DefaultTimeout
}

// MaxOutput returns the configured content budget or the default.
func (c *Config) MaxOutput() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// MaxConcurrency returns the configured batch concurrency cap or the default.
func (c *Config) MaxConcurrency() int {
	if c.RawMaxConcurrency > 0 {
		return c.RawMaxConcurrency
	}
	return DefaultMaxConcurrency
}

// Shell returns the configured shell binary or the default.
func (c *Config) Shell() string {
	if c.RawShell != "" {
		return c.RawShell
	}
	return DefaultShell
}

// LoadResult holds the parsed config and the directory it came from.
type LoadResult struct {
	Config *Config
	Root   string // directory containing .dispatch; falls back to workspace
}

// Load reads the .dispatch file for a workspace. The file is discovered
// by walking upward from workspace, so a setting at the project root
// covers commands run in subdirectories. A missing file yields defaults.
func Load(workspace string) (*LoadResult, error) {
	root, path, err := findConfig(workspace)
	if err != nil {
		return &LoadResult{Config: &Config{}, Root: workspace}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &LoadResult{Config: &Config{}, Root: workspace}, nil
		}
		return nil, fmt.Errorf("reading .dispatch: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing .dispatch: %w", err)
	}
	return &LoadResult{Config: cfg, Root: root}, nil
}

// findConfig walks upward from dir looking for a .dispatch file.
func findConfig(dir string) (root, path string, err error) {
	dir, err = filepath.Abs(dir)
	if err != nil {
		return "", "", err
	}
	for {
		candidate := filepath.Join(dir, ".dispatch")
		if _, err := os.Stat(candidate); err == nil {
			return dir, candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", "", fmt.Errorf(".dispatch not found")
		}
		dir = parent
	}
}
