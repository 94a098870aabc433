// Copyright 2025 OpenClaw Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the daemon configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openclaw/openclaw/internal/agent"
	"github.com/openclaw/openclaw/internal/dispatch/watchdog"
	"github.com/openclaw/openclaw/internal/notify"
	"github.com/openclaw/openclaw/pkg/errors"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "5m" or "2h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard-library duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Watchdog configures the agent-run inactivity watchdog. Zero fields
// fall back to the built-in defaults.
type Watchdog struct {
	InactivitySec  int `yaml:"inactivity_sec"`
	MaxTotalSec    int `yaml:"max_total_sec"`
	ToolTimeoutSec int `yaml:"tool_timeout_sec"`
}

// Resolve converts to the watchdog package's config.
func (w Watchdog) Resolve() watchdog.Config {
	return watchdog.Config{
		Inactivity:  time.Duration(w.InactivitySec) * time.Second,
		MaxTotal:    time.Duration(w.MaxTotalSec) * time.Second,
		ToolTimeout: time.Duration(w.ToolTimeoutSec) * time.Second,
	}.WithDefaults()
}

// Config is the full daemon configuration.
type Config struct {
	// DispatchStatePath is the locked JSON state file.
	// Default: ~/.openclaw/linear-dispatch-state.json
	DispatchStatePath string `yaml:"dispatch_state_path"`

	// JournalPath is the SQLite transition journal. Empty disables the
	// journal.
	JournalPath string `yaml:"journal_path"`

	// ArtifactsDir stores worker output files. Empty disables artifacts.
	ArtifactsDir string `yaml:"artifacts_dir"`

	// PromptDir optionally overrides the built-in prompt templates.
	PromptDir string `yaml:"prompt_dir"`

	// Listen is the daemon's HTTP address for health and metrics.
	Listen string `yaml:"listen"`

	// MaxReworkAttempts is the audit-fail rework budget. Explicit zero
	// disables rework; leaving it unset means 2.
	MaxReworkAttempts *int `yaml:"max_rework_attempts"`

	CompleteStuckDispatches bool `yaml:"complete_stuck_dispatches"`

	MonitorTick        Duration `yaml:"monitor_tick"`
	StaleMaxAge        Duration `yaml:"stale_max_age"`
	CompletedRetention Duration `yaml:"completed_retention"`

	Watchdog Watchdog `yaml:"watchdog"`

	WorkerAgent  string `yaml:"worker_agent"`
	AuditorAgent string `yaml:"auditor_agent"`

	// Agent is the subprocess invocation for agent runs.
	Agent agent.CLIConfig `yaml:"agent"`

	Slack notify.SlackConfig `yaml:"slack"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	rework := 2
	return &Config{
		Listen:             "127.0.0.1:9090",
		MaxReworkAttempts:  &rework,
		MonitorTick:        Duration(5 * time.Minute),
		StaleMaxAge:        Duration(2 * time.Hour),
		CompletedRetention: Duration(7 * 24 * time.Hour),
	}
}

// Dir returns the OpenClaw config directory, honoring XDG_CONFIG_HOME.
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "openclaw"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolving home directory")
	}
	return filepath.Join(home, ".config", "openclaw"), nil
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "dispatch.yaml"), nil
}

// Load reads the config at path, applying defaults for anything unset.
// A missing file yields the defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "reading config %s", path)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	for _, p := range []*string{&cfg.DispatchStatePath, &cfg.JournalPath, &cfg.ArtifactsDir, &cfg.PromptDir} {
		expanded, err := expandHome(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.MaxReworkAttempts == nil {
		c.MaxReworkAttempts = d.MaxReworkAttempts
	}
	if c.MonitorTick == 0 {
		c.MonitorTick = d.MonitorTick
	}
	if c.StaleMaxAge == 0 {
		c.StaleMaxAge = d.StaleMaxAge
	}
	if c.CompletedRetention == 0 {
		c.CompletedRetention = d.CompletedRetention
	}
}

func (c *Config) validate() error {
	if c.MaxReworkAttempts != nil && *c.MaxReworkAttempts < 0 {
		return errors.New("config: max_rework_attempts must not be negative")
	}
	if c.Slack.Token != "" && c.Slack.Channel == "" {
		return errors.New("config: slack.channel is required when slack.token is set")
	}
	return nil
}

// expandHome resolves a leading ~/ against the user's home directory.
func expandHome(path string) (string, error) {
	if path == "" || !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolving home directory")
	}
	return filepath.Join(home, path[2:]), nil
}
