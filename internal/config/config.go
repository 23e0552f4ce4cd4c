// Package config provides configuration types and defaults for opsdeck.
package config

import "time"

// Config holds all configuration for opsdeck.
type Config struct {
	Gateway     GatewayConfig     `yaml:"gateway" mapstructure:"gateway"`
	Poll        PollConfig        `yaml:"poll" mapstructure:"poll"`
	Confirm     ConfirmConfig     `yaml:"confirm" mapstructure:"confirm"`
	Deploy      DeployConfig      `yaml:"deploy" mapstructure:"deploy"`
	Paths       PathsConfig       `yaml:"paths" mapstructure:"paths"`
	LogRotation LogRotationConfig `yaml:"log_rotation" mapstructure:"log_rotation"`
}

// GatewayConfig holds command dispatch settings.
type GatewayConfig struct {
	// SnapshotTimeout is how long a full-snapshot refresh (the system
	// view's host metrics call, which samples CPU for a while) may run
	// before cached data is shown in its place. The call keeps running
	// in the background.
	SnapshotTimeout time.Duration `yaml:"snapshot_timeout" mapstructure:"snapshot_timeout"`
	// PollTimeout is the shorter budget for lightweight listing polls
	// (containers, tools), which should degrade to cache quickly.
	PollTimeout time.Duration `yaml:"poll_timeout" mapstructure:"poll_timeout"`
	// ActionTimeout is the hard timeout for user-initiated actions
	// (container lifecycle, installs, deploy steps).
	ActionTimeout time.Duration `yaml:"action_timeout" mapstructure:"action_timeout"`
	// AgentTimeout is the per-call timeout when talking to the agent
	// over its socket.
	AgentTimeout time.Duration `yaml:"agent_timeout" mapstructure:"agent_timeout"`
}

// PollConfig holds the refresh cadence for each polled view.
type PollConfig struct {
	System ViewPollConfig `yaml:"system" mapstructure:"system"`
	Docker ViewPollConfig `yaml:"docker" mapstructure:"docker"`
	Tools  ViewPollConfig `yaml:"tools" mapstructure:"tools"`
}

// ViewPollConfig holds one view's polling cadence. A slow tick (one that
// exceeds SlowThreshold) reschedules at max(SlowMinDelay, duration+SlowMargin)
// so a struggling backend is never polled faster than it can answer.
type ViewPollConfig struct {
	Interval      time.Duration `yaml:"interval" mapstructure:"interval"`
	MinDelay      time.Duration `yaml:"min_delay" mapstructure:"min_delay"`
	SlowThreshold time.Duration `yaml:"slow_threshold" mapstructure:"slow_threshold"`
	SlowMinDelay  time.Duration `yaml:"slow_min_delay" mapstructure:"slow_min_delay"`
	SlowMargin    time.Duration `yaml:"slow_margin" mapstructure:"slow_margin"`
	ResumeDefer   time.Duration `yaml:"resume_defer" mapstructure:"resume_defer"`
	// CacheTTL is how long a fetched payload stays fresh for display.
	CacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// ConfirmConfig holds danger-confirmation settings.
type ConfirmConfig struct {
	// Window is how long an armed destructive action stays valid before
	// the second keypress.
	Window time.Duration `yaml:"window" mapstructure:"window"`
}

// DeployConfig holds deploy pipeline settings.
type DeployConfig struct {
	// ProfilesFile is the YAML file declaring deployable services.
	ProfilesFile string `yaml:"profiles_file" mapstructure:"profiles_file"`
}

// PathsConfig holds file paths for settings, logs, socket, and pid.
type PathsConfig struct {
	Settings string `yaml:"settings" mapstructure:"settings"`
	Log      string `yaml:"log" mapstructure:"log"`
	Socket   string `yaml:"socket" mapstructure:"socket"`
	PID      string `yaml:"pid" mapstructure:"pid"`
}

// LogRotationConfig holds settings for log file rotation
// (lumberjack-based automatic rotation).
type LogRotationConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool `yaml:"compress" mapstructure:"compress"`
}

// Default returns a Config with working defaults for a single-host setup.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			SnapshotTimeout: 2 * time.Second,
			PollTimeout:     time.Second,
			ActionTimeout:   60 * time.Second,
			AgentTimeout:    5 * time.Second,
		},
		Poll: PollConfig{
			System: ViewPollConfig{
				Interval:      5 * time.Second,
				MinDelay:      time.Second,
				SlowThreshold: time.Second,
				SlowMinDelay:  8 * time.Second,
				SlowMargin:    2 * time.Second,
				ResumeDefer:   500 * time.Millisecond,
				CacheTTL:      10 * time.Second,
			},
			Docker: ViewPollConfig{
				Interval:      4 * time.Second,
				MinDelay:      time.Second,
				SlowThreshold: time.Second,
				SlowMinDelay:  8 * time.Second,
				SlowMargin:    2 * time.Second,
				ResumeDefer:   500 * time.Millisecond,
				CacheTTL:      8 * time.Second,
			},
			Tools: ViewPollConfig{
				Interval:      30 * time.Second,
				MinDelay:      5 * time.Second,
				SlowThreshold: 2 * time.Second,
				SlowMinDelay:  30 * time.Second,
				SlowMargin:    5 * time.Second,
				ResumeDefer:   500 * time.Millisecond,
				CacheTTL:      60 * time.Second,
			},
		},
		Confirm: ConfirmConfig{
			Window: 8 * time.Second,
		},
		Deploy: DeployConfig{
			ProfilesFile: ".opsdeck/profiles.yaml",
		},
		Paths: PathsConfig{
			Settings: ".opsdeck/settings.json",
			Log:      ".opsdeck/opsdeck.log",
			Socket:   ".opsdeck/opsdeck.sock",
			PID:      ".opsdeck/opsdeck.pid",
		},
		LogRotation: LogRotationConfig{
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
	}
}
