package config

import (
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg == nil {
		t.Fatal("Default() returned nil")
	}
}

func TestDefaultGatewayConfig(t *testing.T) {
	cfg := Default()

	if cfg.Gateway.SnapshotTimeout != 2*time.Second {
		t.Errorf("Gateway.SnapshotTimeout = %v, want %v", cfg.Gateway.SnapshotTimeout, 2*time.Second)
	}
	if cfg.Gateway.PollTimeout != time.Second {
		t.Errorf("Gateway.PollTimeout = %v, want %v", cfg.Gateway.PollTimeout, time.Second)
	}
	// The snapshot call blocks on a CPU sample; listing polls do not.
	if cfg.Gateway.SnapshotTimeout <= cfg.Gateway.PollTimeout {
		t.Errorf("SnapshotTimeout %v must exceed PollTimeout %v",
			cfg.Gateway.SnapshotTimeout, cfg.Gateway.PollTimeout)
	}
	if cfg.Gateway.ActionTimeout != 60*time.Second {
		t.Errorf("Gateway.ActionTimeout = %v, want %v", cfg.Gateway.ActionTimeout, 60*time.Second)
	}
	if cfg.Gateway.AgentTimeout != 5*time.Second {
		t.Errorf("Gateway.AgentTimeout = %v, want %v", cfg.Gateway.AgentTimeout, 5*time.Second)
	}
}

func TestDefaultPollConfig(t *testing.T) {
	cfg := Default()

	if cfg.Poll.System.Interval != 5*time.Second {
		t.Errorf("Poll.System.Interval = %v, want %v", cfg.Poll.System.Interval, 5*time.Second)
	}
	if cfg.Poll.System.CacheTTL != 10*time.Second {
		t.Errorf("Poll.System.CacheTTL = %v, want %v", cfg.Poll.System.CacheTTL, 10*time.Second)
	}
	if cfg.Poll.Docker.Interval != 4*time.Second {
		t.Errorf("Poll.Docker.Interval = %v, want %v", cfg.Poll.Docker.Interval, 4*time.Second)
	}
	if cfg.Poll.Tools.Interval != 30*time.Second {
		t.Errorf("Poll.Tools.Interval = %v, want %v", cfg.Poll.Tools.Interval, 30*time.Second)
	}

	// Every view must back off at least to its slow minimum.
	for name, vp := range map[string]ViewPollConfig{
		"system": cfg.Poll.System,
		"docker": cfg.Poll.Docker,
		"tools":  cfg.Poll.Tools,
	} {
		if vp.SlowMinDelay < vp.Interval {
			t.Errorf("%s: SlowMinDelay %v below Interval %v", name, vp.SlowMinDelay, vp.Interval)
		}
		if vp.MinDelay <= 0 {
			t.Errorf("%s: MinDelay must be positive", name)
		}
	}
}

func TestDefaultConfirmConfig(t *testing.T) {
	cfg := Default()
	if cfg.Confirm.Window != 8*time.Second {
		t.Errorf("Confirm.Window = %v, want %v", cfg.Confirm.Window, 8*time.Second)
	}
}

func TestDefaultPathsConfig(t *testing.T) {
	cfg := Default()

	paths := []struct {
		name string
		got  string
		want string
	}{
		{"Settings", cfg.Paths.Settings, ".opsdeck/settings.json"},
		{"Log", cfg.Paths.Log, ".opsdeck/opsdeck.log"},
		{"Socket", cfg.Paths.Socket, ".opsdeck/opsdeck.sock"},
		{"PID", cfg.Paths.PID, ".opsdeck/opsdeck.pid"},
	}

	for _, tc := range paths {
		if tc.got != tc.want {
			t.Errorf("Paths.%s = %q, want %q", tc.name, tc.got, tc.want)
		}
	}
}

func TestDefaultDeployConfig(t *testing.T) {
	cfg := Default()
	if cfg.Deploy.ProfilesFile != ".opsdeck/profiles.yaml" {
		t.Errorf("Deploy.ProfilesFile = %q", cfg.Deploy.ProfilesFile)
	}
}

func TestDefaultLogRotationConfig(t *testing.T) {
	cfg := Default()

	if cfg.LogRotation.MaxSizeMB != 100 {
		t.Errorf("LogRotation.MaxSizeMB = %d, want 100", cfg.LogRotation.MaxSizeMB)
	}
	if cfg.LogRotation.MaxBackups != 3 {
		t.Errorf("LogRotation.MaxBackups = %d, want 3", cfg.LogRotation.MaxBackups)
	}
	if !cfg.LogRotation.Compress {
		t.Error("LogRotation.Compress = false, want true")
	}
}
