package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vuinput/vuinputd/internal/types"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load([]string{})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Devname != "vuinput" {
		t.Errorf("got devname %q, want %q", cfg.Devname, "vuinput")
	}
	if cfg.Placement != types.PlacementInContainer {
		t.Errorf("got placement %q, want %q", cfg.Placement, types.PlacementInContainer)
	}
	if cfg.DevicePolicy != types.PolicyMuteSysRq {
		t.Errorf("got device policy %q, want %q", cfg.DevicePolicy, types.PolicyMuteSysRq)
	}
	if cfg.JobTimeout != defaultJobTimeout {
		t.Errorf("got job timeout %v, want %v", cfg.JobTimeout, defaultJobTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("got log level %q, want %q", cfg.LogLevel, "info")
	}
}

func TestLoadJobTimeoutAndLogLevelFlags(t *testing.T) {
	cfg, err := Load([]string{"--job-timeout=2s", "--log-level=debug"})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.JobTimeout != 2*time.Second {
		t.Errorf("got job timeout %v, want 2s", cfg.JobTimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("got log level %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestLoadFlagsOverrideDefaults(t *testing.T) {
	cfg, err := Load([]string{"--devname=gamepad0", "--major=13", "--vt-guard"})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Devname != "gamepad0" {
		t.Errorf("got devname %q, want %q", cfg.Devname, "gamepad0")
	}
	if cfg.Major != 13 {
		t.Errorf("got major %d, want 13", cfg.Major)
	}
	if !cfg.VTGuard {
		t.Errorf("want vt-guard true")
	}
}

func TestLoadConfigFileThenFlagOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vuinputd.toml")
	contents := "devname = \"fromfile\"\nmajor = 7\n"
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}

	cfg, err := Load([]string{"--config=" + path, "--devname=fromflag"})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Devname != "fromflag" {
		t.Errorf("got devname %q, want flag to win: %q", cfg.Devname, "fromflag")
	}
	if cfg.Major != 7 {
		t.Errorf("got major %d, want file value 7", cfg.Major)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load([]string{"--config=/nonexistent/path/vuinputd.toml"})
	if err == nil {
		t.Errorf("expected error for missing config file")
	}
}
