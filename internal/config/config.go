// Package config parses vuinputd's command-line flags and, optionally, an
// on-disk TOML file that overrides their defaults. Watch can follow that
// file with fsnotify, but cmd/vuinputd does not call it, so edits take
// effect on the next start.
package config

import (
	"flag"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vuinput/vuinputd/internal/types"
	"github.com/vuinput/vuinputd/internal/vuerr"
)

// defaultJobTimeout bounds how long UI_DEV_CREATE blocks waiting for its
// container-propagation job.
const defaultJobTimeout = 5 * time.Second

// Config is the resolved set of startup parameters, merged from defaults,
// an optional TOML file, and command-line flags (flags win).
type Config struct {
	Devname         string             `toml:"devname"`
	Major           uint32             `toml:"major"`
	Minor           uint32             `toml:"minor"`
	Placement       types.Placement    `toml:"placement"`
	DevicePolicy    types.DevicePolicy `toml:"device_policy"`
	VTGuard         bool               `toml:"vt_guard"`
	TargetNamespace string             `toml:"-"`
	ActionBase64    string             `toml:"-"`
	SentryDSN       string             `toml:"sentry_dsn"`
	Debug           bool               `toml:"debug"`
	LogLevel        string             `toml:"log_level"`

	// JobTimeout is flag-only (not file-configurable, unlike the rest of
	// Config): BurntSushi/toml has no duration-string support, and
	// threading one in is more machinery than a single ambient timeout is
	// worth.
	JobTimeout time.Duration `toml:"-"`
}

// Default returns the baseline configuration used when neither a config
// file nor flags override a field.
func Default() *Config {
	return &Config{
		Devname:      "vuinput",
		Major:        0,
		Minor:        0,
		Placement:    types.PlacementInContainer,
		DevicePolicy: types.PolicyMuteSysRq,
		VTGuard:      false,
		LogLevel:     "info",
		JobTimeout:   defaultJobTimeout,
	}
}

// Load parses command-line flags out of args (excluding the program name)
// and, if --config names a file, first merges in that file's TOML contents
// under the flag defaults. Flags explicitly passed on the command line
// always win over the file.
func Load(args []string) (*Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("vuinputd", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to an optional TOML config file")
	devname := fs.String("devname", cfg.Devname, "name of the published character device")
	major := fs.Uint("major", uint(cfg.Major), "major device number to register, 0 to let the kernel choose")
	minor := fs.Uint("minor", uint(cfg.Minor), "minor device number to register, 0 to let the kernel choose")
	placement := fs.String("placement", string(cfg.Placement), "where to materialize created devices: in-container, on-host, or none")
	devicePolicy := fs.String("device-policy", string(cfg.DevicePolicy), "capability policy applied to every client session")
	vtGuard := fs.Bool("vt-guard", cfg.VTGuard, "switch the active virtual terminal to graphics mode and turn off its keyboard input while running")
	targetNamespace := fs.String("target-namespace", "", "internal: namespace-helper target, set only on re-exec")
	actionBase64 := fs.String("action-base64", "", "internal: namespace-helper action payload, set only on re-exec")
	sentryDSN := fs.String("sentry-dsn", "", "Sentry DSN; logging stays console-only if unset")
	debug := fs.Bool("debug", false, "enable verbose logging")
	logLevel := fs.String("log-level", cfg.LogLevel, "minimum level logged to the console (debug, info, warn, error)")
	jobTimeout := fs.Duration("job-timeout", cfg.JobTimeout, "how long UI_DEV_CREATE blocks waiting for container propagation")

	if err := fs.Parse(args); err != nil {
		return nil, vuerr.Wrap(vuerr.Fatal, err, "parsing flags")
	}

	if *configPath != "" {
		if err := mergeFile(cfg, *configPath); err != nil {
			return nil, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "devname":
			cfg.Devname = *devname
		case "major":
			cfg.Major = uint32(*major)
		case "minor":
			cfg.Minor = uint32(*minor)
		case "placement":
			cfg.Placement = types.Placement(*placement)
		case "device-policy":
			cfg.DevicePolicy = types.DevicePolicy(*devicePolicy)
		case "vt-guard":
			cfg.VTGuard = *vtGuard
		case "sentry-dsn":
			cfg.SentryDSN = *sentryDSN
		case "debug":
			cfg.Debug = *debug
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})

	cfg.TargetNamespace = *targetNamespace
	cfg.ActionBase64 = *actionBase64
	cfg.JobTimeout = *jobTimeout

	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return vuerr.Wrap(vuerr.Fatal, err, "resolving config path %q", path)
	}

	if _, err := os.Stat(abs); os.IsNotExist(err) {
		return vuerr.New(vuerr.Fatal, "config file %q does not exist", abs)
	}

	if _, err := toml.DecodeFile(abs, cfg); err != nil {
		return vuerr.Wrap(vuerr.Fatal, err, "decoding config file %q", abs)
	}
	return nil
}
