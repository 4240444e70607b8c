// Package config resolves guardian configuration from built-in defaults, an
// optional YAML file and MBH_* environment variables. Command-line flags are
// layered on top by the cli package. The resolved Config is a value and is
// not mutated after startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/breakerguard/internal/alert"
)

// Defaults.
const (
	DefaultStateFile      = "/usr/local/var/moltbot-hardened/state/breaker-state.json"
	DefaultNginxDir       = "/usr/local/etc/nginx/servers"
	DefaultConfPrefix     = "moltbot-control"
	DefaultAuthFile       = "/usr/local/etc/nginx/.htpasswd"
	DefaultControlPort    = 3000
	DefaultBreakerPort    = 8080
	DefaultInterval       = 30
	DefaultLogFile        = "/usr/local/var/log/moltbot-hardened/guardian.log"
	DefaultCLI            = "/usr/local/bin/moltbot-hardened"
	DefaultCommandTimeout = 10 * time.Second
	DefaultProbeTimeout   = 2 * time.Second
	DefaultInspector      = "lsof"
)

// Environment variable names.
const (
	EnvStateFile      = "MBH_STATE_FILE"
	EnvNginxDir       = "MBH_NGINX_DIR"
	EnvConfPrefix     = "MBH_CONF_PREFIX"
	EnvAuthFile       = "MBH_AUTH_FILE"
	EnvControlPort    = "MBH_CONTROL_PORT"
	EnvBreakerPort    = "MBH_BREAKER_PORT"
	EnvInterval       = "MBH_GUARDIAN_INTERVAL"
	EnvLogFile        = "MBH_GUARDIAN_LOG"
	EnvCLI            = "MBH_CLI"
	EnvConfigFile     = "MBH_GUARDIAN_CONFIG"
	EnvCommandTimeout = "MBH_GUARDIAN_COMMAND_TIMEOUT"
	EnvProbeTimeout   = "MBH_GUARDIAN_PROBE_TIMEOUT"
	EnvInspector      = "MBH_GUARDIAN_INSPECTOR"
	EnvStrictInspect  = "MBH_GUARDIAN_STRICT_INSPECT"
	EnvAuditLog       = "MBH_GUARDIAN_AUDIT_LOG"
	EnvMetricsAddr    = "MBH_GUARDIAN_METRICS_ADDR"
	EnvGeoIPCityDB    = "MBH_GUARDIAN_GEOIP_CITY_DB"
	EnvGeoIPASNDB     = "MBH_GUARDIAN_GEOIP_ASN_DB"
	EnvWatchAuthFile  = "MBH_GUARDIAN_WATCH_AUTH"
	EnvUnitFile       = "MBH_GUARDIAN_UNIT_FILE"
	EnvUnitHashFile   = "MBH_GUARDIAN_UNIT_HASH"
	EnvPIDFile        = "MBH_GUARDIAN_PID_FILE"
	EnvChecksumFile   = "MBH_GUARDIAN_CHECKSUM_FILE"
)

// Config is the resolved guardian configuration.
type Config struct {
	// Passed through to logs only; the checks do not read them.
	StateFile  string `yaml:"state_file"`
	NginxDir   string `yaml:"nginx_dir"`
	ConfPrefix string `yaml:"conf_prefix"`

	AuthFile    string `yaml:"auth_file"    validate:"required"`
	ControlPort int    `yaml:"control_port" validate:"min=1,max=65535"`
	BreakerPort int    `yaml:"breaker_port" validate:"min=1,max=65535"`
	Interval    int    `yaml:"interval"     validate:"min=1"`
	LogFile     string `yaml:"log_file"`
	CLI         string `yaml:"cli"          validate:"required"`
	Verbose     bool   `yaml:"verbose"`

	// Set from flags only.
	Once           bool `yaml:"-"`
	FailOnExposure bool `yaml:"-"`

	ConfigFile     string        `yaml:"-"`
	CommandTimeout time.Duration `yaml:"command_timeout" validate:"gt=0"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"   validate:"gt=0"`
	Inspector      string        `yaml:"inspector"       validate:"oneof=lsof procfs"`
	StrictInspect  bool          `yaml:"strict_inspect"`
	AuditLog       string        `yaml:"audit_log"`
	MetricsAddr    string        `yaml:"metrics_addr"    validate:"omitempty,hostname_port"`
	GeoIPCityDB    string        `yaml:"geoip_city_db"`
	GeoIPASNDB     string        `yaml:"geoip_asn_db"`
	WatchAuthFile  bool          `yaml:"watch_auth_file"`
	UnitFile       string        `yaml:"unit_file"`
	UnitHashFile   string        `yaml:"unit_hash_file"`
	PIDFile        string        `yaml:"pid_file"`
	ChecksumFile   string        `yaml:"binary_checksum_file"`

	Alerts        []alert.Config `yaml:"alerts"         validate:"dive"`
	AlertInterval time.Duration  `yaml:"alert_interval" validate:"gte=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		StateFile:      DefaultStateFile,
		NginxDir:       DefaultNginxDir,
		ConfPrefix:     DefaultConfPrefix,
		AuthFile:       DefaultAuthFile,
		ControlPort:    DefaultControlPort,
		BreakerPort:    DefaultBreakerPort,
		Interval:       DefaultInterval,
		LogFile:        DefaultLogFile,
		CLI:            DefaultCLI,
		CommandTimeout: DefaultCommandTimeout,
		ProbeTimeout:   DefaultProbeTimeout,
		Inspector:      DefaultInspector,
		AlertInterval:  alert.DefaultMinInterval,
	}
}

// IntervalDuration returns the poll interval.
func (c Config) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// LookupFunc reads an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Load resolves defaults, then the YAML file, then the environment.
// path overrides MBH_GUARDIAN_CONFIG; an empty result means no file.
// A named file that does not exist is an error.
func Load(path string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg := Default()

	if path == "" {
		path, _ = lookup(EnvConfigFile)
	}
	if path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return Config{}, err
		}
		cfg.ConfigFile = path
	}

	ApplyEnv(&cfg, lookup)
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read guardian config: %w", err)
	}
	// Start from the current values; YAML overwrites only specified fields.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse guardian config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto cfg. Values that do not
// parse, or parse but are out of range, leave the current value in place.
func ApplyEnv(cfg *Config, lookup LookupFunc) {
	envString(lookup, EnvStateFile, &cfg.StateFile)
	envString(lookup, EnvNginxDir, &cfg.NginxDir)
	envString(lookup, EnvConfPrefix, &cfg.ConfPrefix)
	envString(lookup, EnvAuthFile, &cfg.AuthFile)
	envInt(lookup, EnvControlPort, &cfg.ControlPort, validPort)
	envInt(lookup, EnvBreakerPort, &cfg.BreakerPort, validPort)
	envInt(lookup, EnvInterval, &cfg.Interval, positive)
	envString(lookup, EnvLogFile, &cfg.LogFile)
	envString(lookup, EnvCLI, &cfg.CLI)
	envDuration(lookup, EnvCommandTimeout, &cfg.CommandTimeout)
	envDuration(lookup, EnvProbeTimeout, &cfg.ProbeTimeout)
	envString(lookup, EnvInspector, &cfg.Inspector)
	envBool(lookup, EnvStrictInspect, &cfg.StrictInspect)
	envString(lookup, EnvAuditLog, &cfg.AuditLog)
	envString(lookup, EnvMetricsAddr, &cfg.MetricsAddr)
	envString(lookup, EnvGeoIPCityDB, &cfg.GeoIPCityDB)
	envString(lookup, EnvGeoIPASNDB, &cfg.GeoIPASNDB)
	envBool(lookup, EnvWatchAuthFile, &cfg.WatchAuthFile)
	envString(lookup, EnvUnitFile, &cfg.UnitFile)
	envString(lookup, EnvUnitHashFile, &cfg.UnitHashFile)
	envString(lookup, EnvPIDFile, &cfg.PIDFile)
	envString(lookup, EnvChecksumFile, &cfg.ChecksumFile)
}

func envString(lookup LookupFunc, key string, dst *string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func validPort(n int) bool { return n >= 1 && n <= 65535 }

func positive(n int) bool { return n >= 1 }

func envInt(lookup LookupFunc, key string, dst *int, valid func(int) bool) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil && valid(n) {
			*dst = n
		}
	}
}

func envDuration(lookup LookupFunc, key string, dst *time.Duration) {
	if v, ok := lookup(key); ok {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
		}
	}
}

func envBool(lookup LookupFunc, key string, dst *bool) {
	if v, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %w", errors.Join(msgs...))
}
