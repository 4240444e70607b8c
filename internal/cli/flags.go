package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ppiankov/breakerguard/internal/config"
)

// Shared flags. Each is applied over the file and environment layers only
// when set on the command line.
var (
	flagConfig         string
	flagStateFile      string
	flagNginxDir       string
	flagConfPrefix     string
	flagAuthFile       string
	flagControlPort    int
	flagBreakerPort    int
	flagInterval       int
	flagLogFile        string
	flagCLI            string
	flagVerbose        bool
	flagCommandTimeout time.Duration
	flagProbeTimeout   time.Duration
	flagInspector      string
	flagStrictInspect  bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Path to guardian YAML config (env "+config.EnvConfigFile+")")
	pf.StringVar(&flagStateFile, "state-file", config.DefaultStateFile, "Breaker state file (logged only)")
	pf.StringVar(&flagNginxDir, "nginx-dir", config.DefaultNginxDir, "nginx servers directory (logged only)")
	pf.StringVar(&flagConfPrefix, "conf-prefix", config.DefaultConfPrefix, "nginx config prefix (logged only)")
	pf.StringVar(&flagAuthFile, "auth-file", config.DefaultAuthFile, "Breaker credential file that must exist and be non-empty")
	pf.IntVar(&flagControlPort, "control-port", config.DefaultControlPort, "Control service port")
	pf.IntVar(&flagBreakerPort, "breaker-port", config.DefaultBreakerPort, "Breaker port that must only listen on loopback")
	pf.IntVar(&flagInterval, "interval", config.DefaultInterval, "Seconds between cycles")
	pf.StringVar(&flagLogFile, "log-file", config.DefaultLogFile, "Append log lines to this file (empty disables)")
	pf.StringVar(&flagCLI, "cli", config.DefaultCLI, "Control CLI used to open the circuit")
	pf.BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")
	pf.DurationVar(&flagCommandTimeout, "command-timeout", config.DefaultCommandTimeout, "Timeout for lsof and the control CLI")
	pf.DurationVar(&flagProbeTimeout, "probe-timeout", config.DefaultProbeTimeout, "Timeout for the unauthenticated probe")
	pf.StringVar(&flagInspector, "inspector", config.DefaultInspector, "Listener source (lsof|procfs)")
	pf.BoolVar(&flagStrictInspect, "strict-inspect", false, "Treat a listener enumeration failure as exposure")
}

// resolveConfig layers defaults, the YAML file, the environment and finally
// explicitly set flags, then validates.
func resolveConfig(cmd *cobra.Command, lookup config.LookupFunc) (config.Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg, err := config.Load(flagConfig, lookup)
	if err != nil {
		return config.Config{}, err
	}
	applyFlags(cmd.Flags(), &cfg)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func applyFlags(fs *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, apply func()) {
		if f := fs.Lookup(name); f != nil && f.Changed {
			apply()
		}
	}
	set("state-file", func() { cfg.StateFile = flagStateFile })
	set("nginx-dir", func() { cfg.NginxDir = flagNginxDir })
	set("conf-prefix", func() { cfg.ConfPrefix = flagConfPrefix })
	set("auth-file", func() { cfg.AuthFile = flagAuthFile })
	set("control-port", func() { cfg.ControlPort = flagControlPort })
	set("breaker-port", func() { cfg.BreakerPort = flagBreakerPort })
	set("interval", func() { cfg.Interval = flagInterval })
	set("log-file", func() { cfg.LogFile = flagLogFile })
	set("cli", func() { cfg.CLI = flagCLI })
	set("verbose", func() { cfg.Verbose = flagVerbose })
	set("command-timeout", func() { cfg.CommandTimeout = flagCommandTimeout })
	set("probe-timeout", func() { cfg.ProbeTimeout = flagProbeTimeout })
	set("inspector", func() { cfg.Inspector = flagInspector })
	set("strict-inspect", func() { cfg.StrictInspect = flagStrictInspect })

	// Root-only flags.
	set("once", func() { cfg.Once = runOnce })
	set("fail-on-exposure", func() { cfg.FailOnExposure = runFailOnExposure })
	set("audit-log", func() { cfg.AuditLog = runAuditLog })
	set("metrics-addr", func() { cfg.MetricsAddr = runMetricsAddr })
	set("geoip-city-db", func() { cfg.GeoIPCityDB = runGeoCityDB })
	set("geoip-asn-db", func() { cfg.GeoIPASNDB = runGeoASNDB })
	set("watch-auth-file", func() { cfg.WatchAuthFile = runWatchAuth })
	set("pid-file", func() { cfg.PIDFile = runPIDFile })
}
