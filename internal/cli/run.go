package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/breakerguard/internal/alert"
	"github.com/ppiankov/breakerguard/internal/config"
	"github.com/ppiankov/breakerguard/internal/daemon"
	"github.com/ppiankov/breakerguard/internal/guardian"
	"github.com/ppiankov/breakerguard/internal/integrity"
	"github.com/ppiankov/breakerguard/internal/logging"
	"github.com/ppiankov/breakerguard/internal/systemd"
	"github.com/ppiankov/breakerguard/internal/watch"
)

// exitTampered matches EX_CONFIG, the code used when the binary fails its
// integrity check.
const exitTampered = 78

// exitExposed is the --once exit code for an exposed verdict when
// --fail-on-exposure is set.
const exitExposed = 2

var (
	runOnce           bool
	runFailOnExposure bool
	runAuditLog       string
	runMetricsAddr    string
	runGeoCityDB      string
	runGeoASNDB       string
	runWatchAuth      bool
	runPIDFile        string
)

func init() {
	f := rootCmd.Flags()
	f.BoolVar(&runOnce, "once", false, "Run a single cycle and exit")
	f.BoolVar(&runFailOnExposure, "fail-on-exposure", false, "With --once, exit 2 when exposure is detected")
	f.StringVar(&runAuditLog, "audit-log", "", "Append a hash-chained JSONL record per cycle (env "+config.EnvAuditLog+")")
	f.StringVar(&runMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on host:port (env "+config.EnvMetricsAddr+")")
	f.StringVar(&runGeoCityDB, "geoip-city-db", "", "MaxMind City/Country database for annotating public listeners")
	f.StringVar(&runGeoASNDB, "geoip-asn-db", "", "MaxMind ASN database for annotating public listeners")
	f.BoolVar(&runWatchAuth, "watch-auth-file", false, "Run a cycle immediately when the auth file changes")
	f.StringVar(&runPIDFile, "pid-file", "", "Refuse to start while another guardian holds this PID file (env "+config.EnvPIDFile+")")
}

func runGuardian(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, nil)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{Stdout: cmd.OutOrStdout(), File: cfg.LogFile, Verbose: cfg.Verbose})
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "guardian: %v; logging to stdout only\n", err)
		logger, err = logging.New(logging.Config{Stdout: cmd.OutOrStdout(), Verbose: cfg.Verbose})
		if err != nil {
			return err
		}
	}
	defer logger.Close()
	log := logger.Logger

	if !cfg.Once && cfg.PIDFile != "" {
		lock, err := daemon.AcquirePIDLock(cfg.PIDFile)
		if err != nil {
			return err
		}
		defer lock.Release()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, closeAll, err := buildGuardian(cfg, log)
	if err != nil {
		return err
	}
	defer closeAll()

	log.Info("guardian started",
		"state_file", cfg.StateFile,
		"nginx_dir", cfg.NginxDir,
		"conf_prefix", cfg.ConfPrefix,
		"auth_file", cfg.AuthFile,
		"breaker_port", cfg.BreakerPort,
		"interval", cfg.IntervalDuration(),
		"inspector", cfg.Inspector,
		"once", cfg.Once,
	)
	if err := verifyBinary(ctx, cfg, g); err != nil {
		return err
	}
	unit := systemd.UnitFile{Path: cfg.UnitFile, HashPath: cfg.UnitHashFile}
	if msg := unit.Check(); msg != "" {
		log.Warn("service unit changed", "detail", msg)
	}

	if cfg.Once {
		report := g.RunCycle(ctx)
		if cfg.FailOnExposure && !report.Healthy() {
			return &exitError{code: exitExposed}
		}
		return nil
	}

	eg, ctx := errgroup.WithContext(ctx)

	var trigger <-chan struct{}
	if cfg.WatchAuthFile {
		w, err := watch.New(cfg.AuthFile, log)
		if err != nil {
			log.Warn("auth file watch disabled", "error", err)
		} else {
			trigger = w.Trigger()
			eg.Go(func() error { return w.Run(ctx) })
		}
	}

	if cfg.MetricsAddr != "" {
		eg.Go(func() error {
			// A metrics listener failure does not stop the guardian.
			if err := g.Metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				log.Error("metrics server", "addr", cfg.MetricsAddr, "error", err)
			}
			return nil
		})
	}

	sched := guardian.Schedule{Interval: cfg.IntervalDuration(), Trigger: trigger}
	eg.Go(func() error {
		return sched.Run(ctx, func(ctx context.Context) { g.Cycle(ctx) })
	})

	err = eg.Wait()
	log.Info("guardian stopped")
	return err
}

// verifyBinary refuses to start a binary that does not match its recorded
// hash.
func verifyBinary(ctx context.Context, cfg config.Config, g *guardian.Guardian) error {
	log := g.Logger
	report, err := integrity.Checker{ChecksumFile: cfg.ChecksumFile}.Verify()
	if err != nil {
		log.Warn("integrity check failed to run", "error", err)
		return nil
	}
	switch report.Status {
	case integrity.Skipped:
		log.Debug(report.String())
		return nil
	case integrity.Verified:
		log.Info(report.String())
		return nil
	}

	log.Error("binary tampered", "detail", report.String())
	if g.Alerts != nil {
		g.Alerts.Dispatch(ctx, alert.Event{
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			Type:        alert.TypeBinaryTamper,
			Host:        g.Host,
			BreakerPort: g.BreakerPort,
			Issues:      []string{report.String()},
		})
		g.Alerts.Wait()
	}
	return &exitError{code: exitTampered, msg: report.String()}
}
