package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ppiankov/breakerguard/internal/alert"
	"github.com/ppiankov/breakerguard/internal/audit"
	"github.com/ppiankov/breakerguard/internal/check"
	"github.com/ppiankov/breakerguard/internal/circuit"
	"github.com/ppiankov/breakerguard/internal/config"
	"github.com/ppiankov/breakerguard/internal/exposure"
	"github.com/ppiankov/breakerguard/internal/geo"
	"github.com/ppiankov/breakerguard/internal/guardian"
	"github.com/ppiankov/breakerguard/internal/metrics"
	"github.com/ppiankov/breakerguard/internal/runner"
)

func newInspector(cfg config.Config, r runner.Runner) check.ListenerInspector {
	if cfg.Inspector == "procfs" {
		return &check.ProcfsInspector{}
	}
	return &check.LsofInspector{Runner: r}
}

func newEvaluator(cfg config.Config, r runner.Runner, log *slog.Logger) *exposure.Evaluator {
	return &exposure.Evaluator{
		AuthFile:      cfg.AuthFile,
		BreakerPort:   cfg.BreakerPort,
		Inspector:     newInspector(cfg, r),
		Prober:        check.NewProber(cfg.ProbeTimeout),
		StrictInspect: cfg.StrictInspect,
		Logger:        log,
	}
}

// buildGuardian wires the cycle driver and its optional sinks. The returned
// close func releases whatever was opened, including on error.
func buildGuardian(cfg config.Config, log *slog.Logger) (*guardian.Guardian, func(), error) {
	r := runner.New(runner.WithTimeout(cfg.CommandTimeout))

	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	g := &guardian.Guardian{
		Evaluator:   newEvaluator(cfg, r, log),
		Circuit:     &circuit.Controller{CLI: cfg.CLI, Runner: r},
		Logger:      log,
		Host:        host,
		BreakerPort: cfg.BreakerPort,
		Metrics:     metrics.New(),
		Alerts:      alert.NewDispatcher(cfg.Alerts, cfg.AlertInterval, log),
	}

	var closers []func() error
	closeAll := func() {
		if g.Alerts != nil {
			g.Alerts.Wait()
		}
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		if err := errors.Join(errs...); err != nil {
			log.Warn("shutdown", "error", err)
		}
	}

	if cfg.AuditLog != "" {
		l, err := audit.Open(cfg.AuditLog)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("open audit log: %w", err)
		}
		g.Audit = l
		closers = append(closers, l.Close)
	}

	gs, err := geo.Open(cfg.GeoIPCityDB, cfg.GeoIPASNDB)
	if err != nil {
		// Enrichment is informational; run without it.
		log.Warn("geoip disabled", "error", err)
	} else if gs != nil {
		g.Geo = gs
		closers = append(closers, func() error { gs.Close(); return nil })
	}

	return g, closeAll, nil
}
