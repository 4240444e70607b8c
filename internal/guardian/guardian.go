// Package guardian drives evaluation cycles: evaluate exposure, open the
// circuit when exposed, and report the outcome to logs, the audit trail,
// metrics and alert webhooks. Each cycle derives its verdict from live
// observation only; no sink is ever read back.
package guardian

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/breakerguard/internal/alert"
	"github.com/ppiankov/breakerguard/internal/audit"
	"github.com/ppiankov/breakerguard/internal/circuit"
	"github.com/ppiankov/breakerguard/internal/exposure"
	"github.com/ppiankov/breakerguard/internal/geo"
	"github.com/ppiankov/breakerguard/internal/metrics"
)

// Evaluator produces a verdict for one cycle.
type Evaluator interface {
	Evaluate(ctx context.Context) exposure.Verdict
}

// CircuitOpener opens the circuit.
type CircuitOpener interface {
	Open(ctx context.Context) circuit.Outcome
}

// Guardian runs cycles. Audit, Metrics, Alerts and Geo are optional.
type Guardian struct {
	Evaluator   Evaluator
	Circuit     CircuitOpener
	Logger      *slog.Logger
	Host        string
	BreakerPort int

	Audit   *audit.Log
	Metrics *metrics.Metrics
	Alerts  *alert.Dispatcher
	Geo     *geo.Service

	// NewID and Now are overridable for tests.
	NewID func() string
	Now   func() time.Time
}

// Report is the full outcome of one cycle.
type Report struct {
	CycleID string
	Verdict exposure.Verdict
	// Circuit is nil when the verdict was not exposed.
	Circuit *circuit.Outcome
}

// Healthy reports whether the cycle found no exposure.
func (r Report) Healthy() bool {
	return !r.Verdict.Exposed
}

// Cycle runs one pass and returns true when no exposure was found.
func (g *Guardian) Cycle(ctx context.Context) bool {
	return g.RunCycle(ctx).Healthy()
}

// RunCycle runs one pass: evaluate, open the circuit if exposed, report.
func (g *Guardian) RunCycle(ctx context.Context) Report {
	log := g.logger()
	start := g.now()
	report := Report{CycleID: g.newID()}
	log = log.With("cycle_id", report.CycleID)

	report.Verdict = g.Evaluator.Evaluate(ctx)

	if report.Verdict.Exposed {
		log.Warn("exposure detected", "issues", strings.Join(report.Verdict.Issues, "; "))
		if g.Geo != nil && len(report.Verdict.PublicAddrs) > 0 {
			log.Warn("public listener origin", "addrs", strings.Join(g.Geo.DescribeAll(report.Verdict.PublicAddrs), ", "))
		}

		outcome := g.Circuit.Open(ctx)
		report.Circuit = &outcome
		if outcome.OK {
			log.Warn("circuit opened", "output", outcome.Message)
		} else {
			log.Error("failed to open circuit", "error", outcome.Message, "exit_code", outcome.ExitCode)
		}
	} else {
		log.Info("ok")
	}

	g.record(log, report)
	g.observe(report, g.now().Sub(start))
	g.alert(ctx, report)
	return report
}

func (g *Guardian) record(log *slog.Logger, r Report) {
	if g.Audit == nil {
		return
	}
	entry := audit.Entry{
		Timestamp:   g.now().UTC().Format(audit.TimeFormat),
		CycleID:     r.CycleID,
		Host:        g.Host,
		BreakerPort: g.BreakerPort,
		Exposed:     r.Verdict.Exposed,
		Issues:      r.Verdict.Issues,
		Circuit:     audit.CircuitSkipped,
	}
	if r.Circuit != nil {
		entry.Circuit = audit.CircuitOpened
		if !r.Circuit.OK {
			entry.Circuit = audit.CircuitFailed
		}
		entry.CircuitMessage = r.Circuit.Message
	}
	if err := g.Audit.Record(entry); err != nil {
		log.Error("audit record failed", "error", err)
	}
}

func (g *Guardian) observe(r Report, elapsed time.Duration) {
	m := g.Metrics
	if m == nil {
		return
	}
	m.CycleDuration.Observe(elapsed.Seconds())
	m.LastCycle.Set(float64(g.now().Unix()))
	for _, f := range r.Verdict.Findings {
		if f.Result.Triggered {
			m.ChecksTriggered.WithLabelValues(f.Check).Inc()
		}
	}
	if !r.Verdict.Exposed {
		m.Cycles.WithLabelValues("ok").Inc()
		m.Exposed.Set(0)
		return
	}
	m.Cycles.WithLabelValues("exposed").Inc()
	m.Exposed.Set(1)
	if r.Circuit.OK {
		m.CircuitOpens.WithLabelValues("success").Inc()
	} else {
		m.CircuitOpens.WithLabelValues("failure").Inc()
	}
}

func (g *Guardian) alert(ctx context.Context, r Report) {
	if g.Alerts == nil || !r.Verdict.Exposed {
		return
	}
	ev := alert.Event{
		Timestamp:      g.now().UTC().Format(time.RFC3339),
		Type:           alert.TypeExposure,
		CycleID:        r.CycleID,
		Host:           g.Host,
		BreakerPort:    g.BreakerPort,
		Issues:         r.Verdict.Issues,
		CircuitOpened:  r.Circuit.OK,
		CircuitMessage: r.Circuit.Message,
	}
	if !r.Circuit.OK {
		ev.Type = alert.TypeCircuitOpenFailed
	}
	if g.Geo != nil {
		ev.Geo = g.Geo.DescribeAll(r.Verdict.PublicAddrs)
	}
	g.Alerts.Dispatch(ctx, ev)
}

func (g *Guardian) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

func (g *Guardian) newID() string {
	if g.NewID != nil {
		return g.NewID()
	}
	return uuid.NewString()
}

func (g *Guardian) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}
