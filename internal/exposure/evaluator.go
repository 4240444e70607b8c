// Package exposure combines the individual checks into one verdict per cycle.
package exposure

import (
	"context"
	"log/slog"

	"github.com/ppiankov/breakerguard/internal/check"
)

// Check names, in evaluation order.
const (
	CheckAuth     = "auth_file"
	CheckListener = "listener"
	CheckProbe    = "unauth_probe"
)

// Finding is the result of one named check.
type Finding struct {
	Check  string       `json:"check"`
	Result check.Result `json:"result"`
}

// Verdict is the aggregated outcome of a cycle. Exposed is true exactly
// when Issues is non-empty.
type Verdict struct {
	Exposed     bool      `json:"exposed"`
	Issues      []string  `json:"issues"`
	Findings    []Finding `json:"findings"`
	PublicAddrs []string  `json:"public_addrs,omitempty"`
}

func newVerdict(findings []Finding, public []string) Verdict {
	issues := []string{}
	for _, f := range findings {
		if f.Result.Triggered {
			issues = append(issues, f.Result.Detail)
		}
	}
	return Verdict{
		Exposed:     len(issues) > 0,
		Issues:      issues,
		Findings:    findings,
		PublicAddrs: public,
	}
}

// Prober probes the breaker port for unauthenticated access.
type Prober interface {
	Probe(ctx context.Context, port int) (check.Result, error)
}

// Evaluator runs the credential, listener and probe checks.
type Evaluator struct {
	AuthFile    string
	BreakerPort int
	Inspector   check.ListenerInspector
	Prober      Prober
	// StrictInspect turns a listener enumeration failure into an issue.
	StrictInspect bool
	Logger        *slog.Logger
}

// Evaluate runs every check in order without short-circuiting and returns
// the verdict. It never fails; check errors are logged and each check falls
// back to its own classification.
func (e *Evaluator) Evaluate(ctx context.Context) Verdict {
	log := e.Logger
	if log == nil {
		log = slog.Default()
	}

	findings := make([]Finding, 0, 3)

	findings = append(findings, Finding{Check: CheckAuth, Result: check.CheckAuthFile(e.AuthFile)})

	listenerRes, public, err := check.CheckListeners(ctx, e.Inspector, e.BreakerPort, e.StrictInspect)
	if err != nil {
		log.Warn("unable to verify breaker listeners", "port", e.BreakerPort, "error", err)
	}
	findings = append(findings, Finding{Check: CheckListener, Result: listenerRes})

	probeRes, err := e.Prober.Probe(ctx, e.BreakerPort)
	if err != nil {
		log.Debug("breaker probe", "port", e.BreakerPort, "error", err)
	}
	findings = append(findings, Finding{Check: CheckProbe, Result: probeRes})

	return newVerdict(findings, public)
}
