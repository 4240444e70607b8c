package check

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/breakerguard/internal/runner"
)

// LsofInspector enumerates listeners by running
// `lsof -nP -iTCP:<port> -sTCP:LISTEN`.
type LsofInspector struct {
	Runner runner.Runner
	Path   string // lsof binary, default "lsof"
}

// Listeners runs lsof and parses its table. lsof exits 1 with no output
// when nothing matches; that is an empty result, not an error.
func (i *LsofInspector) Listeners(ctx context.Context, port int) ([]Listener, error) {
	bin := i.Path
	if bin == "" {
		bin = "lsof"
	}

	res, err := i.Runner.Run(ctx, bin, "-nP", fmt.Sprintf("-iTCP:%d", port), "-sTCP:LISTEN")
	if err != nil {
		return nil, &InspectError{Source: "lsof", Err: err}
	}
	if res.ExitCode != 0 {
		if res.Stdout == "" && res.Stderr == "" {
			return nil, nil
		}
		msg := res.Stderr
		if msg == "" {
			msg = res.Stdout
		}
		return nil, &InspectError{Source: "lsof", Err: fmt.Errorf("exit %d: %s", res.ExitCode, msg)}
	}
	return ParseLsof(res.Stdout), nil
}

// ParseLsof extracts the address token from each data row of lsof output.
// The header row is skipped. The address is the second-to-last field, since
// lsof appends the "(LISTEN)" state column.
func ParseLsof(out string) []Listener {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 {
		return nil
	}

	var listeners []Listener
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		var addr string
		if len(fields) >= 2 {
			addr = fields[len(fields)-2]
		}
		listeners = append(listeners, Listener{Addr: addr})
	}
	return listeners
}
