// Package circuit opens the breaker circuit through the external control CLI.
package circuit

import (
	"context"

	"github.com/ppiankov/breakerguard/internal/runner"
)

// Action is a command sent to the control CLI.
type Action struct {
	Name   string `json:"action"`
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

// BlockAction is the only action the guardian issues.
var BlockAction = Action{Name: "block", Reason: "EXPOSURE_DETECTED", Actor: "guardian"}

// Args returns the CLI arguments for the action.
func (a Action) Args() []string {
	return []string{a.Name, "--reason", a.Reason, "--actor", a.Actor}
}

// Outcome reports whether the control CLI accepted the action.
type Outcome struct {
	OK       bool   `json:"ok"`
	Message  string `json:"message"`
	ExitCode int    `json:"exit_code"`
}

// Controller invokes the control CLI.
type Controller struct {
	CLI    string
	Runner runner.Runner
}

// Open sends BlockAction once. There is no retry; the next cycle re-evaluates.
func (c *Controller) Open(ctx context.Context) Outcome {
	res, err := c.Runner.Run(ctx, c.CLI, BlockAction.Args()...)
	if err != nil {
		return Outcome{Message: err.Error(), ExitCode: res.ExitCode}
	}
	if res.ExitCode != 0 {
		msg := res.Stderr
		if msg == "" {
			msg = res.Stdout
		}
		return Outcome{Message: msg, ExitCode: res.ExitCode}
	}
	return Outcome{OK: true, Message: res.Stdout}
}
