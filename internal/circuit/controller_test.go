package circuit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/breakerguard/internal/runner"
)

func TestOpenInvocation(t *testing.T) {
	var got []string
	c := &Controller{
		CLI: "/usr/local/bin/moltbot-hardened",
		Runner: runner.Func(func(ctx context.Context, name string, args ...string) (runner.Result, error) {
			got = append([]string{name}, args...)
			return runner.Result{Stdout: "circuit: blocked"}, nil
		}),
	}

	out := c.Open(context.Background())
	assert.True(t, out.OK)
	assert.Equal(t, "circuit: blocked", out.Message)
	assert.Equal(t, []string{
		"/usr/local/bin/moltbot-hardened", "block", "--reason", "EXPOSURE_DETECTED", "--actor", "guardian",
	}, got)
}

func TestOpenFailureMessages(t *testing.T) {
	tests := []struct {
		name string
		res  runner.Result
		err  error
		want string
	}{
		{"stderr preferred", runner.Result{ExitCode: 2, Stdout: "out", Stderr: "denied"}, nil, "denied"},
		{"stdout fallback", runner.Result{ExitCode: 1, Stdout: "state file locked"}, nil, "state file locked"},
		{"runner error", runner.Result{ExitCode: -1}, errors.New("exec: no such file"), "exec: no such file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Controller{CLI: "cli", Runner: runner.Func(func(ctx context.Context, name string, args ...string) (runner.Result, error) {
				return tt.res, tt.err
			})}
			out := c.Open(context.Background())
			assert.False(t, out.OK)
			assert.Equal(t, tt.want, out.Message)
		})
	}
}

func TestOpenWithRealProcess(t *testing.T) {
	script := filepath.Join(t.TempDir(), "control")
	body := "#!/bin/sh\n[ \"$1\" = block ] && [ \"$3\" = EXPOSURE_DETECTED ] && [ \"$5\" = guardian ] && echo opened && exit 0\necho bad args >&2\nexit 1\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0755))

	c := &Controller{CLI: script, Runner: runner.New()}
	out := c.Open(context.Background())
	assert.True(t, out.OK, out.Message)
	assert.Equal(t, "opened", out.Message)
}
