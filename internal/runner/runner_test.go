package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCapturesOutput(t *testing.T) {
	r := New()
	res, err := r.Run(context.Background(), "sh", "-c", "echo ' out '; echo err >&2")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "out", res.Stdout)
	assert.Equal(t, "err", res.Stderr)
}

func TestRunNonZeroExitIsNotError(t *testing.T) {
	r := New()
	res, err := r.Run(context.Background(), "sh", "-c", "echo nope >&2; exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "nope", res.Stderr)
}

func TestRunMissingBinary(t *testing.T) {
	r := New()
	res, err := r.Run(context.Background(), "/nonexistent/guardian-test-binary")
	require.Error(t, err)
	assert.Equal(t, -1, res.ExitCode)
}

func TestRunTimeout(t *testing.T) {
	r := New(WithTimeout(50 * time.Millisecond))
	start := time.Now()
	_, err := r.Run(context.Background(), "sleep", "5")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestWithTimeoutIgnoresNonPositive(t *testing.T) {
	r := New(WithTimeout(0), WithTimeout(-time.Second))
	assert.Equal(t, DefaultTimeout, r.timeout)
}
