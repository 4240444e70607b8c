package guardian

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/breakerguard/internal/alert"
	"github.com/ppiankov/breakerguard/internal/audit"
	"github.com/ppiankov/breakerguard/internal/check"
	"github.com/ppiankov/breakerguard/internal/circuit"
	"github.com/ppiankov/breakerguard/internal/exposure"
	"github.com/ppiankov/breakerguard/internal/metrics"
	"github.com/ppiankov/breakerguard/internal/runner"
)

const lsofHeader = "COMMAND   PID USER   FD   TYPE DEVICE SIZE/OFF NODE NAME\n"

// fakeHost answers lsof with a canned table and records control CLI calls.
type fakeHost struct {
	mu       sync.Mutex
	lsofOut  string
	cliExit  int
	cliOut   string
	cliCalls [][]string
}

func (h *fakeHost) Run(ctx context.Context, name string, args ...string) (runner.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch name {
	case "lsof":
		if h.lsofOut == "" {
			return runner.Result{ExitCode: 1}, nil
		}
		return runner.Result{Stdout: h.lsofOut}, nil
	case "mbh":
		h.cliCalls = append(h.cliCalls, args)
		return runner.Result{ExitCode: h.cliExit, Stdout: h.cliOut, Stderr: h.cliOut}, nil
	}
	return runner.Result{}, fmt.Errorf("unexpected command %q", name)
}

func breaker(t *testing.T, status int) int {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return port
}

type fixture struct {
	host *fakeHost
	g    *Guardian
	logs *bytes.Buffer
}

func newFixture(t *testing.T, authFile string, port int, host *fakeHost) *fixture {
	t.Helper()
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	ev := &exposure.Evaluator{
		AuthFile:    authFile,
		BreakerPort: port,
		Inspector:   &check.LsofInspector{Runner: host},
		Prober:      check.NewProber(time.Second),
		Logger:      logger,
	}
	return &fixture{
		host: host,
		logs: logs,
		g: &Guardian{
			Evaluator:   ev,
			Circuit:     &circuit.Controller{CLI: "mbh", Runner: host},
			Logger:      logger,
			Host:        "mac-mini",
			BreakerPort: port,
			NewID:       func() string { return "cycle-1" },
		},
	}
}

func writeAuth(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".htpasswd")
	require.NoError(t, os.WriteFile(path, []byte("admin:$apr1$x\n"), 0600))
	return path
}

func TestCycleHealthy(t *testing.T) {
	port := breaker(t, http.StatusUnauthorized)
	host := &fakeHost{lsofOut: lsofHeader + fmt.Sprintf("nginx 4242 root 6u IPv4 0x1 0t0 TCP 127.0.0.1:%d (LISTEN)\n", port)}
	f := newFixture(t, writeAuth(t), port, host)

	report := f.g.RunCycle(context.Background())

	assert.True(t, report.Healthy())
	assert.Empty(t, report.Verdict.Issues)
	assert.Nil(t, report.Circuit)
	assert.Empty(t, host.cliCalls, "circuit must not be opened")
	assert.Contains(t, f.logs.String(), "level=INFO msg=ok")
}

func TestCycleExposed(t *testing.T) {
	port := breaker(t, http.StatusOK)
	host := &fakeHost{
		lsofOut: lsofHeader + fmt.Sprintf("nginx 4242 root 6u IPv4 0x1 0t0 TCP 0.0.0.0:%d (LISTEN)\n", port),
		cliOut:  "circuit OPEN",
	}
	missing := filepath.Join(t.TempDir(), "missing")
	f := newFixture(t, missing, port, host)

	report := f.g.RunCycle(context.Background())

	require.False(t, report.Healthy())
	assert.Equal(t, []string{
		"auth file missing/empty: " + missing,
		"public listener(s): 0.0.0.0",
		"unexpected status 200 without auth",
	}, report.Verdict.Issues)
	require.Len(t, host.cliCalls, 1)
	assert.Equal(t, []string{"block", "--reason", "EXPOSURE_DETECTED", "--actor", "guardian"}, host.cliCalls[0])
	require.NotNil(t, report.Circuit)
	assert.True(t, report.Circuit.OK)

	logs := f.logs.String()
	assert.Contains(t, logs, `level=WARN msg="exposure detected"`)
	assert.Contains(t, logs, "; public listener(s): 0.0.0.0; ")
	assert.Contains(t, logs, `msg="circuit opened"`)
}

func TestCycleMissingAuthFileOnly(t *testing.T) {
	port := breaker(t, http.StatusUnauthorized)
	host := &fakeHost{
		lsofOut: lsofHeader + fmt.Sprintf("nginx 4242 root 6u IPv4 0x1 0t0 TCP 127.0.0.1:%d (LISTEN)\n", port),
		cliOut:  "circuit OPEN",
	}
	missing := filepath.Join(t.TempDir(), "missing")
	f := newFixture(t, missing, port, host)

	report := f.g.RunCycle(context.Background())

	assert.False(t, report.Healthy())
	assert.Equal(t, []string{"auth file missing/empty: " + missing}, report.Verdict.Issues)
	require.Len(t, host.cliCalls, 1)
	assert.Equal(t, []string{"block", "--reason", "EXPOSURE_DETECTED", "--actor", "guardian"}, host.cliCalls[0])
	require.NotNil(t, report.Circuit)
	assert.True(t, report.Circuit.OK)
}

func TestCycleCircuitFailureStillReportsExposure(t *testing.T) {
	port := breaker(t, http.StatusUnauthorized)
	host := &fakeHost{cliExit: 1, cliOut: "state file locked"}
	f := newFixture(t, filepath.Join(t.TempDir(), "missing"), port, host)

	healthy := f.g.Cycle(context.Background())

	assert.False(t, healthy)
	assert.Len(t, host.cliCalls, 1)
	logs := f.logs.String()
	assert.Contains(t, logs, `level=ERROR msg="failed to open circuit"`)
	assert.Contains(t, logs, `error="state file locked" exit_code=1`)
}

func TestCycleSinks(t *testing.T) {
	port := breaker(t, http.StatusUnauthorized)
	host := &fakeHost{cliExit: 3, cliOut: "denied"}
	f := newFixture(t, filepath.Join(t.TempDir(), "missing"), port, host)

	auditPath := filepath.Join(t.TempDir(), "audit.jsonl")
	auditLog, err := audit.Open(auditPath)
	require.NoError(t, err)
	defer auditLog.Close()
	f.g.Audit = auditLog

	m := metrics.New()
	f.g.Metrics = m

	events := make(chan alert.Event, 1)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev alert.Event
		if json.NewDecoder(r.Body).Decode(&ev) == nil {
			events <- ev
		}
	}))
	defer hook.Close()
	f.g.Alerts = alert.NewDispatcher([]alert.Config{{URL: hook.URL}}, 0, nil)

	f.g.Cycle(context.Background())
	f.g.Alerts.Wait()

	entries, err := audit.Tail(auditPath, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cycle-1", entries[0].CycleID)
	assert.True(t, entries[0].Exposed)
	assert.Equal(t, audit.CircuitFailed, entries[0].Circuit)
	assert.Equal(t, "denied", entries[0].CircuitMessage)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cycles.WithLabelValues("exposed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChecksTriggered.WithLabelValues(exposure.CheckAuth)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChecksTriggered.WithLabelValues(exposure.CheckListener)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ChecksTriggered.WithLabelValues(exposure.CheckProbe)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitOpens.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Exposed))

	select {
	case ev := <-events:
		assert.Equal(t, alert.TypeCircuitOpenFailed, ev.Type)
		assert.Equal(t, "mac-mini", ev.Host)
		assert.False(t, ev.CircuitOpened)
		assert.Len(t, ev.Issues, 2)
	default:
		t.Fatal("expected an alert delivery")
	}
}

func TestCycleHealthyDoesNotAlert(t *testing.T) {
	port := breaker(t, http.StatusForbidden)
	host := &fakeHost{lsofOut: lsofHeader + fmt.Sprintf("nginx 1 root 6u IPv6 0x1 0t0 TCP [::1]:%d (LISTEN)\n", port)}
	f := newFixture(t, writeAuth(t), port, host)

	var hits int
	var mu sync.Mutex
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
	}))
	defer hook.Close()
	f.g.Alerts = alert.NewDispatcher([]alert.Config{{URL: hook.URL}}, 0, nil)
	f.g.Metrics = metrics.New()

	assert.True(t, f.g.Cycle(context.Background()))
	f.g.Alerts.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, hits)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.g.Metrics.Cycles.WithLabelValues("ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.g.Metrics.Exposed))
}

func TestCycleAuditFailureIsLoggedOnly(t *testing.T) {
	port := breaker(t, http.StatusUnauthorized)
	host := &fakeHost{lsofOut: lsofHeader + fmt.Sprintf("nginx 1 root 6u IPv4 0x1 0t0 TCP 127.0.0.1:%d (LISTEN)\n", port)}
	f := newFixture(t, writeAuth(t), port, host)

	auditLog, err := audit.Open(filepath.Join(t.TempDir(), "audit.jsonl"))
	require.NoError(t, err)
	require.NoError(t, auditLog.Close())
	f.g.Audit = auditLog

	assert.True(t, f.g.Cycle(context.Background()))
	assert.Contains(t, f.logs.String(), `msg="audit record failed"`)
}
