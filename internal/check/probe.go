package check

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

// DefaultProbeTimeout bounds the unauthenticated probe.
const DefaultProbeTimeout = 2 * time.Second

// maxDrain caps how much of the response body is read before closing.
const maxDrain = 64 << 10

// gatedStatus are the responses that mean the breaker refused an
// unauthenticated caller: 401 is the auth challenge, 403 and 503 are
// blocked states.
var gatedStatus = map[int]bool{
	http.StatusUnauthorized:       true,
	http.StatusForbidden:          true,
	http.StatusServiceUnavailable: true,
}

// Prober issues a bare GET to the breaker over loopback.
type Prober struct {
	Client *http.Client
	Host   string // default 127.0.0.1
}

// NewProber returns a Prober whose client ignores proxy settings, never
// follows redirects and gives up after timeout.
func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{
		Client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:             nil,
				DisableKeepAlives: true,
			},
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		Host: "127.0.0.1",
	}
}

// Probe requests http://<host>:<port>/ without credentials. A transport
// error means the breaker is unreachable on loopback, which is not flagged;
// the error is returned for logging.
func (p *Prober) Probe(ctx context.Context, port int) (Result, error) {
	host := p.Host
	if host == "" {
		host = "127.0.0.1"
	}
	url := fmt.Sprintf("http://%s/", net.JoinHostPort(host, strconv.Itoa(port)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Pass(), fmt.Errorf("breaker probe: %w", err)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return Pass(), fmt.Errorf("breaker not reachable: %w", err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
	resp.Body.Close()

	if gatedStatus[resp.StatusCode] {
		return Pass(), nil
	}
	return Fail(fmt.Sprintf("unexpected status %d without auth", resp.StatusCode)), nil
}
