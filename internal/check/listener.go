package check

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
)

// Listener is one socket observed listening on the breaker port.
// Addr is the raw bound-address token, e.g. "127.0.0.1:8080" or "[::1]:8080".
type Listener struct {
	Addr string `json:"addr"`
}

// ListenerInspector enumerates TCP listeners on a port.
type ListenerInspector interface {
	Listeners(ctx context.Context, port int) ([]Listener, error)
}

// InspectError means the listener table could not be read. It is distinct
// from an empty result.
type InspectError struct {
	Source string
	Err    error
}

func (e *InspectError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Source, e.Err)
}

func (e *InspectError) Unwrap() error { return e.Err }

// AddrClass classifies a listening address.
type AddrClass int

const (
	Public AddrClass = iota
	Local
	Unknown
)

func (c AddrClass) String() string {
	switch c {
	case Local:
		return "local"
	case Public:
		return "public"
	default:
		return "unknown"
	}
}

var (
	loopback4 = net.IPv4(127, 0, 0, 1)
	loopback6 = net.IPv6loopback
)

// HostOf extracts the host part of an "addr:port" or "[ipv6]:port" token.
// ok is false when the token has no parseable port suffix.
func HostOf(token string) (host string, ok bool) {
	host, _, err := net.SplitHostPort(token)
	if err != nil {
		return "", false
	}
	return host, true
}

// Classify reports whether host is one of the loopback addresses
// 127.0.0.1 and ::1. Wildcards ("*", "0.0.0.0", "::") are Public. Anything
// that is neither an IP nor a wildcard is Unknown.
func Classify(host string) AddrClass {
	if host == "*" {
		return Public
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return Unknown
	}
	if ip.Equal(loopback4) || ip.Equal(loopback6) {
		return Local
	}
	return Public
}

// CheckListeners inspects the breaker port and flags public listeners.
// The returned slice holds the sorted unique non-local addresses.
//
// An enumeration error does not trigger unless strict is set; the error is
// always returned so the caller can log that the port was not verified.
func CheckListeners(ctx context.Context, inspector ListenerInspector, port int, strict bool) (Result, []string, error) {
	listeners, err := inspector.Listeners(ctx, port)
	if err != nil {
		if strict {
			return Fail("unable to verify listeners: " + err.Error()), nil, err
		}
		return Pass(), nil, err
	}
	if len(listeners) == 0 {
		return Fail("no listeners on breaker port"), nil, nil
	}

	seen := make(map[string]bool)
	var public []string
	for _, l := range listeners {
		host, ok := HostOf(l.Addr)
		if !ok {
			// Unparseable: report the raw token and fail closed.
			host = strings.TrimSpace(l.Addr)
			if host == "" {
				host = "unknown"
			}
		} else if Classify(host) == Local {
			continue
		}
		if !seen[host] {
			seen[host] = true
			public = append(public, host)
		}
	}

	if len(public) == 0 {
		return Pass(), nil, nil
	}
	sort.Strings(public)
	return Fail("public listener(s): " + strings.Join(public, ", ")), public, nil
}
