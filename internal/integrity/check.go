// Package integrity verifies the running guardian binary against a known
// SHA-256 before any cycle runs. The expected hash comes from the build
// (ldflags) or from a checksum file written at install time.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// ExpectedHash is set at build time via:
//
//	-ldflags "-X github.com/ppiankov/breakerguard/internal/integrity.ExpectedHash=<sha256hex>"
var ExpectedHash string

// Status is the outcome of a verification.
type Status int

const (
	// Skipped means no expected hash was available (dev build).
	Skipped Status = iota
	Verified
	Mismatch
)

// Checker compares the binary at Executable against the expected hash.
type Checker struct {
	Expected     string // overrides ExpectedHash when set
	ChecksumFile string // consulted when no hash is compiled in
	Executable   func() (string, error)
}

// Report describes one verification.
type Report struct {
	Status   Status
	Binary   string
	Expected string
	Actual   string
}

// Verify hashes the binary. A mismatch is reported through Status, not as
// an error; errors mean the check itself could not run.
func (c Checker) Verify() (Report, error) {
	expected := c.Expected
	if expected == "" {
		expected = ExpectedHash
	}
	if expected == "" && c.ChecksumFile != "" {
		expected = loadChecksumFile(c.ChecksumFile)
	}
	if expected == "" {
		return Report{Status: Skipped}, nil
	}

	exe := c.Executable
	if exe == nil {
		exe = os.Executable
	}
	path, err := exe()
	if err != nil {
		return Report{}, fmt.Errorf("integrity: cannot resolve executable path: %w", err)
	}
	actual, err := hashFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("integrity: cannot hash binary: %w", err)
	}

	r := Report{Status: Verified, Binary: path, Expected: strings.ToLower(expected), Actual: actual}
	if r.Actual != r.Expected {
		r.Status = Mismatch
	}
	return r, nil
}

// String summarizes the report for logs and alerts.
func (r Report) String() string {
	switch r.Status {
	case Verified:
		return fmt.Sprintf("binary checksum verified (%s...%s)", r.Actual[:8], r.Actual[len(r.Actual)-8:])
	case Mismatch:
		return fmt.Sprintf("binary checksum mismatch for %s (expected %s, got %s)", r.Binary, r.Expected, r.Actual)
	default:
		return "no expected binary hash, integrity check skipped"
	}
}

// HashSelf returns the SHA-256 hex digest of the running binary.
func HashSelf() (string, error) {
	path, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("integrity: cannot resolve executable path: %w", err)
	}
	return hashFile(path)
}

// loadChecksumFile returns the hash in path, or "" when the file is missing
// or does not hold a SHA-256 hex digest.
func loadChecksumFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	hash := strings.TrimSpace(string(data))
	if len(hash) == 64 && isHex(hash) {
		return hash
	}
	return ""
}

func isHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
