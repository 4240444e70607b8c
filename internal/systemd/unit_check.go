package systemd

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
)

// UnitFile pairs an installed unit with its recorded install-time hash.
type UnitFile struct {
	Path     string
	HashPath string
}

// Check compares the unit against the recorded hash. It returns a warning
// when the unit changed, or "" when it matches or there is nothing to compare
// (no unit, no recorded hash).
func (u UnitFile) Check() string {
	if u.Path == "" || u.HashPath == "" {
		return ""
	}
	if _, err := os.Stat(u.Path); err != nil {
		return ""
	}
	stored, err := os.ReadFile(u.HashPath)
	if err != nil {
		return ""
	}
	expected := strings.TrimSpace(string(stored))
	if len(expected) != 64 {
		return ""
	}

	actual, err := hashFile(u.Path)
	if err != nil {
		return fmt.Sprintf("cannot read unit file %s: %v", u.Path, err)
	}
	if actual == expected {
		return ""
	}
	return fmt.Sprintf("unit file %s modified since install (expected %s, got %s)",
		u.Path, expected[:16], actual[:16])
}

// Record stores the unit's current hash at HashPath.
func (u UnitFile) Record() error {
	if u.Path == "" || u.HashPath == "" {
		return errors.New("unit path and hash path are required")
	}
	hash, err := hashFile(u.Path)
	if err != nil {
		return fmt.Errorf("read unit file: %w", err)
	}
	return os.WriteFile(u.HashPath, []byte(hash+"\n"), 0600)
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:]), nil
}
