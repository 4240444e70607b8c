package systemd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderDefaults(t *testing.T) {
	unit, err := Render(UnitConfig{})
	require.NoError(t, err)

	for _, section := range []string{"[Unit]", "[Service]", "[Install]"} {
		assert.Contains(t, unit, section)
	}
	assert.Contains(t, unit, "\nExecStart=/usr/local/bin/guardian\n")
	assert.Contains(t, unit, "Restart=always")
	assert.NotContains(t, unit, "User=")
	assert.NotContains(t, unit, "EnvironmentFile=")
}

func TestRenderWithOptions(t *testing.T) {
	unit, err := Render(UnitConfig{
		Binary:     "/opt/guardian/bin/guardian",
		ConfigFile: "/etc/guardian.yaml",
		User:       "mbh",
		EnvFile:    "/etc/default/guardian",
	})
	require.NoError(t, err)

	assert.Contains(t, unit, "\nType=simple\nUser=mbh\nEnvironmentFile=-/etc/default/guardian\n")
	assert.Contains(t, unit, "ExecStart=/opt/guardian/bin/guardian --config /etc/guardian.yaml\n")
}

func newUnit(t *testing.T) UnitFile {
	t.Helper()
	dir := t.TempDir()
	u := UnitFile{Path: filepath.Join(dir, "guardian.service"), HashPath: filepath.Join(dir, "unit.sha256")}
	require.NoError(t, os.WriteFile(u.Path, []byte("[Unit]\nDescription=guardian\n"), 0644))
	return u
}

func TestUnitCheckMatches(t *testing.T) {
	u := newUnit(t)
	require.NoError(t, u.Record())
	assert.Empty(t, u.Check())
}

func TestUnitCheckDetectsModification(t *testing.T) {
	u := newUnit(t)
	require.NoError(t, u.Record())
	require.NoError(t, os.WriteFile(u.Path, []byte("[Unit]\nDescription=guardian\nExecStartPre=/bin/true\n"), 0644))

	msg := u.Check()
	assert.Contains(t, msg, "modified since install")
	assert.Contains(t, msg, u.Path)
}

func TestUnitCheckNothingToCompare(t *testing.T) {
	u := newUnit(t)
	assert.Empty(t, u.Check(), "no recorded hash")

	require.NoError(t, os.WriteFile(u.HashPath, []byte("short\n"), 0600))
	assert.Empty(t, u.Check(), "malformed hash")

	assert.Empty(t, UnitFile{Path: filepath.Join(t.TempDir(), "gone.service"), HashPath: u.HashPath}.Check())
	assert.Empty(t, UnitFile{}.Check())
}

func TestUnitRecordErrors(t *testing.T) {
	assert.Error(t, UnitFile{}.Record())
	assert.Error(t, UnitFile{Path: filepath.Join(t.TempDir(), "missing"), HashPath: filepath.Join(t.TempDir(), "h")}.Record())
}
