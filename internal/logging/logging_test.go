package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lineRE = regexp.MustCompile(`^time=\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z level=INFO msg=ok component=guardian$`)

func TestLineFormat(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Stdout: &buf})
	require.NoError(t, err)
	defer l.Close()

	l.Info("ok")
	assert.Regexp(t, lineRE, strings.TrimSpace(buf.String()))
}

func TestVerboseEnablesDebug(t *testing.T) {
	var quiet, loud bytes.Buffer
	q, err := New(Config{Stdout: &quiet})
	require.NoError(t, err)
	v, err := New(Config{Stdout: &loud, Verbose: true})
	require.NoError(t, err)

	q.Debug("probe detail")
	v.Debug("probe detail")
	assert.Empty(t, quiet.String())
	assert.Contains(t, loud.String(), "level=DEBUG")
}

func TestFileOutput(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "guardian.log")

	l, err := New(Config{Stdout: &buf, File: path})
	require.NoError(t, err)
	l.Warn("exposure detected", "issues", "auth file missing/empty: /x")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, buf.String(), string(data))
	assert.Contains(t, string(data), "level=WARN msg=\"exposure detected\"")
	assert.Contains(t, string(data), "component=guardian")
}

func TestFileOpenError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0600))

	_, err := New(Config{Stdout: &bytes.Buffer{}, File: filepath.Join(blocker, "guardian.log")})
	require.Error(t, err)
}
