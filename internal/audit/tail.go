package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// readLines returns every non-empty line of the file.
func readLines(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		line := make([]byte, len(raw))
		copy(line, raw)
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

// Tail returns the last n entries of the log, oldest first.
func Tail(path string, n int) ([]Entry, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, fmt.Errorf("audit: read log: %w", err)
	}
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	entries := make([]Entry, 0, len(lines))
	for i, line := range lines {
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("audit: parse entry %d: %w", i+1, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// FormatEntries renders entries as an aligned text table.
func FormatEntries(entries []Entry) string {
	if len(entries) == 0 {
		return "No entries.\n"
	}
	var b strings.Builder
	for _, e := range entries {
		status := "OK"
		if e.Exposed {
			status = "EXPOSED"
		}
		fmt.Fprintf(&b, "%-24s %-8s %-8s %s\n", e.Timestamp, status, e.Circuit, strings.Join(e.Issues, "; "))
	}
	return b.String()
}
