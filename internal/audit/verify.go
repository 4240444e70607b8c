package audit

import (
	"encoding/json"
	"fmt"
)

// VerifyResult holds the outcome of a hash chain verification.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	Lines     int    `json:"lines"`
	Error     string `json:"error,omitempty"`
	ErrorLine int    `json:"error_line,omitempty"`
}

// Verify walks the log and checks that every entry's prev_hash matches the
// hash of the line before it, starting from GenesisHash.
func Verify(path string) VerifyResult {
	lines, err := readLines(path)
	if err != nil {
		return VerifyResult{Error: fmt.Sprintf("read: %v", err)}
	}

	expected := GenesisHash
	for i, line := range lines {
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return VerifyResult{Error: fmt.Sprintf("parse error: %v", err), ErrorLine: i + 1}
		}
		if entry.PrevHash != expected {
			return VerifyResult{
				Error:     fmt.Sprintf("hash mismatch: expected %s, got %s", expected, entry.PrevHash),
				ErrorLine: i + 1,
			}
		}
		expected = HashLine(line)
	}
	return VerifyResult{Valid: true, Lines: len(lines)}
}
