package audit

// Circuit outcomes recorded per cycle.
const (
	CircuitSkipped = "skipped"
	CircuitOpened  = "opened"
	CircuitFailed  = "failed"
)

// Entry is one line in the hash-chained JSONL audit log: the verdict of a
// single guardian cycle and what was done about it. All fields are plain
// values so json.Marshal output is deterministic for hashing.
type Entry struct {
	Timestamp      string   `json:"ts"`
	CycleID        string   `json:"cycle_id"`
	Host           string   `json:"host"`
	BreakerPort    int      `json:"breaker_port"`
	Exposed        bool     `json:"exposed"`
	Issues         []string `json:"issues"`
	Circuit        string   `json:"circuit"`
	CircuitMessage string   `json:"circuit_message,omitempty"`
	PrevHash       string   `json:"prev_hash"`
}
