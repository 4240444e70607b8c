// Package check implements the independent exposure checks run each cycle:
// credential presence, breaker-port listeners and unauthenticated access.
// Checks never fail a cycle; ambiguous observations resolve to a fixed
// classification and any underlying error is handed back for logging.
package check

// Result is the outcome of a single check. Detail is empty when the check
// did not trigger and a human-readable explanation when it did.
type Result struct {
	Triggered bool   `json:"triggered"`
	Detail    string `json:"detail,omitempty"`
}

// Pass is the non-triggered result.
func Pass() Result {
	return Result{}
}

// Fail returns a triggered result. An empty detail is replaced so the
// triggered-implies-detail invariant always holds.
func Fail(detail string) Result {
	if detail == "" {
		detail = "unspecified exposure"
	}
	return Result{Triggered: true, Detail: detail}
}
