package alert

// Config defines a webhook alert destination.
type Config struct {
	URL     string            `yaml:"url"     json:"url"     validate:"required,url"`
	Format  string            `yaml:"format"  json:"format"  validate:"omitempty,oneof=generic slack pagerduty"`
	Events  []string          `yaml:"events"  json:"events"` // empty matches every event type
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// Event types.
const (
	TypeExposure          = "exposure_detected"
	TypeCircuitOpenFailed = "circuit_open_failed"
	TypeBinaryTamper      = "binary_tamper"
)

// Event is the payload sent to webhook endpoints after an exposed cycle.
type Event struct {
	Timestamp      string   `json:"timestamp"`
	Type           string   `json:"type"`
	CycleID        string   `json:"cycle_id"`
	Host           string   `json:"host"`
	BreakerPort    int      `json:"breaker_port"`
	Issues         []string `json:"issues"`
	CircuitOpened  bool     `json:"circuit_opened"`
	CircuitMessage string   `json:"circuit_message,omitempty"`
	Geo            []string `json:"geo,omitempty"`
}
