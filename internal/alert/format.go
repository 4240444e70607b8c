package alert

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatPayload builds the webhook body for the given format.
func FormatPayload(format string, event Event) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(event)
	case "pagerduty":
		return formatPagerDuty(event)
	default:
		return formatGeneric(event)
	}
}

func formatGeneric(event Event) ([]byte, error) {
	return json.Marshal(event)
}

func formatSlack(event Event) ([]byte, error) {
	circuit := "opened"
	switch {
	case event.Type == TypeBinaryTamper:
		circuit = "not attempted"
	case !event.CircuitOpened:
		circuit = "FAILED: " + event.CircuitMessage
	}

	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("guardian: %s on %s", event.Type, event.Host),
				},
			},
			map[string]any{
				"type": "section",
				"fields": []any{
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Breaker port:* %d", event.BreakerPort)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Circuit:* %s", circuit)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Issues:* %s", strings.Join(event.Issues, "; "))},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Cycle:* %s", event.CycleID)},
				},
			},
		},
	}
	return json.Marshal(payload)
}

func formatPagerDuty(event Event) ([]byte, error) {
	severity := "error"
	if !event.CircuitOpened {
		severity = "critical"
	}

	payload := map[string]any{
		"event_action": "trigger",
		"dedup_key":    fmt.Sprintf("guardian-%s-%d", event.Host, event.BreakerPort),
		"payload": map[string]any{
			"summary":  fmt.Sprintf("guardian %s on %s: %s", event.Type, event.Host, strings.Join(event.Issues, "; ")),
			"severity": severity,
			"source":   event.Host,
			"custom_details": map[string]any{
				"breaker_port":    event.BreakerPort,
				"issues":          event.Issues,
				"circuit_opened":  event.CircuitOpened,
				"circuit_message": event.CircuitMessage,
				"cycle_id":        event.CycleID,
				"geo":             event.Geo,
			},
		},
	}
	return json.Marshal(payload)
}
