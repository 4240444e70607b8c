// Package systemd renders the guardian service unit and checks that an
// installed unit has not been edited since install.
package systemd

import (
	"bytes"
	"fmt"
	"text/template"
)

// UnitConfig parameterizes the rendered unit.
type UnitConfig struct {
	Binary     string // default /usr/local/bin/guardian
	ConfigFile string // passed as --config when set
	User       string // empty runs as root; lsof needs root to see other users' sockets
	EnvFile    string // optional EnvironmentFile= for MBH_* overrides
}

var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description=Breaker exposure guardian
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
{{- if .User}}
User={{.User}}
{{- end}}
{{- if .EnvFile}}
EnvironmentFile=-{{.EnvFile}}
{{- end}}
ExecStart={{.Binary}}{{if .ConfigFile}} --config {{.ConfigFile}}{{end}}
Restart=always
RestartSec=2
NoNewPrivileges=true
PrivateTmp=true
ProtectHome=read-only

[Install]
WantedBy=multi-user.target
`))

// Render returns the unit file text.
func Render(cfg UnitConfig) (string, error) {
	if cfg.Binary == "" {
		cfg.Binary = "/usr/local/bin/guardian"
	}
	var buf bytes.Buffer
	if err := unitTemplate.Execute(&buf, cfg); err != nil {
		return "", fmt.Errorf("render unit: %w", err)
	}
	return buf.String(), nil
}
