package config

import "time"

const (
	DefaultNodeURL         = "http://127.0.0.1:6767"
	DefaultListenAddr      = "127.0.0.1:6768"
	DefaultDashboardAddr   = "127.0.0.1:8080"
	DefaultApprovalTimeout = 5 * time.Minute
	DefaultMaxPayloadBytes = 1 << 20
)

// DefaultLogDir returns the default log directory path.
func DefaultLogDir() string {
	return "~/.roochguard/logs"
}
