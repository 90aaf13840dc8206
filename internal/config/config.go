package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tkingovr/roochguard/api"
	"github.com/tkingovr/roochguard/internal/policy"
)

// Config is the runtime configuration for roochguard.
type Config struct {
	PolicyFile      *policy.PolicyFile
	PolicyPath      string
	NodeURL         string
	ListenAddr      string
	LogDir          string
	DashboardAddr   string
	ApprovalTimeout time.Duration
	DefaultAction   api.Verdict
	MaxPayloadBytes int

	// OPAPolicy is the path to a .rego file. When set it replaces the
	// YAML rules as the policy engine.
	OPAPolicy string

	RateLimit *policy.RateLimitSettings
	Retry     *policy.RetrySettings
}

// Load reads a policy YAML file and produces a runtime Config.
func Load(path string) (*Config, error) {
	pf, err := policy.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return fromPolicy(pf, path)
}

// LoadBytes parses YAML data and produces a runtime Config.
func LoadBytes(data []byte) (*Config, error) {
	pf, err := policy.LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return fromPolicy(pf, "")
}

func fromPolicy(pf *policy.PolicyFile, path string) (*Config, error) {
	s := pf.Settings
	cfg := &Config{
		PolicyFile:      pf,
		PolicyPath:      path,
		DefaultAction:   s.DefaultAction,
		NodeURL:         orDefault(s.NodeURL, DefaultNodeURL),
		ListenAddr:      orDefault(s.ListenAddr, DefaultListenAddr),
		DashboardAddr:   orDefault(s.DashboardAddr, DefaultDashboardAddr),
		LogDir:          expandHome(orDefault(s.LogDir, DefaultLogDir())),
		MaxPayloadBytes: s.MaxPayloadBytes,
		RateLimit:       s.RateLimit,
		Retry:           s.Retry,
	}
	if cfg.MaxPayloadBytes == 0 {
		cfg.MaxPayloadBytes = DefaultMaxPayloadBytes
	}

	// Approval timeout
	if s.ApprovalTimeout != "" {
		d, err := time.ParseDuration(s.ApprovalTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid approval_timeout %q: %w", s.ApprovalTimeout, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("approval_timeout must be positive, got %s", d)
		}
		cfg.ApprovalTimeout = d
	} else {
		cfg.ApprovalTimeout = DefaultApprovalTimeout
	}

	// A relative OPA policy path is relative to the config file.
	if s.OPAPolicy != "" {
		cfg.OPAPolicy = expandHome(s.OPAPolicy)
		if path != "" && !filepath.IsAbs(cfg.OPAPolicy) {
			cfg.OPAPolicy = filepath.Join(filepath.Dir(path), cfg.OPAPolicy)
		}
	}

	return cfg, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfig returns a config with defaults for when no config file is given.
func DefaultConfig() *Config {
	return &Config{
		PolicyFile: &policy.PolicyFile{
			Version: 1,
			Settings: policy.Settings{
				DefaultAction: api.VerdictDeny,
			},
		},
		NodeURL:         DefaultNodeURL,
		ListenAddr:      DefaultListenAddr,
		LogDir:          expandHome(DefaultLogDir()),
		DashboardAddr:   DefaultDashboardAddr,
		ApprovalTimeout: DefaultApprovalTimeout,
		DefaultAction:   api.VerdictDeny,
		MaxPayloadBytes: DefaultMaxPayloadBytes,
	}
}

// MarshalYAML serializes the policy for display/export.
func (c *Config) MarshalYAML() ([]byte, error) {
	return yaml.Marshal(c.PolicyFile)
}
