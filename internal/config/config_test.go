package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tkingovr/roochguard/api"
)

func TestLoadBytes_DefaultDeny(t *testing.T) {
	yaml := `
version: 1
settings:
  default_action: deny
  approval_timeout: "10m"
  node_url: https://test-seed.rooch.network
  max_payload_bytes: 4096
rules:
  - name: allow-tx
    match:
      method: rooch_sendRawTransaction
    action: allow
`
	cfg, err := LoadBytes([]byte(yaml))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultAction != api.VerdictDeny {
		t.Errorf("expected deny default, got %s", cfg.DefaultAction)
	}
	if cfg.ApprovalTimeout != 10*time.Minute {
		t.Errorf("expected 10m timeout, got %s", cfg.ApprovalTimeout)
	}
	if cfg.NodeURL != "https://test-seed.rooch.network" {
		t.Errorf("unexpected node url %s", cfg.NodeURL)
	}
	if cfg.MaxPayloadBytes != 4096 {
		t.Errorf("expected max payload 4096, got %d", cfg.MaxPayloadBytes)
	}
}

func TestLoadBytes_Defaults(t *testing.T) {
	yaml := `
version: 1
settings: {}
`
	cfg, err := LoadBytes([]byte(yaml))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DashboardAddr != DefaultDashboardAddr {
		t.Errorf("expected default dashboard addr %s, got %s", DefaultDashboardAddr, cfg.DashboardAddr)
	}
	if cfg.ApprovalTimeout != DefaultApprovalTimeout {
		t.Errorf("expected default approval timeout %s, got %s", DefaultApprovalTimeout, cfg.ApprovalTimeout)
	}
	if cfg.NodeURL != DefaultNodeURL || cfg.ListenAddr != DefaultListenAddr {
		t.Errorf("expected default node/listen addrs, got %s and %s", cfg.NodeURL, cfg.ListenAddr)
	}
	if cfg.MaxPayloadBytes != DefaultMaxPayloadBytes {
		t.Errorf("expected default max payload, got %d", cfg.MaxPayloadBytes)
	}
	if strings.HasPrefix(cfg.LogDir, "~") {
		t.Errorf("expected ~ to be expanded, got %s", cfg.LogDir)
	}
	if cfg.RateLimit != nil || cfg.Retry != nil {
		t.Error("expected rate limit and retry to be unset")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.DefaultAction != api.VerdictDeny {
		t.Errorf("expected deny default, got %s", cfg.DefaultAction)
	}
	if cfg.PolicyFile == nil {
		t.Fatal("expected non-nil policy file")
	}
}

func TestLoadBytes_InvalidTimeout(t *testing.T) {
	for _, timeout := range []string{"invalid", "-1s"} {
		yaml := "version: 1\nsettings:\n  approval_timeout: \"" + timeout + "\"\n"
		if _, err := LoadBytes([]byte(yaml)); err == nil {
			t.Errorf("expected error for timeout %q", timeout)
		}
	}
}

func TestLoad_ExampleFile(t *testing.T) {
	cfg, err := Load("../../testdata/policies/example.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != "127.0.0.1:6768" {
		t.Errorf("unexpected listen addr %s", cfg.ListenAddr)
	}
	if cfg.ApprovalTimeout != 2*time.Minute {
		t.Errorf("expected 2m timeout, got %s", cfg.ApprovalTimeout)
	}
	if cfg.RateLimit == nil || cfg.RateLimit.Global.Max != 100 {
		t.Errorf("expected global rate limit of 100, got %+v", cfg.RateLimit)
	}
	if cfg.Retry == nil || cfg.Retry.MaxAttempts != 3 {
		t.Errorf("expected retry settings, got %+v", cfg.Retry)
	}

	out, err := cfg.MarshalYAML()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "ask-large-tx") {
		t.Error("expected marshaled policy to contain rule names")
	}
}

func TestLoadBytes_OPAPolicyPath(t *testing.T) {
	cfg, err := LoadBytes([]byte("version: 1\nsettings:\n  opa_policy: policies/guard.rego\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OPAPolicy != "policies/guard.rego" {
		t.Errorf("expected path kept as-is without a config file, got %s", cfg.OPAPolicy)
	}

	cfg, err = fromPolicy(cfg.PolicyFile, filepath.Join("etc", "roochguard.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OPAPolicy != filepath.Join("etc", "policies", "guard.rego") {
		t.Errorf("expected path relative to config, got %s", cfg.OPAPolicy)
	}
}
