package policy

import (
	"github.com/tkingovr/roochguard/api"
)

// PolicyFile represents the top-level YAML policy configuration.
type PolicyFile struct {
	Version  int      `yaml:"version" json:"version"`
	Settings Settings `yaml:"settings" json:"settings"`
	Rules    []Rule   `yaml:"rules" json:"rules"`
}

// Settings contains global settings.
type Settings struct {
	DefaultAction   api.Verdict        `yaml:"default_action" json:"default_action"`
	NodeURL         string             `yaml:"node_url,omitempty" json:"node_url,omitempty"`
	ListenAddr      string             `yaml:"listen_addr,omitempty" json:"listen_addr,omitempty"`
	LogDir          string             `yaml:"log_dir" json:"log_dir"`
	DashboardAddr   string             `yaml:"dashboard_addr" json:"dashboard_addr"`
	ApprovalTimeout string             `yaml:"approval_timeout" json:"approval_timeout"`
	OPAPolicy       string             `yaml:"opa_policy,omitempty" json:"opa_policy,omitempty"`
	MaxPayloadBytes int                `yaml:"max_payload_bytes,omitempty" json:"max_payload_bytes,omitempty"`
	RateLimit       *RateLimitSettings `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
	Retry           *RetrySettings     `yaml:"retry,omitempty" json:"retry,omitempty"`
}

// RateLimitSettings configures rate limiting.
type RateLimitSettings struct {
	Global    *RateLimitRule            `yaml:"global,omitempty" json:"global,omitempty"`
	PerMethod map[string]*RateLimitRule `yaml:"per_method,omitempty" json:"per_method,omitempty"`
}

// RateLimitRule defines a rate limit: max requests per time window.
type RateLimitRule struct {
	Max    int    `yaml:"max" json:"max"`
	Window string `yaml:"window" json:"window"`
}

// RetrySettings configures retries of failed submissions.
type RetrySettings struct {
	MaxAttempts    int    `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty"`
	InitialBackoff string `yaml:"initial_backoff,omitempty" json:"initial_backoff,omitempty"`
	MaxBackoff     string `yaml:"max_backoff,omitempty" json:"max_backoff,omitempty"`
}

// Rule represents a single policy rule.
type Rule struct {
	Name    string    `yaml:"name" json:"name"`
	Match   RuleMatch `yaml:"match" json:"match"`
	Action  string    `yaml:"action" json:"action"`
	Message string    `yaml:"message,omitempty" json:"message,omitempty"`
}

// RuleMatch specifies conditions for matching a submission. All set
// conditions must hold.
type RuleMatch struct {
	// Method is an RPC method name, or "*" for any method.
	Method string `yaml:"method,omitempty" json:"method,omitempty"`
	// MinSize and MaxSize bound the payload size in bytes; zero means unbounded.
	MinSize int `yaml:"min_size,omitempty" json:"min_size,omitempty"`
	MaxSize int `yaml:"max_size,omitempty" json:"max_size,omitempty"`
	// PayloadPrefix matches the start of the lowercase hex payload.
	PayloadPrefix string `yaml:"payload_prefix,omitempty" json:"payload_prefix,omitempty"`
	// PayloadRegex is matched against the lowercase hex payload.
	PayloadRegex string `yaml:"payload_regex,omitempty" json:"payload_regex,omitempty"`
}

// EvalInput is the input to a policy engine evaluation.
type EvalInput struct {
	Method string `json:"method"`
	Size   int    `json:"size"`
	// Payload is the lowercase hex payload without a 0x prefix.
	Payload string `json:"payload,omitempty"`
}

// EvalResult is the output of a policy engine evaluation.
type EvalResult struct {
	Verdict api.Verdict `json:"verdict"`
	Rule    string      `json:"rule,omitempty"`
	Message string      `json:"message,omitempty"`
}
