package policy

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tkingovr/roochguard/api"
)

// LoadFile reads and validates a YAML policy file.
func LoadFile(path string) (*PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	return LoadBytes(data)
}

// LoadBytes parses and validates YAML policy data.
func LoadBytes(data []byte) (*PolicyFile, error) {
	var pf PolicyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}
	if err := validate(&pf); err != nil {
		return nil, err
	}
	return &pf, nil
}

var validActions = map[string]bool{
	"allow": true, "deny": true, "ask": true, "log": true,
}

func validate(pf *PolicyFile) error {
	if pf.Version != 1 {
		return fmt.Errorf("unsupported policy version: %d (expected 1)", pf.Version)
	}

	if pf.Settings.DefaultAction == "" {
		pf.Settings.DefaultAction = api.VerdictDeny
	}
	if !validActions[string(pf.Settings.DefaultAction)] {
		return fmt.Errorf("invalid default_action %q", pf.Settings.DefaultAction)
	}
	if pf.Settings.MaxPayloadBytes < 0 {
		return fmt.Errorf("max_payload_bytes must not be negative")
	}
	if err := validateRateLimit(pf.Settings.RateLimit); err != nil {
		return err
	}
	if err := validateRetry(pf.Settings.Retry); err != nil {
		return err
	}

	for i, rule := range pf.Rules {
		if rule.Name == "" {
			return fmt.Errorf("rule %d: name is required", i)
		}
		if !validActions[rule.Action] {
			return fmt.Errorf("rule %q: invalid action %q", rule.Name, rule.Action)
		}
		if rule.Match.Method == "" {
			return fmt.Errorf("rule %q: match.method is required", rule.Name)
		}
		if rule.Match.MaxSize > 0 && rule.Match.MinSize > rule.Match.MaxSize {
			return fmt.Errorf("rule %q: min_size %d exceeds max_size %d", rule.Name, rule.Match.MinSize, rule.Match.MaxSize)
		}
		if p := rule.Match.PayloadPrefix; p != "" && strings.ToLower(strings.TrimPrefix(p, "0x")) == "" {
			return fmt.Errorf("rule %q: payload_prefix is empty", rule.Name)
		}
		if rule.Match.PayloadRegex != "" {
			if _, err := regexp.Compile(rule.Match.PayloadRegex); err != nil {
				return fmt.Errorf("rule %q: payload_regex invalid: %w", rule.Name, err)
			}
		}
	}

	return nil
}

func validateRateLimit(rl *RateLimitSettings) error {
	if rl == nil {
		return nil
	}
	check := func(name string, r *RateLimitRule) error {
		if r == nil {
			return nil
		}
		if r.Max <= 0 {
			return fmt.Errorf("rate_limit %s: max must be positive", name)
		}
		if _, err := time.ParseDuration(r.Window); err != nil {
			return fmt.Errorf("rate_limit %s: invalid window %q: %w", name, r.Window, err)
		}
		return nil
	}
	if err := check("global", rl.Global); err != nil {
		return err
	}
	for method, r := range rl.PerMethod {
		if err := check(method, r); err != nil {
			return err
		}
	}
	return nil
}

func validateRetry(r *RetrySettings) error {
	if r == nil {
		return nil
	}
	for name, v := range map[string]string{"initial_backoff": r.InitialBackoff, "max_backoff": r.MaxBackoff} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("retry %s: invalid duration %q: %w", name, v, err)
		}
	}
	return nil
}
