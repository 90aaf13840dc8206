package policy

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/tkingovr/roochguard/api"
)

// YAMLEngine evaluates the rules of a PolicyFile in order. The first rule
// whose conditions all hold decides the verdict.
type YAMLEngine struct {
	path string

	mu    sync.RWMutex
	file  *PolicyFile
	rules []compiledRule
}

var _ Engine = (*YAMLEngine)(nil)

// compiledRule is a Rule with its matchers prepared once at load time.
type compiledRule struct {
	rule   *Rule
	prefix string // lowercase hex, no 0x
	regex  *regexp.Regexp
}

// NewYAMLEngine creates an engine backed by a policy file. Reload re-reads it.
func NewYAMLEngine(path string) (*YAMLEngine, error) {
	e := &YAMLEngine{path: path}
	if err := e.Reload(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

// NewYAMLEngineFromPolicy creates an engine from an already-loaded policy.
// Reload is a no-op for it.
func NewYAMLEngineFromPolicy(pf *PolicyFile) (*YAMLEngine, error) {
	e := &YAMLEngine{}
	if err := e.install(pf); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *YAMLEngine) Evaluate(_ context.Context, input *EvalInput) (*EvalResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	payload := strings.ToLower(input.Payload)
	for _, cr := range e.rules {
		if cr.matches(input, payload) {
			return &EvalResult{
				Verdict: api.Verdict(cr.rule.Action),
				Rule:    cr.rule.Name,
				Message: cr.rule.Message,
			}, nil
		}
	}

	return &EvalResult{
		Verdict: e.file.Settings.DefaultAction,
		Rule:    "_default",
		Message: "no matching rule; default action applied",
	}, nil
}

// Reload re-reads the policy file. On error the previous rules stay in effect.
func (e *YAMLEngine) Reload(_ context.Context) error {
	if e.path == "" {
		return nil
	}
	pf, err := LoadFile(e.path)
	if err != nil {
		return err
	}
	return e.install(pf)
}

// Policy returns the loaded policy, for display.
func (e *YAMLEngine) Policy() *PolicyFile {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.file
}

func (e *YAMLEngine) install(pf *PolicyFile) error {
	rules, err := compileRules(pf.Rules)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.file = pf
	e.rules = rules
	return nil
}

func compileRules(rules []Rule) ([]compiledRule, error) {
	out := make([]compiledRule, len(rules))
	for i := range rules {
		r := &rules[i]
		out[i] = compiledRule{
			rule:   r,
			prefix: strings.ToLower(strings.TrimPrefix(r.Match.PayloadPrefix, "0x")),
		}
		if r.Match.PayloadRegex != "" {
			re, err := regexp.Compile(r.Match.PayloadRegex)
			if err != nil {
				return nil, fmt.Errorf("rule %q payload_regex: %w", r.Name, err)
			}
			out[i].regex = re
		}
	}
	return out, nil
}

// matches reports whether every condition set on the rule holds. payload is
// the lowercased input payload.
func (cr *compiledRule) matches(input *EvalInput, payload string) bool {
	m := cr.rule.Match

	if m.Method != "*" && m.Method != input.Method {
		return false
	}
	if m.MinSize > 0 && input.Size < m.MinSize {
		return false
	}
	if m.MaxSize > 0 && input.Size > m.MaxSize {
		return false
	}
	if cr.prefix != "" && !strings.HasPrefix(payload, cr.prefix) {
		return false
	}
	if cr.regex != nil && !cr.regex.MatchString(payload) {
		return false
	}
	return true
}
