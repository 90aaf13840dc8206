package policy

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/storage/inmem"
	"github.com/open-policy-agent/opa/v1/topdown"

	"github.com/tkingovr/roochguard/api"
)

const (
	regoPackageQuery = "data.roochguard"
	regoModuleName   = "roochguard.rego"
)

// OPAEngine evaluates submissions with an embedded Rego policy.
//
// The policy lives in package roochguard and may define:
//
//	verdict:   "allow" | "deny" | "ask" | "log"
//	rule_name: string
//	message:   string
//
// It sees input.method, input.size (payload bytes) and input.payload
// (lowercase hex without 0x). Anything missing or malformed evaluates to deny.
type OPAEngine struct {
	path string

	mu     sync.RWMutex
	query  rego.PreparedEvalQuery
	source string
}

var _ Engine = (*OPAEngine)(nil)

// NewOPAEngine compiles the .rego file at path.
func NewOPAEngine(path string) (*OPAEngine, error) {
	e := &OPAEngine{path: path}
	if err := e.Reload(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

// NewOPAEngineFromSource compiles Rego source held in memory.
func NewOPAEngineFromSource(source string) (*OPAEngine, error) {
	e := &OPAEngine{}
	if err := e.install(context.Background(), source); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *OPAEngine) Evaluate(ctx context.Context, input *EvalInput) (*EvalResult, error) {
	e.mu.RLock()
	query := e.query
	e.mu.RUnlock()

	rs, err := query.Eval(ctx, rego.EvalInput(map[string]any{
		"method":  input.Method,
		"size":    input.Size,
		"payload": input.Payload,
	}))
	switch {
	case err != nil && topdown.IsError(err):
		// Runtime errors in the policy (conflicts, builtin failures) deny
		// the submission instead of failing the call.
		return denyResult("_opa_error", "OPA evaluation error: "+err.Error()), nil
	case err != nil:
		return nil, fmt.Errorf("OPA evaluation failed: %w", err)
	case len(rs) == 0 || len(rs[0].Expressions) == 0:
		return denyResult("_opa_default", "OPA policy returned no result"), nil
	}

	doc, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return denyResult("_opa_parse_error", "unexpected OPA result type"), nil
	}
	return parseOPAResult(doc), nil
}

// Reload recompiles the policy file. Engines built from source have
// nothing to reload.
func (e *OPAEngine) Reload(ctx context.Context) error {
	if e.path == "" {
		return nil
	}
	data, err := os.ReadFile(e.path)
	if err != nil {
		return fmt.Errorf("reading OPA policy file: %w", err)
	}
	return e.install(ctx, string(data))
}

// Source returns the Rego source currently in effect.
func (e *OPAEngine) Source() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.source
}

func (e *OPAEngine) install(ctx context.Context, source string) error {
	query, err := compileRego(ctx, source)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.query = query
	e.source = source
	return nil
}

func compileRego(ctx context.Context, source string) (rego.PreparedEvalQuery, error) {
	if _, err := ast.ParseModuleWithOpts(regoModuleName, source, ast.ParserOptions{RegoVersion: ast.RegoV1}); err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("parsing Rego policy: %w", err)
	}
	query, err := rego.New(
		rego.Query(regoPackageQuery),
		rego.Module(regoModuleName, source),
		rego.Store(inmem.New()),
	).PrepareForEval(ctx)
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("preparing OPA query: %w", err)
	}
	return query, nil
}

func denyResult(rule, message string) *EvalResult {
	return &EvalResult{Verdict: api.VerdictDeny, Rule: rule, Message: message}
}

// parseOPAResult reads the roochguard package document. Unknown verdicts
// fall back to deny.
func parseOPAResult(doc map[string]any) *EvalResult {
	result := &EvalResult{Verdict: api.VerdictDeny}

	if v, ok := doc["verdict"].(string); ok && validActions[v] {
		result.Verdict = api.Verdict(v)
	}
	result.Rule, _ = doc["rule_name"].(string)
	result.Message, _ = doc["message"].(string)
	return result
}
