package policy

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkingovr/roochguard/api"
)

const sendMethod = "rooch_sendRawTransaction"

func newExampleOPAEngine(t *testing.T) *OPAEngine {
	t.Helper()
	engine, err := NewOPAEngine("../../testdata/policies/example.rego")
	require.NoError(t, err)
	return engine
}

func TestOPAEngine_AllowSmallTx(t *testing.T) {
	engine := newExampleOPAEngine(t)

	result, err := engine.Evaluate(context.Background(), &EvalInput{
		Method:  sendMethod,
		Size:    3,
		Payload: "010203",
	})
	require.NoError(t, err)
	assert.Equal(t, api.VerdictAllow, result.Verdict)
	assert.Equal(t, "allow-small-tx", result.Rule)
}

func TestOPAEngine_AskLargeTx(t *testing.T) {
	engine := newExampleOPAEngine(t)

	result, err := engine.Evaluate(context.Background(), &EvalInput{
		Method:  sendMethod,
		Size:    5000,
		Payload: strings.Repeat("ab", 5000),
	})
	require.NoError(t, err)
	assert.Equal(t, api.VerdictAsk, result.Verdict, "rule: %s, msg: %s", result.Rule, result.Message)
	assert.Equal(t, "large transaction requires approval", result.Message)
}

func TestOPAEngine_DenyOversized(t *testing.T) {
	engine := newExampleOPAEngine(t)

	result, err := engine.Evaluate(context.Background(), &EvalInput{
		Method: sendMethod,
		Size:   70000,
	})
	require.NoError(t, err)
	assert.Equal(t, api.VerdictDeny, result.Verdict)
	assert.Equal(t, "block-oversized", result.Rule)
}

func TestOPAEngine_DenyPrefix(t *testing.T) {
	engine := newExampleOPAEngine(t)

	result, err := engine.Evaluate(context.Background(), &EvalInput{
		Method:  sendMethod,
		Size:    4,
		Payload: "deadbeef",
	})
	require.NoError(t, err)
	assert.Equal(t, api.VerdictDeny, result.Verdict)
	assert.Equal(t, "block-prefix", result.Rule)
}

func TestOPAEngine_DefaultDeny(t *testing.T) {
	engine := newExampleOPAEngine(t)

	result, err := engine.Evaluate(context.Background(), &EvalInput{Method: "rooch_unknown"})
	require.NoError(t, err)
	assert.Equal(t, api.VerdictDeny, result.Verdict)
	assert.Equal(t, "_default", result.Rule)
}

func TestOPAEngine_FromSource(t *testing.T) {
	engine, err := NewOPAEngineFromSource(`package roochguard

import rego.v1

default verdict := "log"
`)
	require.NoError(t, err)

	result, err := engine.Evaluate(context.Background(), &EvalInput{Method: sendMethod})
	require.NoError(t, err)
	assert.Equal(t, api.VerdictLog, result.Verdict)
}

func TestOPAEngine_InvalidRego(t *testing.T) {
	_, err := NewOPAEngineFromSource("this is not valid rego {{{")
	assert.Error(t, err)
}

func TestOPAEngine_MissingFile(t *testing.T) {
	_, err := NewOPAEngine("does-not-exist.rego")
	assert.Error(t, err)
}

func TestParseOPAResult_UnknownVerdict(t *testing.T) {
	result := parseOPAResult(map[string]any{"verdict": "maybe", "rule_name": "r"})
	assert.Equal(t, api.VerdictDeny, result.Verdict)
	assert.Equal(t, "r", result.Rule)
}

func TestOPAEngine_Source(t *testing.T) {
	src := "package roochguard\n\nimport rego.v1\n\ndefault verdict := \"allow\"\n"
	engine, err := NewOPAEngineFromSource(src)
	require.NoError(t, err)
	assert.Equal(t, src, engine.Source())
}
