package policy

import "context"

// Engine decides the verdict for a submission.
type Engine interface {
	Evaluate(ctx context.Context, input *EvalInput) (*EvalResult, error)

	// Reload re-reads the engine's backing source. A failed reload leaves
	// the previous policy in effect.
	Reload(ctx context.Context) error
}

// RuleViewer is implemented by engines driven by a YAML PolicyFile.
type RuleViewer interface {
	Policy() *PolicyFile
}

// SourceViewer is implemented by engines driven by Rego source.
type SourceViewer interface {
	Source() string
}

var (
	_ RuleViewer   = (*YAMLEngine)(nil)
	_ SourceViewer = (*OPAEngine)(nil)
)
