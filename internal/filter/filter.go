package filter

import "context"

// TransactionFilter is a single interceptor in front of the real client.
type TransactionFilter interface {
	// Init prepares the filter. It is called once, in chain order, when the
	// FilteredClient is built.
	Init(ctx context.Context) error

	// DoFilter handles one submission. It may forward the payload through
	// chain.DoFilter (unchanged or transformed), return without forwarding,
	// or recover from a downstream error. Whatever it returns is what its
	// caller sees.
	DoFilter(ctx context.Context, payload []byte, chain TransactionFilterChain) (string, error)

	// Destroy releases the filter's resources. It is called once, in
	// reverse chain order, when the FilteredClient is closed.
	Destroy() error
}

// TransactionFilterChain is the remainder of the chain as seen from one
// filter. The last link is always the real client call.
type TransactionFilterChain interface {
	DoFilter(ctx context.Context, payload []byte) (string, error)
}

// Named is implemented by filters that want a stable name in logs.
type Named interface {
	Name() string
}

// FilterFunc lets an ordinary function act as the DoFilter step of a filter.
type FilterFunc func(ctx context.Context, payload []byte, chain TransactionFilterChain) (string, error)

// FuncFilter adapts a FilterFunc into a TransactionFilter with no-op
// Init and Destroy.
type FuncFilter struct {
	name string
	fn   FilterFunc
}

// NewFuncFilter wraps fn.
func NewFuncFilter(fn FilterFunc) *FuncFilter {
	return &FuncFilter{name: "func", fn: fn}
}

// NewNamedFuncFilter wraps fn and gives it a name for logging.
func NewNamedFuncFilter(name string, fn FilterFunc) *FuncFilter {
	return &FuncFilter{name: name, fn: fn}
}

func (f *FuncFilter) Name() string { return f.name }

func (f *FuncFilter) Init(context.Context) error { return nil }

func (f *FuncFilter) DoFilter(ctx context.Context, payload []byte, chain TransactionFilterChain) (string, error) {
	return f.fn(ctx, payload, chain)
}

func (f *FuncFilter) Destroy() error { return nil }

func filterName(f TransactionFilter) string {
	if n, ok := f.(Named); ok {
		return n.Name()
	}
	return "anonymous"
}
