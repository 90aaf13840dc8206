package filter

import (
	"context"

	"go.uber.org/zap"
)

// Terminal is the real operation at the end of a chain.
type Terminal func(ctx context.Context, payload []byte) (string, error)

// Chain is an immutable, ordered list of filters. Every Execute call walks
// it with its own cursor, so concurrent executions share no state.
type Chain struct {
	filters []TransactionFilter
	logger  *zap.Logger
}

// NewChain creates a new filter chain. The filter slice is copied.
func NewChain(logger *zap.Logger, filters ...TransactionFilter) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{
		filters: append([]TransactionFilter(nil), filters...),
		logger:  logger,
	}
}

// Len returns the number of filters.
func (c *Chain) Len() int { return len(c.filters) }

// Filters returns a copy of the filters in execution order.
func (c *Chain) Filters() []TransactionFilter {
	return append([]TransactionFilter(nil), c.filters...)
}

// Execute runs payload through every filter and finally through terminal.
func (c *Chain) Execute(ctx context.Context, payload []byte, terminal Terminal) (string, error) {
	return link{chain: c, cursor: 0, terminal: terminal}.DoFilter(ctx, payload)
}

// link is the chain as seen from position cursor. Calling DoFilter invokes
// filters[cursor] with the link at cursor+1; past the end it invokes the
// terminal operation.
type link struct {
	chain    *Chain
	cursor   int
	terminal Terminal
}

func (l link) DoFilter(ctx context.Context, payload []byte) (string, error) {
	if l.cursor >= len(l.chain.filters) {
		return l.terminal(ctx, payload)
	}

	f := l.chain.filters[l.cursor]
	next := link{chain: l.chain, cursor: l.cursor + 1, terminal: l.terminal}

	result, err := f.DoFilter(ctx, payload, next)
	if ce := l.chain.logger.Check(zap.DebugLevel, "filter executed"); ce != nil {
		fields := []zap.Field{
			zap.String("filter", filterName(f)),
			zap.Int("position", l.cursor),
			zap.Error(err),
		}
		if tc := TxContextFrom(ctx); tc != nil {
			fields = append(fields,
				zap.String("method", tc.Method),
				zap.String("verdict", string(tc.Verdict)),
			)
		}
		ce.Write(fields...)
	}
	return result, err
}
