package filter

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tkingovr/roochguard/api"
	"github.com/tkingovr/roochguard/internal/client"
)

// FilteredClient wraps a client.Client so that every SendRawTransaction
// passes through a filter chain before reaching the node. The other client
// operations are delegated to the wrapped client unchanged.
type FilteredClient struct {
	client.Client
	chain *Chain
}

var _ client.Client = (*FilteredClient)(nil)

// Option configures a FilteredClient.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger used by the chain.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewFilteredClient builds a FilteredClient and calls Init on each filter
// in order. If an Init fails, the filters already initialised are destroyed
// in reverse order.
func NewFilteredClient(ctx context.Context, c client.Client, filters []TransactionFilter, opts ...Option) (*FilteredClient, error) {
	if c == nil {
		return nil, errors.New("filtered client: nil client")
	}
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	for i, f := range filters {
		if f == nil {
			return nil, fmt.Errorf("filtered client: filter %d is nil", i)
		}
	}
	for i, f := range filters {
		if err := f.Init(ctx); err != nil {
			err = fmt.Errorf("init filter %q: %w", filterName(f), err)
			return nil, errors.Join(err, destroyAll(filters[:i]))
		}
	}

	return &FilteredClient{
		Client: c,
		chain:  NewChain(o.logger, filters...),
	}, nil
}

// SendRawTransaction routes payload through the filter chain. The last link
// is the wrapped client's SendRawTransaction.
func (c *FilteredClient) SendRawTransaction(ctx context.Context, payload []byte) (string, error) {
	tc := NewTxContext(api.MethodSendRawTransaction, payload)
	ctx = WithTxContext(ctx, tc)

	return c.chain.Execute(ctx, payload, func(ctx context.Context, payload []byte) (string, error) {
		tc.Attempts++
		return c.Client.SendRawTransaction(ctx, payload)
	})
}

// Unwrap returns the client at the end of the chain.
func (c *FilteredClient) Unwrap() client.Client { return c.Client }

// Chain returns the filter chain.
func (c *FilteredClient) Chain() *Chain { return c.chain }

// Close destroys every filter in reverse order and joins their errors.
func (c *FilteredClient) Close() error {
	return destroyAll(c.chain.filters)
}

func destroyAll(filters []TransactionFilter) error {
	var errs []error
	for i := len(filters) - 1; i >= 0; i-- {
		if err := filters[i].Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("destroy filter %q: %w", filterName(filters[i]), err))
		}
	}
	return errors.Join(errs...)
}
