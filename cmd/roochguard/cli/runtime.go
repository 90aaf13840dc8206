package cli

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tkingovr/roochguard/internal/approval"
	"github.com/tkingovr/roochguard/internal/audit"
	"github.com/tkingovr/roochguard/internal/client"
	"github.com/tkingovr/roochguard/internal/config"
	"github.com/tkingovr/roochguard/internal/filter"
	"github.com/tkingovr/roochguard/internal/policy"
	"github.com/tkingovr/roochguard/internal/proxy"
)

// runtime bundles everything a long-running command needs.
type runtime struct {
	cfg       *config.Config
	engine    policy.Engine
	store     *audit.JSONLStore
	approvals *approval.Queue
	node      *client.HTTPClient
	client    *filter.FilteredClient
}

// loadConfig reads --config when given and applies --node.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if cfgFile != "" {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.DefaultConfig()
	}
	if nodeURL != "" {
		cfg.NodeURL = nodeURL
	}
	return cfg, nil
}

// newEngine picks the Rego engine when an OPA policy is configured and
// the YAML rule engine otherwise.
func newEngine(cfg *config.Config) (policy.Engine, error) {
	switch {
	case cfg.OPAPolicy != "":
		engine, err := policy.NewOPAEngine(cfg.OPAPolicy)
		if err != nil {
			return nil, fmt.Errorf("creating OPA engine: %w", err)
		}
		return engine, nil
	case cfg.PolicyPath != "":
		engine, err := policy.NewYAMLEngine(cfg.PolicyPath)
		if err != nil {
			return nil, fmt.Errorf("creating policy engine: %w", err)
		}
		return engine, nil
	default:
		engine, err := policy.NewYAMLEngineFromPolicy(cfg.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("creating policy engine: %w", err)
		}
		return engine, nil
	}
}

// newRuntime wires config, policy, audit and the filter chain together.
// With withApprovals false, ask verdicts are treated as deny.
func newRuntime(ctx context.Context, withApprovals bool) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	engine, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}

	store, err := audit.NewJSONLStore(cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("creating audit store: %w", err)
	}

	var approvals *approval.Queue
	if withApprovals {
		approvals = approval.NewQueue(cfg.ApprovalTimeout)
	}

	node := client.NewHTTPClient(cfg.NodeURL, client.WithLogger(logger))

	filters := filter.BuildFilters(filter.ChainConfig{
		Engine:          engine,
		Approvals:       approvals,
		AuditStore:      store,
		Logger:          logger,
		MaxPayloadBytes: cfg.MaxPayloadBytes,
		RateLimit:       filter.RateLimitConfigFromPolicy(cfg.RateLimit),
		Retry:           filter.RetryConfigFromPolicy(cfg.Retry),
	})

	fc, err := filter.NewFilteredClient(ctx, node, filters, filter.WithLogger(logger))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("building filter chain: %w", err)
	}

	logger.Info("filter chain ready",
		zap.String("node", cfg.NodeURL),
		zap.Int("filters", len(filters)),
		zap.Bool("approvals", approvals != nil),
	)

	return &runtime{
		cfg:       cfg,
		engine:    engine,
		store:     store,
		approvals: approvals,
		node:      node,
		client:    fc,
	}, nil
}

// dispatcher routes sends through the chain and everything else straight
// to the node.
func (rt *runtime) dispatcher() *proxy.Dispatcher {
	return proxy.NewDispatcher(rt.client, rt.node, logger)
}

func (rt *runtime) Close() error {
	return errors.Join(rt.client.Close(), rt.store.Close())
}
