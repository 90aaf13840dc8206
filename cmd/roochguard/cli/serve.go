package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tkingovr/roochguard/internal/dashboard"
	httpproxy "github.com/tkingovr/roochguard/internal/proxy/http"
)

var (
	serveListen    string
	serveDashboard string
	serveNoDash    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON-RPC proxy and the dashboard API",
	Long: `Start an HTTP JSON-RPC proxy in front of a Rooch node. Calls to
rooch_sendRawTransaction go through the filter chain; every other request
is forwarded to the node unchanged. The dashboard API runs alongside it and
is where pending approvals are decided.`,
	Example: `  roochguard serve -c policy.yaml
  roochguard serve -c policy.yaml --node http://127.0.0.1:6767 --listen :6768 --dashboard :8080`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "proxy listen address (overrides settings.listen_addr)")
	serveCmd.Flags().StringVar(&serveDashboard, "dashboard", "", "dashboard listen address (overrides settings.dashboard_addr)")
	serveCmd.Flags().BoolVar(&serveNoDash, "no-dashboard", false, "run the proxy without the dashboard; ask verdicts are denied")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, !serveNoDash)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	listen := orFlag(serveListen, rt.cfg.ListenAddr)
	px, err := httpproxy.NewProxy(rt.cfg.NodeURL, rt.dispatcher(), logger,
		httpproxy.WithMaxPayloadBytes(rt.cfg.MaxPayloadBytes))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return px.ListenAndServe(gctx, listen)
	})

	if !serveNoDash {
		addr := orFlag(serveDashboard, rt.cfg.DashboardAddr)
		dash := dashboard.NewServer(addr, rt.store, rt.approvals, rt.engine, logger)
		g.Go(func() error {
			return dash.ListenAndServe(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func orFlag(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}
