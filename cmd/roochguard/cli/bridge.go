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
	"github.com/tkingovr/roochguard/internal/proxy/stdio"
)

var bridgeDashboard string

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Serve newline-delimited JSON-RPC over stdin/stdout",
	Long: `Read one JSON-RPC request per line from stdin and write one response per
line to stdout. rooch_sendRawTransaction goes through the filter chain;
other methods are passed to the node as-is. Logs go to stderr.

Without --dashboard there is nowhere to decide approvals, so ask verdicts
are denied.`,
	Example: `  wallet-tool | roochguard bridge -c policy.yaml
  roochguard bridge -c policy.yaml --dashboard 127.0.0.1:8080`,
	RunE: runBridge,
}

func init() {
	bridgeCmd.Flags().StringVar(&bridgeDashboard, "dashboard", "", "also serve the dashboard API on this address")
	rootCmd.AddCommand(bridgeCmd)
}

func runBridge(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, bridgeDashboard != "")
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	// The dashboard only stops on cancellation, so the bridge ending on
	// EOF has to cancel it explicitly.
	bridgeCtx, cancelBridge := context.WithCancel(gctx)
	defer cancelBridge()

	bridge := stdio.NewBridge(rt.dispatcher(), logger)
	g.Go(func() error {
		defer cancelBridge()
		return bridge.Run(bridgeCtx, os.Stdin, os.Stdout)
	})

	if bridgeDashboard != "" {
		dash := dashboard.NewServer(bridgeDashboard, rt.store, rt.approvals, rt.engine, logger)
		g.Go(func() error {
			return dash.ListenAndServe(bridgeCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bridge: %w", err)
	}
	return nil
}
