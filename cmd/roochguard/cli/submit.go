package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tkingovr/roochguard/internal/jsonrpc"
)

var submitCmd = &cobra.Command{
	Use:   "submit <hex-payload>",
	Short: "Send one raw transaction through the filter chain",
	Long: `Submit a single BCS-encoded transaction, given as hex, through the same
filter chain the proxy uses and print the resulting transaction hash.
There is no approval queue in this mode, so ask verdicts are denied.`,
	Example: `  roochguard submit -c policy.yaml 0x0a0b0c...`,
	Args:    cobra.ExactArgs(1),
	RunE:    runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	payload, err := jsonrpc.DecodeHex(args[0])
	if err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	ctx := cmd.Context()
	rt, err := newRuntime(ctx, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	txHash, err := rt.client.SendRawTransaction(ctx, payload)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), txHash)
	return nil
}
