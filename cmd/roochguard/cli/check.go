package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tkingovr/roochguard/api"
	"github.com/tkingovr/roochguard/internal/policy"
)

var (
	checkMethod  string
	checkPayload string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Dry-run a policy check without a running proxy",
	Long: `Check what verdict a transaction would receive without contacting a node.
Useful for testing and debugging policy rules.`,
	Example: `  roochguard check -c policy.yaml --payload 0xdeadbeef
  roochguard check -c policy.yaml --method rooch_sendRawTransaction --payload 0x0a0b`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkMethod, "method", api.MethodSendRawTransaction, "JSON-RPC method to check")
	checkCmd.Flags().StringVar(&checkPayload, "payload", "", "transaction payload as hex")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		return fmt.Errorf("--config/-c is required for check command")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}

	resp, err := policy.Check(cmd.Context(), engine, api.CheckRequest{
		Method:  checkMethod,
		Payload: checkPayload,
	})
	if err != nil {
		return fmt.Errorf("evaluation error: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
