package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tkingovr/roochguard/internal/client"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the chain id and RPC API version of the configured node",
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	node := client.NewHTTPClient(cfg.NodeURL, client.WithLogger(logger))

	chainID, err := node.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("getting chain id: %w", err)
	}
	apiVersion, err := node.GetRPCAPIVersion(ctx)
	if err != nil {
		return fmt.Errorf("getting rpc api version: %w", err)
	}

	out := struct {
		Node       string `json:"node"`
		ChainID    uint64 `json:"chain_id"`
		APIVersion string `json:"rpc_api_version"`
	}{cfg.NodeURL, chainID, apiVersion}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
