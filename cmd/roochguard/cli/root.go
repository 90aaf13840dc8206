package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	cfgFile string
	nodeURL string
	verbose bool
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "roochguard",
	Short: "roochguard - filtered transaction submission for Rooch nodes",
	Long: `roochguard puts an ordered filter chain in front of a Rooch JSON-RPC node.
Raw transactions are validated, rate limited, checked against a policy,
optionally held for approval, retried and audited before they reach the
node. The chain is exposed as an HTTP JSON-RPC proxy, a stdio bridge and
a dashboard API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Production config writes JSON to stderr, which keeps stdout free
		// for the bridge and for command output.
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "policy config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&nodeURL, "node", "", "Rooch node JSON-RPC URL (overrides settings.node_url)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
