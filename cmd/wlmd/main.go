// Command wlmd runs a worker pool of build-action subprocesses behind
// a memory-budget enforcing lifecycle manager.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/steelforge/wlm/internal/config"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wlmd",
		Short: "worker lifecycle manager daemon",
		Long: `wlmd runs a pool of long-lived build-action worker subprocesses and
enforces per-worker and fleet-wide memory budgets over it, evicting
idle workers and killing misbehaving ones as needed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cfgFile, cmd.PersistentFlags())
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to wlmd.yaml (default: ./configs/wlmd.yaml)")
	cmd.PersistentFlags().Int("min-workers", 0, "override pool.min_workers")
	cmd.PersistentFlags().Int("max-workers", 0, "override pool.max_workers")
	cmd.PersistentFlags().String("binary", "", "override pool.binary_path")
	cmd.PersistentFlags().Int("port", 0, "override server.port")

	cmd.AddCommand(versionCmd())
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print wlmd's version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("wlmd (worker lifecycle manager)")
		},
	}
}

// loadConfig is split out of runDaemon so config errors surface before
// any subprocess is spawned.
func loadConfig(path string, flags *pflag.FlagSet) (*config.Config, error) {
	return config.Load(path, flags)
}
