package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/optimystic/internal/config"
)

var clusterInfoCmd = &cobra.Command{
	Use:   "cluster-info",
	Short: "Print the cluster consensus thresholds and retry knobs a peer would load",
	Long: `cluster-info loads the same config.Load path serve does and prints
the resulting §6 cluster parameters, without starting any server. Useful
for checking a config file's effective defaults before deploying it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		fmt.Printf("Mode:                     %s\n", cfg.Mode)
		fmt.Printf("Super-majority threshold: %.3f\n", cfg.Cluster.SuperMajorityThreshold)
		fmt.Printf("Simple-majority threshold:%.3f\n", cfg.Cluster.SimpleMajorityThreshold)
		fmt.Printf("Allow cluster downsize:   %t\n", cfg.Cluster.AllowClusterDownsize)
		fmt.Printf("Cluster size tolerance:   %.3f\n", cfg.Cluster.ClusterSizeTolerance)
		fmt.Printf("Min absolute cluster size:%d\n", cfg.Cluster.MinAbsoluteClusterSize)
		fmt.Println()
		fmt.Printf("Retry initial interval:   %dms\n", cfg.Cluster.RetryInitialIntervalMs)
		fmt.Printf("Retry backoff factor:     %.2f\n", cfg.Cluster.RetryBackoffFactor)
		fmt.Printf("Retry max interval:       %dms\n", cfg.Cluster.RetryMaxIntervalMs)
		fmt.Printf("Retry max attempts:       %d\n", cfg.Cluster.RetryMaxAttempts)
		return nil
	},
}

func init() {
	clusterInfoCmd.Flags().String("config", "", "Path to a YAML config file (optional)")
}
