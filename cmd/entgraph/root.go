package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "entgraph",
	Short: "Entity graph exploration engine",
	Long: `Entgraph explores the relationship graph around a seed entity.

Starting from an entity name, it resolves the entity against a registry,
collects evidence from multiple sources in parallel, cross-validates the
results, and recurses into related entities it discovers, down to a
configured depth and within hard resource budgets.

Core capabilities:
- Dependency-aware task scheduling within each session
- Phase-driven session lifecycle with guarded transitions
- Budgeted, cycle-safe recursion into discovered entities
- Cached, retried data collection across execution lanes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(exploreCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
