package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/entgraph/entgraph/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key]",
	Short: "Show configuration",
	Long: `View the effective entgraph configuration.

Without arguments, displays all configuration values. With one argument
(key), displays the value for that key.

Configuration is stored at ~/.config/entgraph/config.yaml
Project-specific overrides can be placed in .entgraph.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		if len(args) == 0 {
			displayAllConfig(cfg)
			return
		}
		displayConfigKey(cfg, args[0])
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("engine.max_concurrent_tasks: %d\n", cfg.Engine.MaxConcurrentTasks)
	fmt.Printf("engine.session_time_limit: %s\n", cfg.Engine.SessionTimeLimit)
	fmt.Printf("engine.debug_log: %s\n", cfg.Engine.DebugLog)
	fmt.Printf("retry.max_retries: %d\n", cfg.Retry.MaxRetries)
	fmt.Printf("retry.base_delay: %s\n", cfg.Retry.BaseDelay)
	fmt.Printf("retry.backoff_factor: %g\n", cfg.Retry.BackoffFactor)
	fmt.Printf("recursion.max_depth: %d\n", cfg.Recursion.MaxDepth)
	fmt.Printf("recursion.similarity_threshold: %g\n", cfg.Recursion.SimilarityThreshold)
	fmt.Printf("recursion.criteria_file: %s\n", cfg.Recursion.CriteriaFile)
	fmt.Printf("recursion.watch_criteria: %t\n", cfg.Recursion.WatchCriteria)
	fmt.Printf("limits.max_total_entities: %d\n", cfg.Limits.MaxTotalEntities)
	fmt.Printf("limits.max_wall_clock: %s\n", cfg.Limits.MaxWallClock)
	fmt.Printf("limits.max_external_calls: %d\n", cfg.Limits.MaxExternalCalls)
	fmt.Printf("lanes.cpu_workers: %d\n", cfg.Lanes.CPUWorkers)
	fmt.Printf("lanes.pool_workers: %d\n", cfg.Lanes.PoolWorkers)
	fmt.Printf("cache.enabled: %t\n", cfg.Cache.Enabled)
	fmt.Printf("cache.path: %s\n", cfg.Cache.Path)
	fmt.Printf("cache.default_ttl: %s\n", cfg.Cache.DefaultTTL)
	fmt.Printf("state.db_path: %s\n", cfg.State.DBPath)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// getConfigValue resolves a dotted key to its formatted value.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch key {
	case "engine.max_concurrent_tasks":
		return fmt.Sprintf("%d", cfg.Engine.MaxConcurrentTasks), nil
	case "engine.session_time_limit":
		return cfg.Engine.SessionTimeLimit.String(), nil
	case "engine.debug_log":
		return cfg.Engine.DebugLog, nil
	case "retry.max_retries":
		return fmt.Sprintf("%d", cfg.Retry.MaxRetries), nil
	case "retry.base_delay":
		return cfg.Retry.BaseDelay.String(), nil
	case "retry.backoff_factor":
		return fmt.Sprintf("%g", cfg.Retry.BackoffFactor), nil
	case "recursion.max_depth":
		return fmt.Sprintf("%d", cfg.Recursion.MaxDepth), nil
	case "recursion.similarity_threshold":
		return fmt.Sprintf("%g", cfg.Recursion.SimilarityThreshold), nil
	case "recursion.criteria_file":
		return cfg.Recursion.CriteriaFile, nil
	case "recursion.watch_criteria":
		return fmt.Sprintf("%t", cfg.Recursion.WatchCriteria), nil
	case "limits.max_total_entities":
		return fmt.Sprintf("%d", cfg.Limits.MaxTotalEntities), nil
	case "limits.max_wall_clock":
		return cfg.Limits.MaxWallClock.String(), nil
	case "limits.max_external_calls":
		return fmt.Sprintf("%d", cfg.Limits.MaxExternalCalls), nil
	case "lanes.cpu_workers":
		return fmt.Sprintf("%d", cfg.Lanes.CPUWorkers), nil
	case "lanes.pool_workers":
		return fmt.Sprintf("%d", cfg.Lanes.PoolWorkers), nil
	case "cache.enabled":
		return fmt.Sprintf("%t", cfg.Cache.Enabled), nil
	case "cache.path":
		return cfg.Cache.Path, nil
	case "cache.default_ttl":
		return cfg.Cache.DefaultTTL.String(), nil
	case "state.db_path":
		return cfg.State.DBPath, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}
