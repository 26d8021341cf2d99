package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/entgraph/entgraph/internal/config"
	"github.com/entgraph/entgraph/internal/orchestrator"
	"github.com/entgraph/entgraph/internal/state"
	"github.com/entgraph/entgraph/pkg/models"
)

var (
	exploreDepth    int
	exploreConfig   string
	exploreCriteria string
	exploreJSON     bool
	exploreVerbose  bool
	exploreNoCache  bool
	exploreNoStore  bool
)

var exploreCmd = &cobra.Command{
	Use:   "explore <entity>",
	Short: "Explore the relationship graph around an entity",
	Long: `Run a full exploration rooted at the named entity.

The root session resolves the entity, collects evidence from the
configured sources, validates it, and recurses into related entities
that pass the per-depth criteria. Results are printed as a tree and
appended to the outcome database.`,
	Args: cobra.ExactArgs(1),
	RunE: runExplore,
}

func init() {
	exploreCmd.Flags().IntVar(&exploreDepth, "depth", -1, "Maximum recursion depth (overrides config)")
	exploreCmd.Flags().StringVar(&exploreConfig, "config", "", "Path to a config file")
	exploreCmd.Flags().StringVar(&exploreCriteria, "criteria", "", "Path to a recursion criteria file")
	exploreCmd.Flags().BoolVar(&exploreJSON, "json", false, "Print the result tree as JSON")
	exploreCmd.Flags().BoolVarP(&exploreVerbose, "verbose", "v", false, "Stream progress events to stderr")
	exploreCmd.Flags().BoolVar(&exploreNoCache, "no-cache", false, "Disable the step result cache")
	exploreCmd.Flags().BoolVar(&exploreNoStore, "no-store", false, "Do not persist results")
}

func runExplore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if exploreDepth >= 0 {
		cfg.Recursion.MaxDepth = exploreDepth
	}
	if exploreCriteria != "" {
		cfg.Recursion.CriteriaFile = exploreCriteria
	}
	if exploreNoCache {
		cfg.Cache.Enabled = false
	}

	var opts []orchestrator.ExplorerOption

	if !exploreNoStore {
		dbPath := cfg.State.DBPath
		if dbPath == "" {
			dbPath = state.DefaultDBPath()
		}
		db, err := state.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open outcome database: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return fmt.Errorf("migrate outcome database: %w", err)
		}
		opts = append(opts, orchestrator.WithStore(db))
	}

	var events chan orchestrator.Event
	if exploreVerbose {
		events = make(chan orchestrator.Event, 256)
		opts = append(opts, orchestrator.WithEventChannel(events))
		go streamEvents(events)
	}

	explorer, err := orchestrator.NewExplorer(cfg, opts...)
	if err != nil {
		return err
	}
	defer explorer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := explorer.Explore(ctx, args[0])
	if err != nil {
		return err
	}

	if exploreJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printResult(result, 0)
	fmt.Printf("\n%d session(s) in %s\n", result.TotalSessions(), result.Elapsed.Round(time.Millisecond))
	return nil
}

// streamEvents prints progress events to stderr as they arrive.
func streamEvents(events <-chan orchestrator.Event) {
	dim := color.New(color.Faint)
	for ev := range events {
		switch ev.Type {
		case orchestrator.EventTaskFailed:
			color.Red("  [%s] %s: task %s failed: %v", ev.Type, ev.Seed, ev.TaskID, ev.Error)
		case orchestrator.EventPhaseChanged:
			dim.Fprintf(os.Stderr, "  [%s] %s: %s\n", ev.Type, ev.Seed, ev.Message)
		default:
			dim.Fprintf(os.Stderr, "  [%s] %s %s\n", ev.Type, ev.Seed, ev.TaskID)
		}
	}
}

// printResult renders the session result tree, one session per block.
func printResult(r *models.SessionResult, indent int) {
	pad := strings.Repeat("  ", indent)

	phaseColor := color.New(color.FgGreen)
	switch r.FinalPhase {
	case models.PhaseFailed:
		phaseColor = color.New(color.FgRed)
	case models.PhaseCancelled:
		phaseColor = color.New(color.FgYellow)
	}

	fmt.Printf("%s%s %s [depth %d, %s]\n", pad,
		color.New(color.Bold).Sprint(r.Seed),
		phaseColor.Sprintf("(%s)", r.FinalPhase),
		r.Depth, r.Elapsed.Round(time.Millisecond))

	if f := r.Findings["synthesize"]; f != nil {
		if id := f.String("resolved_id"); id != "" {
			fmt.Printf("%s  id: %s\n", pad, id)
		}
		if sector := f.String("sector"); sector != "" {
			fmt.Printf("%s  sector: %s\n", pad, sector)
		}
		fmt.Printf("%s  confidence: %.2f\n", pad, f.Confidence)
	}
	if len(r.Discovered) > 0 {
		fmt.Printf("%s  discovered: %s\n", pad, strings.Join(r.Discovered, ", "))
	}
	for _, e := range r.Errors {
		color.Red("%s  error: %s", pad, e)
	}
	for _, w := range r.Warnings {
		color.Yellow("%s  warning: %s", pad, w)
	}
	if r.TimedOut {
		color.Yellow("%s  timed out", pad)
	}

	for _, child := range r.Children {
		printResult(child, indent+1)
	}
}

// loadConfig loads configuration, honoring the --config override.
func loadConfig() (*config.Config, error) {
	if exploreConfig != "" {
		return config.LoadFromPath(exploreConfig)
	}
	return config.Load()
}
