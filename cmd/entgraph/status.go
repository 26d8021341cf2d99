package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/entgraph/entgraph/internal/state"
)

var (
	statusLimit   int
	statusSession string
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent exploration outcomes",
	Long: `Display sessions recorded in the outcome database.

Without flags, lists the most recent sessions. With --session, shows
the per-task outcomes of one session.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "Number of sessions to list")
	statusCmd.Flags().StringVar(&statusSession, "session", "", "Show task outcomes for a session ID")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dbPath := cfg.State.DBPath
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No recorded explorations. Run 'entgraph explore <entity>' to start.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open outcome database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate outcome database: %w", err)
	}

	if statusSession != "" {
		return showSession(db, statusSession)
	}

	sessions, err := db.ListSessions(statusLimit)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No recorded explorations.")
		return nil
	}

	for _, s := range sessions {
		phase := color.GreenString("%s", s.FinalPhase)
		if s.FinalPhase.Terminal() && s.FinalPhase != "completed" {
			phase = color.RedString("%s", s.FinalPhase)
		}
		marker := ""
		if s.ParentID != "" {
			marker = "  └ "
		}
		fmt.Printf("%s%-36s  %-24s depth %d  %-10s %s\n",
			marker, s.ID, s.Seed, s.Depth, phase, s.CreatedAt.Format(time.DateTime))
	}
	return nil
}

// showSession prints the per-task outcomes of one recorded session.
func showSession(db *state.DB, id string) error {
	rec, err := db.GetSession(id)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}

	fmt.Printf("%s  %s  depth %d  %s  %s\n",
		rec.ID, rec.Seed, rec.Depth, rec.FinalPhase, rec.Elapsed.Round(time.Millisecond))
	if rec.TimedOut {
		color.Yellow("  timed out")
	}

	outcomes, err := db.GetTaskOutcomes(id)
	if err != nil {
		return fmt.Errorf("get task outcomes: %w", err)
	}
	for _, o := range outcomes {
		line := fmt.Sprintf("  %-14s %-10s attempts=%d  %s", o.Step, o.State, o.Attempts, o.Duration.Round(time.Millisecond))
		if o.Error != "" {
			line += "  " + o.Error
		}
		if o.State == "completed" {
			fmt.Println(line)
		} else {
			color.Red("%s", line)
		}
	}
	return nil
}
