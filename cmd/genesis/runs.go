package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/shayc/genesis/internal/config"
	"github.com/shayc/genesis/internal/store"
)

var (
	runsStatus string
	runsLimit  int
	runsDBPath string
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	idStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	runningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded pipeline runs",
	Long: `List pipeline runs recorded in the local database, newest first.

Use --status to filter by lifecycle state (pending, running, completed,
failed) and 'genesis runs show <id>' to inspect one run's artifacts.`,
	RunE: listRuns,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run and its artifacts",
	Args:  cobra.ExactArgs(1),
	RunE:  showRun,
}

func init() {
	runsCmd.PersistentFlags().StringVar(&runsDBPath, "db", "", "Path to the run database (default from config)")
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "Filter by status (pending, running, completed, failed)")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 0, "Maximum runs to list (default 100)")
	runsCmd.AddCommand(runsShowCmd)
}

// openRunDB opens the run database used by the runs subcommands.
func openRunDB() (*store.DB, error) {
	dbPath := runsDBPath
	if dbPath == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		dbPath = cfg.Database.Path
	}
	if dbPath == "" {
		dbPath = store.DefaultDBPath()
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("no run database at %s; run 'genesis run <idea>' first", dbPath)
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open run database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate run database: %w", err)
	}
	return db, nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	db, err := openRunDB()
	if err != nil {
		return err
	}
	defer db.Close()

	var statusFilter *store.RunStatus
	if runsStatus != "" {
		s := store.RunStatus(runsStatus)
		switch s {
		case store.RunPending, store.RunRunning, store.RunCompleted, store.RunFailed:
			statusFilter = &s
		default:
			return fmt.Errorf("unknown status %q", runsStatus)
		}
	}

	runs, err := db.ListRuns(statusFilter, runsLimit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("%-36s  %-9s  %-16s  %s", "RUN ID", "STATUS", "CREATED", "IDEA")))
	for _, r := range runs {
		fmt.Printf("%s  %-9s  %s  %s\n",
			idStyle.Render(fmt.Sprintf("%-36s", r.ID)),
			statusStyle(r.Status).Render(string(r.Status)),
			dimStyle.Render(r.CreatedAt.Local().Format("2006-01-02 15:04")),
			truncateIdea(r.Idea, 50))
	}
	return nil
}

func showRun(cmd *cobra.Command, args []string) error {
	db, err := openRunDB()
	if err != nil {
		return err
	}
	defer db.Close()

	r, err := db.GetRun(args[0])
	if err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("run %s not found", args[0])
	}

	fmt.Printf("%s %s\n", headerStyle.Render("Run:"), idStyle.Render(r.ID))
	fmt.Printf("%s %s\n", headerStyle.Render("Idea:"), r.Idea)
	fmt.Printf("%s %s\n", headerStyle.Render("Status:"), statusStyle(r.Status).Render(string(r.Status)))
	fmt.Printf("%s %s\n", headerStyle.Render("Created:"), r.CreatedAt.Local().Format(time.RFC1123))
	fmt.Printf("%s %s\n", headerStyle.Render("Updated:"), r.UpdatedAt.Local().Format(time.RFC1123))

	if len(r.Artifacts) == 0 {
		fmt.Println("\nNo artifacts recorded.")
		return nil
	}

	fmt.Printf("\n%s\n", headerStyle.Render("Artifacts:"))
	for _, a := range r.Artifacts {
		fmt.Printf("  %-14s %s\n", a.Type, a.Path)
	}
	return nil
}

// statusStyle picks the lipgloss style for a run status.
func statusStyle(s store.RunStatus) lipgloss.Style {
	switch s {
	case store.RunCompleted:
		return completedStyle
	case store.RunFailed:
		return failedStyle
	case store.RunRunning:
		return runningStyle
	default:
		return dimStyle
	}
}

// truncateIdea bounds the idea column in the listing.
func truncateIdea(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
