package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/shayc/genesis/internal/api"
	"github.com/shayc/genesis/internal/config"
	"github.com/shayc/genesis/internal/export"
	"github.com/shayc/genesis/internal/pipeline"
	"github.com/shayc/genesis/internal/run"
	"github.com/shayc/genesis/internal/store"
)

var (
	runOutputDir      string
	runNoInstallGuide bool
	runRerunID        string
	runDBPath         string
	runDebug          bool
)

var runCmd = &cobra.Command{
	Use:   "run [idea]",
	Short: "Run the full pipeline for a product idea",
	Long: `Run the six-agent pipeline against a product idea.

The idea flows through the agents in dependency order:
  1. requirements_drafter  — writes the PRD
  2. brand_designer        — brand guide        (concurrent with 3)
  3. architecture_planner  — architecture map   (concurrent with 2)
  4. code_generator        — source files       (waits for 2 and 3)
  5. marketing_strategist  — go-to-market plan
  6. onboarding_writer     — installation guide (skippable)

Agents never retry: the first failure aborts the run and the record is
marked failed. Artifacts of a completed run are exported to the output
directory and registered in the run database.

A run in progress can be canceled from another terminal with
'genesis stop' in the same directory, or with Ctrl-C.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringVarP(&runOutputDir, "output", "o", "", "Output directory for artifacts (default from config)")
	runCmd.Flags().BoolVar(&runNoInstallGuide, "no-install-guide", false, "Skip the onboarding writer agent")
	runCmd.Flags().StringVar(&runRerunID, "rerun", "", "Re-execute the pipeline for a recorded run ID")
	runCmd.Flags().StringVar(&runDBPath, "db", "", "Path to the run database (default from config)")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "Write a debug log under .genesis/logs")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	if runRerunID == "" && len(args) == 0 {
		return fmt.Errorf("provide a product idea or --rerun <run-id>")
	}
	if runRerunID != "" && len(args) > 0 {
		return fmt.Errorf("--rerun takes the idea from the recorded run; drop the idea argument")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Fail before any record is created when no backend credential exists.
	if cfg.Anthropic.APIKey == "" && os.Getenv("ANTHROPIC_API_KEY") == "" && !cfg.Anthropic.UseBedrock {
		return fmt.Errorf("no API key configured\n\n" +
			"Set the ANTHROPIC_API_KEY environment variable, or run:\n" +
			"  genesis config anthropic.api_key <key>\n\n" +
			"AWS Bedrock users: genesis config anthropic.use_bedrock true")
	}

	client, err := api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        cfg.Anthropic.APIKey,
		MaxTokens:     int64(cfg.Anthropic.MaxTokens),
		Timeout:       cfg.Timeouts.Generate,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return fmt.Errorf("create API client: %w", err)
	}

	dbPath := runDBPath
	if dbPath == "" {
		dbPath = cfg.Database.Path
	}
	if dbPath == "" {
		dbPath = store.DefaultDBPath()
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open run database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate run database: %w", err)
	}

	outputDir := runOutputDir
	if outputDir == "" {
		outputDir = cfg.Output.Dir
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	logger := pipeline.NopLogger()
	if runDebug {
		logger = pipeline.NewDebugLoggerForDir(cwd)
		defer logger.Close()
	}

	installGuide := cfg.Pipeline.InstallGuide && !runNoInstallGuide

	driver, err := run.NewDriver(run.Options{
		Generator:    client,
		Store:        db,
		Exporter:     export.NewWriter(outputDir),
		Events:       progressEmitter(),
		Logger:       logger,
		InstallGuide: installGuide,
		SignalDir:    cwd,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("%s\n\n", color.New(color.Bold).Sprint("GENESIS PIPELINE"))

	var result *run.Result
	if runRerunID != "" {
		result, err = driver.Rerun(ctx, runRerunID)
	} else {
		result, err = driver.Run(ctx, args[0])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "\n%s %v\n", color.RedString("✗"), err)
		os.Exit(1)
	}

	printSummary(result, client.Tracker())
	return nil
}

// progressEmitter renders pipeline events as colorized progress lines.
func progressEmitter() pipeline.Emitter {
	return pipeline.EmitterFunc(func(e pipeline.Event) {
		switch e.Type {
		case pipeline.EventAgentStarted:
			fmt.Printf("%s %s\n", color.CyanString("▶"), e.Agent)
		case pipeline.EventAgentCompleted:
			fmt.Printf("%s %s (%s, %s tokens)\n",
				color.GreenString("✓"), e.Agent,
				e.Duration.Round(time.Millisecond), formatNumber(e.Tokens))
		case pipeline.EventAgentFailed:
			fmt.Printf("%s %s: %v\n", color.RedString("✗"), e.Agent, e.Err)
		}
	})
}

// printSummary prints the final run report, mirroring the progress style.
func printSummary(res *run.Result, tracker *api.TokenTracker) {
	meta := res.State.Meta()

	fmt.Printf("\n%s\n", color.New(color.Bold).Sprint("PIPELINE COMPLETE"))
	fmt.Printf("  Run ID:    %s\n", res.RunID)
	fmt.Printf("  Duration:  %s\n", res.Duration.Round(time.Millisecond))
	fmt.Printf("  Tokens:    %s\n", formatNumber(meta.TotalTokens))
	if tracker != nil {
		fmt.Printf("  Est. cost: $%.4f\n", tracker.Cost())
	}

	if files, ok := res.State.GeneratedFiles(); ok {
		fmt.Printf("  Files:     %d generated\n", len(files))
	}

	if len(meta.AgentSeconds) > 0 {
		fmt.Println("\nAgents:")
		names := make([]string, 0, len(meta.AgentSeconds))
		for name := range meta.AgentSeconds {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %-22s %6.1fs  %s tokens\n",
				name, meta.AgentSeconds[name], formatNumber(meta.AgentTokens[name]))
		}
	}

	fmt.Println("\nArtifacts:")
	for _, a := range res.Artifacts {
		fmt.Printf("  %s %-14s %s\n", color.GreenString("✓"), a.Type, displayPath(a.Path))
	}
}

// displayPath shortens an absolute artifact path relative to the working
// directory when possible.
func displayPath(p string) string {
	cwd, err := os.Getwd()
	if err != nil {
		return p
	}
	rel, err := filepath.Rel(cwd, p)
	if err != nil || len(rel) >= len(p) {
		return p
	}
	return rel
}

// formatNumber renders a token count with thousands separators.
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}
