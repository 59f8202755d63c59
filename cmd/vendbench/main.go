// Command vendbench runs one autonomous vending machine simulation.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	slogmulti "github.com/samber/slog-multi"
	"github.com/spf13/cobra"

	"github.com/talgya/vendbench/internal/config"
	"github.com/talgya/vendbench/internal/llm"
	"github.com/talgya/vendbench/internal/mail"
	"github.com/talgya/vendbench/internal/persistence"
	"github.com/talgya/vendbench/internal/search"
	"github.com/talgya/vendbench/internal/sim"
)

func main() {
	root := &cobra.Command{
		Use:   "vendbench",
		Short: "Long-horizon vending machine benchmark for autonomous agents",
	}
	root.AddCommand(runCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start a simulation run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.AnthropicAPIKey == "" {
				cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
			}
			if cfg.PerplexityAPIKey == "" {
				cfg.PerplexityAPIKey = os.Getenv("PERPLEXITY_API_KEY")
			}
			if cfg.AnthropicAPIKey == "" {
				return fmt.Errorf("no model API key configured (set VENDBENCH_ANTHROPIC_API_KEY or ANTHROPIC_API_KEY)")
			}

			if err := setupLogging(cfg); err != nil {
				return err
			}

			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
			db, err := persistence.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			provider := llm.NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.Model)
			var searcher search.Searcher
			if client := search.NewClient(cfg.PerplexityAPIKey); client != nil {
				searcher = client
			}

			run, err := sim.NewRun(cfg, sim.Deps{
				Provider: provider,
				Searcher: searcher,
				Replies:  mail.NewLLMSupplier(provider, searcher),
				DB:       db,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			controller := sim.NewController(run)
			summary, err := controller.Run(ctx)
			if err != nil {
				return err
			}

			status, reason := run.Status()
			slog.Info("simulation complete",
				"run", run.ID,
				"status", status,
				"reason", reason,
				"days", run.Day(),
				"net_worth", run.NetWorth(),
				"messages", controller.MessageCount(),
			)
			if summary != "" {
				fmt.Println("\nFinal agent summary:\n" + summary)
			}
			return nil
		},
	}
}

// setupLogging fans log output to stdout (text) and a per-process JSON
// log file.
func setupLogging(cfg config.Config) error {
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(cfg.LogDir, "vendbench.jsonl"),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	logger := slog.New(slogmulti.Fanout(
		slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: slog.LevelDebug}),
	))
	slog.SetDefault(logger)
	return nil
}
