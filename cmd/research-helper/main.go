package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mikeboe/research-agent/pkg/config"
	"github.com/mikeboe/research-agent/pkg/database"
	"github.com/mikeboe/research-agent/pkg/research"
	"github.com/mikeboe/research-agent/pkg/server"
)

var (
	topic  string
	depth  int
	output string
)

func main() {
	// Setup structured logging
	handler := slog.NewTextHandler(os.Stdout, nil)
	slog.SetDefault(slog.New(handler))
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:   "research-helper",
		Short: "A terminal-based research agent",
		Long:  `research-helper researches a topic over several search, extract and analyze rounds and writes a cited markdown report.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("topic") {
				// Interactive Mode
				reader := bufio.NewReader(os.Stdin)
				fmt.Print("Enter research topic: ")
				input, _ := reader.ReadString('\n')
				topic = input
			}
			topic = strings.TrimSpace(topic)
			if topic == "" {
				return errors.New("topic cannot be empty")
			}
			if !cmd.Flags().Changed("depth") && cfg.DefaultDepth > 0 {
				depth = cfg.DefaultDepth
			}

			svc := server.NewService(cfg, nil)

			// The audit trail is optional for the CLI
			if cfg.DatabaseURL != "" {
				db, err := database.Open(cmd.Context(), cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer db.Close()
				svc.Runs = db
			}

			slog.Info("Starting research", "topic", topic, "depth", research.ClampDepth(depth))
			result, err := svc.Research(cmd.Context(), topic, depth)
			if err != nil {
				return errors.New(server.NormalizeError(err))
			}

			sourcesPath, err := writeOutputs(output, result)
			if err != nil {
				return err
			}
			slog.Info("Research complete", "report", output, "sources", sourcesPath, "findings", result.TotalFindings)
			return nil
		},
	}

	rootCmd.Flags().StringVarP(&topic, "topic", "t", "", "The research topic")
	rootCmd.Flags().IntVarP(&depth, "depth", "d", research.DefaultDepth, "Number of research rounds (1-5)")
	rootCmd.Flags().StringVarP(&output, "output", "o", "report.md", "Where to write the markdown report")
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

// writeOutputs writes the report to reportPath and the source list to
// sources.json next to it.
func writeOutputs(reportPath string, result *research.Result) (string, error) {
	if dir := filepath.Dir(reportPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(reportPath, []byte(result.Report), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	sources, err := json.MarshalIndent(result.Sources, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode sources: %w", err)
	}
	sourcesPath := filepath.Join(filepath.Dir(reportPath), "sources.json")
	if err := os.WriteFile(sourcesPath, sources, 0o644); err != nil {
		return "", fmt.Errorf("failed to write sources: %w", err)
	}
	return sourcesPath, nil
}
