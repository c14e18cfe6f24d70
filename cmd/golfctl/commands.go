package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/golf-qa/backend/internal/app"
	"github.com/golf-qa/backend/internal/query"
	"github.com/golf-qa/backend/pkg/config"
	"github.com/golf-qa/backend/pkg/logger"
)

func setup(ctx context.Context, cmd *cli.Command, opts app.Options) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cmd.String("log-level"), "console", "stderr"); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return app.New(ctx, cfg, opts)
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := cfg.Logging.Level
	if cmd.IsSet("log-level") {
		level = cmd.String("log-level")
	}
	if err := logger.Init(level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	return app.Serve(ctx, cfg)
}

func askAction(ctx context.Context, cmd *cli.Command) error {
	question := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if question == "" {
		return errors.New("a question is required")
	}

	a, err := setup(ctx, cmd, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.Engine.Ask(ctx, query.AskRequest{Question: question, TopK: int(cmd.Int("top-k"))})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Println(resp.Answer)
	if len(resp.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for i, s := range resp.Sources {
			fmt.Printf("  %d. Rule %s - %s (score %.3f)\n", i+1, s.RuleID, s.Section, s.Score)
		}
	}
	if resp.QueryID != "" {
		fmt.Printf("\nquery %s  tokens %d  cost $%.4f  %dms\n", resp.QueryID, resp.Usage.TotalTokens, resp.CostUSD, resp.LatencyMS)
	}
	return nil
}

func updateAction(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(ctx, cmd, app.Options{WithoutLLM: true})
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.Updater.RunOnce(ctx)

	fmt.Printf("passages: %d updated, %d unchanged, %d removed, %d failed\n",
		result.PassagesUpdated, result.PassagesUnchanged, result.PassagesRemoved, result.PassagesFailed)
	fmt.Printf("courses:  %d updated\n", result.CoursesUpdated)
	fmt.Printf("duration: %s, next update %s\n", result.Duration.Round(time.Millisecond), result.NextUpdate.Format(time.RFC1123))

	if !result.Success {
		return fmt.Errorf("update finished with errors: %s", result.Error)
	}
	return nil
}

func freshnessAction(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(ctx, cmd, app.Options{WithoutLLM: true})
	if err != nil {
		return err
	}
	defer a.Close()

	statuses, err := a.Updater.Status(ctx, time.Now())
	if err != nil {
		return err
	}

	for _, s := range statuses {
		fmt.Printf("%-8s %-6s %-7s %s\n", s.DataType, strings.ToUpper(s.Color), s.Record.Status, s.Message)
		if s.Record.ErrorMessage != "" {
			fmt.Printf("         last error: %s\n", s.Record.ErrorMessage)
		}
	}
	return nil
}

func statsAction(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(ctx, cmd, app.Options{WithoutLLM: true})
	if err != nil {
		return err
	}
	defer a.Close()

	days := int(cmd.Int("days"))
	since := time.Now().AddDate(0, 0, -days)

	stats, err := a.Store.GetQueryStats(ctx, since)
	if err != nil {
		return err
	}
	averages, err := a.Store.GetAvgRAGMetrics(ctx, since)
	if err != nil {
		return err
	}
	costs, err := a.Store.GetAPICosts(ctx, since)
	if err != nil {
		return err
	}

	fmt.Printf("Last %d days\n", days)
	fmt.Printf("  queries:        %d (%d positive, %d negative)\n", stats.TotalQueries, stats.PositiveCount, stats.NegativeCount)
	fmt.Printf("  avg latency:    %.0f ms\n", stats.AvgLatencyMS)
	fmt.Printf("  tokens used:    %d (avg %.0f)\n", stats.TotalTokensUsed, stats.AvgTotalTokens)
	fmt.Printf("  total cost:     $%.4f\n", stats.TotalCostUSD)

	fmt.Printf("RAG metrics (%d evaluations)\n", averages.Count)
	fmt.Printf("  context relevancy: %.3f\n", averages.ContextRelevancy)
	fmt.Printf("  context precision: %.3f\n", averages.ContextPrecision)
	fmt.Printf("  answer relevancy:  %.3f\n", averages.AnswerRelevancy)
	fmt.Printf("  faithfulness:      %.3f\n", averages.Faithfulness)

	if len(costs) > 0 {
		fmt.Println("API costs")
		for _, c := range costs {
			fmt.Printf("  %-10s %5d calls  $%.4f\n", c.APIName, c.Calls, c.CostUSD)
		}
	}
	return nil
}
