package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jmwhit/docdriver/internal/artifact"
	"github.com/jmwhit/docdriver/internal/batch"
	"github.com/jmwhit/docdriver/internal/checkpoint"
	"github.com/jmwhit/docdriver/internal/qa"
)

func newAskCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Run a question dataset through the conversational surface",
		Long: `Submits each question in the dataset to the workspace's chat surface,
waits out the answer generation, cleans interface chrome off the response,
and records the answer with its source attribution. Already-answered
questions are skipped, so an interrupted run resumes where it stopped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAsk(cmd.Context(), input)
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "question dataset file (overrides ask.input)")
	return cmd
}

func runAsk(ctx context.Context, inputFlag string) error {
	rt, err := buildRuntime(cfgFile)
	if err != nil {
		return err
	}
	defer rt.close(ctx)
	cfg := rt.cfg

	input := inputFlag
	if input == "" {
		input = cfg.Ask.Input
	}
	if input == "" {
		return fmt.Errorf("no dataset: pass --input or set ask.input")
	}

	chatTarget := strings.TrimRight(cfg.Remote.BaseURL, "/") + cfg.Ask.ChatPath
	items, err := batch.LoadPrompts(input, chatTarget)
	if err != nil {
		return err
	}

	artifacts, err := artifact.New(cfg.Ask.OutputDir, rt.logger.Named("artifacts"))
	if err != nil {
		return fmt.Errorf("artifact store init failed: %w", err)
	}
	store := checkpoint.New(cfg.Ask.Checkpoint, artifacts, rt.logger.Named("checkpoint"))
	if _, err := store.Load(); err != nil {
		return fmt.Errorf("checkpoint load failed: %w", err)
	}

	turn := qa.NewTurn(rt.logger.Named("qa"))
	pipeline := batch.NewPipeline(store, artifacts, turn, rt.hasher, rt.clock, rt.logger.Named("pipeline"))

	var limiter *rate.Limiter
	if pace := cfg.Ask.Pace(); pace > 0 {
		limiter = rate.NewLimiter(rate.Every(pace), 1)
	}
	driver := batch.NewDriver(rt.runID, rt.manager, pipeline, rt.emitter, limiter, rt.clock, rt.logger.Named("driver"))

	return rt.runBatch(ctx, driver, items)
}
