package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmwhit/docdriver/internal/artifact"
	"github.com/jmwhit/docdriver/internal/batch"
	"github.com/jmwhit/docdriver/internal/checkpoint"
	"github.com/jmwhit/docdriver/internal/extract"
	"github.com/jmwhit/docdriver/internal/fallback"
)

func newSyncCmd() *cobra.Command {
	var manifest string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the manifest's documents to local files",
		Long: `Walks the manifest's document references in order, extracts each
document's content from the rendered workspace (falling back to the
structured export endpoint when the render yields nothing usable), and
writes one file per document. Already-synchronized documents are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd.Context(), manifest)
		},
	}
	cmd.Flags().StringVar(&manifest, "manifest", "", "manifest file (overrides sync.manifest)")
	return cmd
}

func runSync(ctx context.Context, manifestFlag string) error {
	rt, err := buildRuntime(cfgFile)
	if err != nil {
		return err
	}
	defer rt.close(ctx)
	cfg := rt.cfg

	manifest := manifestFlag
	if manifest == "" {
		manifest = cfg.Sync.Manifest
	}
	if manifest == "" {
		return fmt.Errorf("no manifest: pass --manifest or set sync.manifest")
	}

	items, err := batch.LoadManifest(manifest, cfg.Remote.BaseURL)
	if err != nil {
		return err
	}

	artifacts, err := artifact.New(cfg.Sync.OutputDir, rt.logger.Named("artifacts"))
	if err != nil {
		return fmt.Errorf("artifact store init failed: %w", err)
	}
	store := checkpoint.New(cfg.Sync.Checkpoint, artifacts, rt.logger.Named("checkpoint"))
	if _, err := store.Load(); err != nil {
		return fmt.Errorf("checkpoint load failed: %w", err)
	}

	strategies := []extract.Strategy{extract.NewRendered(cfg.Remote.ContentSelectors)}
	if cfg.Fallback.Enabled {
		client, err := fallback.New(fallback.Config{
			BaseURL:    cfg.Remote.BaseURL,
			ExportPath: cfg.Fallback.ExportPath,
			UserAgent:  cfg.Remote.UserAgent,
			Timeout:    cfg.Fallback.Timeout(),
		}, rt.logger.Named("fallback"))
		if err != nil {
			return fmt.Errorf("fallback client init failed: %w", err)
		}
		strategies = append(strategies, extract.NewStructured(client))
	}
	chain := extract.NewChain(rt.logger.Named("extract"), cfg.Sync.MinContentChars, strategies...)

	pipeline := batch.NewPipeline(store, artifacts, chain, rt.hasher, rt.clock, rt.logger.Named("pipeline"))
	driver := batch.NewDriver(rt.runID, rt.manager, pipeline, rt.emitter, nil, rt.clock, rt.logger.Named("driver"))

	return rt.runBatch(ctx, driver, items)
}
