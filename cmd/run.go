package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jmwhit/docdriver/internal/batch"
	"github.com/jmwhit/docdriver/internal/clock/system"
	"github.com/jmwhit/docdriver/internal/config"
	"github.com/jmwhit/docdriver/internal/debug"
	"github.com/jmwhit/docdriver/internal/hash/sha256"
	"github.com/jmwhit/docdriver/internal/id/uuid"
	"github.com/jmwhit/docdriver/internal/logging"
	"github.com/jmwhit/docdriver/internal/progress"
	"github.com/jmwhit/docdriver/internal/progress/sinks"
	"github.com/jmwhit/docdriver/internal/remote"
	"github.com/jmwhit/docdriver/internal/session"
)

// runtime holds the shared infrastructure both workflows build on: config,
// logging, progress fanout, the browser process, and the session manager.
type runtime struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	emitter  *progress.Broadcaster
	browser  *remote.Browser
	manager  *session.Manager
	clock    batch.Clock
	hasher   batch.Hasher
	runID    string
}

func buildRuntime(cfgPath string) (*runtime, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	registry := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		logger.Sync() //nolint:errcheck
		return nil, fmt.Errorf("metrics init failed: %w", err)
	}
	emitter := progress.NewBroadcaster(
		logger.Named("progress"),
		sinks.NewConsoleSink(),
		sinks.NewLogSink(logger.Named("progress_log")),
		promSink,
	)

	browser, err := remote.NewBrowser(remote.Config{
		BaseURL:           cfg.Remote.BaseURL,
		UserDataDir:       cfg.Remote.UserDataDir,
		UserAgent:         cfg.Remote.UserAgent,
		Headless:          cfg.Remote.Headless,
		LoginPattern:      cfg.Remote.LoginPattern,
		NavTimeout:        cfg.Remote.NavTimeout(),
		StabilizeTimeout:  cfg.Remote.StabilizeTimeout(),
		GenerationTimeout: cfg.Remote.GenerationTimeout(),
		Selectors: remote.Selectors{
			Prompt:        cfg.Remote.PromptSelector,
			Submit:        cfg.Remote.SubmitSelector,
			Busy:          cfg.Remote.BusySelector,
			Response:      cfg.Remote.ResponseSelector,
			SourcesToggle: cfg.Remote.SourcesToggle,
			SourceEntry:   cfg.Remote.SourceEntry,
		},
	}, logger.Named("remote"))
	if err != nil {
		logger.Sync() //nolint:errcheck
		return nil, fmt.Errorf("browser init failed: %w", err)
	}

	clock := system.New()
	dialer := session.DialerFunc(func(ctx context.Context) (batch.Session, error) {
		return browser.Open(ctx)
	})
	manager, err := session.NewManager(
		dialer,
		cfg.Session.Quota,
		cfg.Remote.LoginPattern,
		emitter,
		clock,
		logger.Named("session"),
	)
	if err != nil {
		browser.Close(context.Background()) //nolint:errcheck
		logger.Sync()                       //nolint:errcheck
		return nil, fmt.Errorf("session manager init failed: %w", err)
	}

	runID, err := uuid.New().NewID()
	if err != nil {
		browser.Close(context.Background()) //nolint:errcheck
		logger.Sync()                       //nolint:errcheck
		return nil, fmt.Errorf("run id init failed: %w", err)
	}

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		emitter:  emitter,
		browser:  browser,
		manager:  manager,
		clock:    clock,
		hasher:   sha256.New(),
		runID:    runID,
	}, nil
}

func (rt *runtime) close(ctx context.Context) {
	rt.emitter.Close(ctx)
	if err := rt.browser.Close(ctx); err != nil {
		rt.logger.Warn("browser close failed", zap.Error(err))
	}
	rt.logger.Sync() //nolint:errcheck
}

// runBatch executes the driver, serving the debug listener alongside when
// enabled, and translates a fatal session expiry into operator guidance.
func (rt *runtime) runBatch(ctx context.Context, driver *batch.Driver, items []batch.Item) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if rt.cfg.Debug.Enabled {
		srv := debug.New(rt.cfg.Debug.Port, rt.registry, rt.logger.Named("debug"))
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	var tally batch.Tally
	g.Go(func() error {
		defer stop()
		var err error
		tally, err = driver.Run(gctx, items)
		return err
	})

	err := g.Wait()
	rt.logger.Info("run finished",
		zap.String("run_id", rt.runID),
		zap.Int("persisted", tally.Persisted),
		zap.Int("skipped", tally.Skipped),
		zap.Int("failed", tally.Failed),
		zap.Int("sessions", rt.manager.SessionsOpened()),
	)

	if errors.Is(err, batch.ErrSessionExpired) {
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "The remote application demanded authentication and the run cannot continue.")
		fmt.Fprintln(os.Stderr, "Log in once with a visible browser to refresh the profile, then rerun:")
		fmt.Fprintln(os.Stderr, "  DOCDRIVER_REMOTE_HEADLESS=false docdriver <command>")
		fmt.Fprintln(os.Stderr, "Completed items are checkpointed and will be skipped on the rerun.")
	}
	return err
}
