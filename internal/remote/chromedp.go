// Package remote implements the driving-session capabilities on top of
// headless Chrome via chromedp. Credentials persist in the browser
// profile; this package never touches the authentication flow itself.
package remote

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/jmwhit/docdriver/internal/batch"
)

// Selectors locate the conversational surface's controls. They are
// configuration because the remote markup is not ours and drifts.
type Selectors struct {
	Prompt        string
	Submit        string
	Busy          string
	Response      string
	SourcesToggle string
	SourceEntry   string
}

// Config controls browser and session behavior.
type Config struct {
	BaseURL           string
	UserDataDir       string
	UserAgent         string
	Headless          bool
	LoginPattern      string
	NavTimeout        time.Duration
	StabilizeTimeout  time.Duration
	GenerationTimeout time.Duration
	PollInterval      time.Duration
	Selectors         Selectors
}

const (
	defaultNavTimeout        = 45 * time.Second
	defaultStabilizeTimeout  = 15 * time.Second
	defaultGenerationTimeout = 3 * time.Minute
	defaultPollInterval      = 500 * time.Millisecond
	readTimeout              = 10 * time.Second
)

func (c *Config) normalize() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = defaultNavTimeout
	}
	if c.StabilizeTimeout <= 0 {
		c.StabilizeTimeout = defaultStabilizeTimeout
	}
	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = defaultGenerationTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
}

// Browser owns the chromedp allocator and the shared browser process.
// Sessions are tabs created from it.
type Browser struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	cfg             Config
	loginRe         *regexp.Regexp
	logger          *zap.Logger
}

// NewBrowser launches the browser process using the persisted profile.
func NewBrowser(cfg Config, logger *zap.Logger) (*Browser, error) {
	cfg.normalize()
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	loginRe, err := regexp.Compile(cfg.LoginPattern)
	if err != nil {
		return nil, fmt.Errorf("compile login pattern: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
	)
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Browser{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		cfg:             cfg,
		loginRe:         loginRe,
		logger:          logger,
	}, nil
}

// Close tears down the browser process and allocator.
func (b *Browser) Close(context.Context) error {
	if b == nil {
		return nil
	}
	b.browserCancel()
	b.allocatorCancel()
	return nil
}

// Open creates a fresh tab and lands it on the workspace. The caller is
// responsible for checking the landing location against the login pattern;
// Open itself does not judge authentication.
func (b *Browser) Open(ctx context.Context) (*Session, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	s := &Session{
		tabCtx:  tabCtx,
		cancel:  cancelTab,
		cfg:     b.cfg,
		loginRe: b.loginRe,
		logger:  b.logger,
	}
	if err := s.navigate(ctx, b.cfg.BaseURL); err != nil {
		cancelTab()
		return nil, err
	}
	return s, nil
}

// Session is one tab bound to the remote workspace. It implements
// batch.Session and batch.Conversationalist.
type Session struct {
	tabCtx  context.Context
	cancel  context.CancelFunc
	cfg     Config
	loginRe *regexp.Regexp
	logger  *zap.Logger
}

// Navigate drives the tab to target, waits for a stable surface, and
// reports ErrSessionInvalid when the app bounced us to authentication.
func (s *Session) Navigate(ctx context.Context, target string) error {
	if err := s.navigate(ctx, target); err != nil {
		return err
	}
	loc, err := s.Location(ctx)
	if err != nil {
		return err
	}
	if s.loginRe.MatchString(loc) {
		return fmt.Errorf("redirected to %s: %w", loc, batch.ErrSessionInvalid)
	}
	return nil
}

func (s *Session) navigate(ctx context.Context, target string) error {
	tasks := chromedp.Tasks{
		network.Enable(),
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if s.cfg.UserAgent != "" {
		tasks = append(chromedp.Tasks{emulation.SetUserAgentOverride(s.cfg.UserAgent)}, tasks...)
	}
	err := s.run(ctx, s.cfg.NavTimeout, tasks)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("navigate %s: %w", target, batch.ErrNavigationTimeout)
		}
		return fmt.Errorf("navigate %s: %w", target, err)
	}
	return s.stabilize(ctx)
}

// stabilize polls the document ready state instead of sleeping a fixed
// interval; the bounded wait is a best-effort ceiling, not a guarantee.
func (s *Session) stabilize(ctx context.Context) error {
	deadline := time.Now().Add(s.cfg.StabilizeTimeout)
	for {
		var state string
		if err := s.run(ctx, readTimeout, chromedp.Evaluate(`document.readyState`, &state)); err != nil {
			return fmt.Errorf("read document state: %w", err)
		}
		if state == "complete" {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("document never stabilized: %w", batch.ErrNavigationTimeout)
		}
		if err := s.pause(ctx); err != nil {
			return err
		}
	}
}

// Location reports the tab's current URL.
func (s *Session) Location(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, readTimeout, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

// ReadFirst returns the first non-empty text among the candidate
// selectors, preserving their priority order. Missing selectors are not
// errors; they simply yield nothing.
func (s *Session) ReadFirst(ctx context.Context, selectors []string) (string, error) {
	for _, sel := range selectors {
		var text string
		script := fmt.Sprintf(
			`(() => { const el = document.querySelector(%s); return el ? el.innerText : ""; })()`,
			strconv.Quote(sel),
		)
		if err := s.run(ctx, readTimeout, chromedp.Evaluate(script, &text)); err != nil {
			return "", fmt.Errorf("query %q: %w", sel, err)
		}
		if strings.TrimSpace(text) != "" {
			return text, nil
		}
	}
	return "", nil
}

// Ask submits prompt text and blocks until the generation indicator
// disappears, bounded by the configured timeout. Indicator absence from
// the start means "already done". On timeout we extract whatever is
// rendered; partial output beats stalling the whole batch.
func (s *Session) Ask(ctx context.Context, prompt string) (string, error) {
	sel := s.cfg.Selectors
	err := s.run(ctx, s.cfg.NavTimeout,
		chromedp.WaitVisible(sel.Prompt, chromedp.ByQuery),
		chromedp.Click(sel.Prompt, chromedp.ByQuery),
		chromedp.SendKeys(sel.Prompt, prompt, chromedp.ByQuery),
		chromedp.Click(sel.Submit, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("submit prompt: %w", err)
	}

	s.awaitGeneration(ctx)

	var text string
	script := fmt.Sprintf(
		`(() => { const els = document.querySelectorAll(%s); return els.length ? els[els.length - 1].innerText : ""; })()`,
		strconv.Quote(sel.Response),
	)
	if err := s.run(ctx, readTimeout, chromedp.Evaluate(script, &text)); err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return text, nil
}

func (s *Session) awaitGeneration(ctx context.Context) {
	busyScript := fmt.Sprintf(
		`document.querySelector(%s) !== null`,
		strconv.Quote(s.cfg.Selectors.Busy),
	)
	deadline := time.Now().Add(s.cfg.GenerationTimeout)
	for time.Now().Before(deadline) {
		var busy bool
		if err := s.run(ctx, readTimeout, chromedp.Evaluate(busyScript, &busy)); err != nil {
			s.logger.Debug("busy probe failed", zap.Error(err))
			return
		}
		if !busy {
			return
		}
		if err := s.pause(ctx); err != nil {
			return
		}
	}
	s.logger.Warn("generation indicator still present after timeout, extracting current render")
}

// SourceEntries opens the sources disclosure, when present, and returns
// the raw text of each disclosed entry.
func (s *Session) SourceEntries(ctx context.Context) ([]string, error) {
	sel := s.cfg.Selectors

	var present bool
	presentScript := fmt.Sprintf(`document.querySelector(%s) !== null`, strconv.Quote(sel.SourcesToggle))
	if err := s.run(ctx, readTimeout, chromedp.Evaluate(presentScript, &present)); err != nil {
		return nil, fmt.Errorf("probe sources toggle: %w", err)
	}
	if !present {
		return nil, nil
	}

	if err := s.run(ctx, readTimeout, chromedp.Click(sel.SourcesToggle, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("open sources disclosure: %w", err)
	}

	var entries []string
	entriesScript := fmt.Sprintf(
		`Array.from(document.querySelectorAll(%s)).map(el => el.innerText)`,
		strconv.Quote(sel.SourceEntry),
	)
	if err := s.run(ctx, readTimeout, chromedp.Evaluate(entriesScript, &entries)); err != nil {
		return nil, fmt.Errorf("read source entries: %w", err)
	}
	return entries, nil
}

// CaptureHTML snapshots the full DOM for diagnostics.
func (s *Session) CaptureHTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, readTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("capture html: %w", err)
	}
	return html, nil
}

// Close releases the tab.
func (s *Session) Close(context.Context) error {
	s.cancel()
	return nil
}

// run executes chromedp actions on the tab with a bounded deadline,
// honoring cancellation from the caller's context as well.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	taskCtx, cancelTask := context.WithTimeout(s.tabCtx, timeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	return chromedp.Run(taskCtx, actions...)
}

func (s *Session) pause(ctx context.Context) error {
	timer := time.NewTimer(s.cfg.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
