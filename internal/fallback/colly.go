// Package fallback implements the structured-query capability: a single
// HTTP request/response exchange against the application's export
// endpoint, used when rendered extraction yields nothing usable.
package fallback

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Config controls the fallback client.
type Config struct {
	// BaseURL is the application root the export path is resolved under.
	BaseURL string
	// ExportPath is a printf template with one %s verb for the slug.
	ExportPath string
	UserAgent  string
	Timeout    time.Duration
}

// exportRecord is the structured payload the export endpoint returns.
type exportRecord struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Client issues structured-query exchanges via a Colly collector.
type Client struct {
	cfg           Config
	baseCollector *colly.Collector
	retry         *retryPolicy
	logger        *zap.Logger
}

// New builds a Client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if !strings.Contains(cfg.ExportPath, "%s") {
		return nil, fmt.Errorf("export path %q must contain a %%s slug placeholder", cfg.ExportPath)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())

	return &Client{
		cfg:           cfg,
		baseCollector: c,
		retry:         newRetryPolicy(),
		logger:        logger,
	}, nil
}

// Fetch performs the exchange for one document slug and returns its text
// content. Transient network errors are retried with jittered backoff.
func (c *Client) Fetch(ctx context.Context, slug string) (string, error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + fmt.Sprintf(c.cfg.ExportPath, slug)

	var lastErr error
	for attempt := 0; ; attempt++ {
		body, err := c.exchange(ctx, url)
		if err == nil {
			return parseExport(body)
		}
		lastErr = err
		if !c.retry.shouldRetry(err, attempt+1) {
			break
		}
		c.logger.Warn("structured query failed, retrying",
			zap.String("slug", slug),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		if err := sleep(ctx, c.retry.backoff(attempt)); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("structured query %s: %w", slug, lastErr)
}

func (c *Client) exchange(ctx context.Context, url string) ([]byte, error) {
	collector := c.baseCollector.Clone()
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(c.cfg.Timeout)

	var (
		body     []byte
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		if r.StatusCode != http.StatusOK {
			fetchErr = fmt.Errorf("export endpoint returned status %d", r.StatusCode)
			return
		}
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("structured query canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("visit export endpoint: %w", err)
		}
		if fetchErr != nil {
			return nil, fetchErr
		}
		return body, nil
	}
}

func parseExport(body []byte) (string, error) {
	var rec exportRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return "", fmt.Errorf("parse export payload: %w", err)
	}
	return rec.Content, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
