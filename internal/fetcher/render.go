package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/michaelwdorrill/Trade-Scraper/pkg/types"
)

// RenderOptions configures the headless-browser fallback.
type RenderOptions struct {
	Timeout         time.Duration
	WaitForSelector string
	UserAgent       string
	MaxBodyBytes    int64
	DisableHeadless bool
}

// ChromedpRenderer fetches pages through headless Chrome so listings that
// only materialise trades via JavaScript still yield markup.
type ChromedpRenderer struct {
	opts   RenderOptions
	logger *slog.Logger
}

// NewChromedpRenderer constructs a renderer.
func NewChromedpRenderer(opts RenderOptions, logger *slog.Logger) *ChromedpRenderer {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 6 * 1024 * 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChromedpRenderer{opts: opts, logger: logger}
}

// Fetch navigates to the target URL and exports the final DOM outer HTML.
func (r *ChromedpRenderer) Fetch(parentCtx context.Context, target *url.URL) (*types.Page, error) {
	if target == nil {
		return nil, fmt.Errorf("render target is nil")
	}

	ctx, cancel := context.WithTimeout(parentCtx, r.opts.Timeout)
	defer cancel()

	execOpts := []chromedp.ExecAllocatorOption{
		chromedp.Flag("headless", !r.opts.DisableHeadless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	}
	if ua := strings.TrimSpace(r.opts.UserAgent); ua != "" {
		execOpts = append(execOpts, chromedp.UserAgent(ua))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execOpts...)
	defer allocCancel()

	chromeCtx, chromeCancel := chromedp.NewContext(allocCtx)
	defer chromeCancel()

	actions := []chromedp.Action{chromedp.Navigate(target.String())}
	if sel := strings.TrimSpace(r.opts.WaitForSelector); sel != "" {
		actions = append(actions,
			chromedp.WaitReady(sel, chromedp.ByQuery),
			chromedp.Sleep(250*time.Millisecond),
		)
	} else {
		actions = append(actions, chromedp.Sleep(1500*time.Millisecond))
	}

	start := time.Now()
	var html, finalRaw string
	actions = append(actions,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&finalRaw),
	)

	if err := chromedp.Run(chromeCtx, actions...); err != nil {
		return nil, fmt.Errorf("chromedp run: %w", err)
	}

	if int64(len(html)) > r.opts.MaxBodyBytes {
		html = html[:r.opts.MaxBodyBytes]
	}

	finalURL := target
	if finalRaw != "" {
		if u, err := url.Parse(finalRaw); err == nil {
			finalURL = u
		}
	}

	latency := time.Since(start)
	r.logger.Debug("rendered page",
		"url", target.String(),
		"latency_ms", latency.Milliseconds(),
		"html_bytes", len(html),
	)

	return &types.Page{
		URL:             target,
		FinalURL:        finalURL,
		Body:            []byte(html),
		ContentType:     "text/html; charset=utf-8",
		StatusCode:      200,
		FetchedAt:       time.Now(),
		Rendered:        true,
		ResponseLatency: latency,
	}, nil
}

// Composite prefers the renderer when one is configured and falls back to
// plain HTTP on renderer errors.
type Composite struct {
	plain    Fetcher
	renderer Fetcher
	logger   *slog.Logger
}

// NewComposite builds a composite fetcher. renderer may be nil.
func NewComposite(plain, renderer Fetcher, logger *slog.Logger) *Composite {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composite{plain: plain, renderer: renderer, logger: logger}
}

// Fetch delegates to the renderer when present, then to plain HTTP.
func (c *Composite) Fetch(ctx context.Context, target *url.URL) (*types.Page, error) {
	if c.renderer != nil {
		page, err := c.renderer.Fetch(ctx, target)
		if err == nil {
			return page, nil
		}
		c.logger.Warn("renderer failed, falling back to HTTP fetch",
			"url", target.String(), "error", err)
	}
	return c.plain.Fetch(ctx, target)
}
