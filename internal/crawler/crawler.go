// Package crawler drives the page-by-page scrape of the trade listing:
// fetch with retry and backoff, locate and extract trades, aggregate, and
// decide whether a further page exists.
package crawler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/michaelwdorrill/Trade-Scraper/internal/config"
	"github.com/michaelwdorrill/Trade-Scraper/internal/extract"
	"github.com/michaelwdorrill/Trade-Scraper/internal/fetcher"
	robotsclient "github.com/michaelwdorrill/Trade-Scraper/internal/robots"
	"github.com/michaelwdorrill/Trade-Scraper/pkg/types"
)

// Engine orchestrates one crawl of the trade listing. Pages are processed
// strictly one at a time; the only blocking operations are the fetch (with
// its retry backoff) and the inter-page politeness delay.
type Engine struct {
	cfg       config.Config
	fetcher   fetcher.Fetcher
	locator   *extract.Locator
	extractor *extract.Extractor
	robots    *robotsclient.Agent
	pacer     *Pacer
	logger    *slog.Logger
}

// crawlState is owned by one Run invocation and mutated once per page.
type crawlState struct {
	page    int
	records []types.TradeRecord
	done    bool
}

// NewEngine builds an engine from configuration, wiring the HTTP fetcher,
// the optional renderer, robots handling, and the extraction rules.
func NewEngine(cfg config.Config) (*Engine, error) {
	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	referer := ""
	if cfg.Fetch.SendReferer {
		if listing, err := cfg.ListingURL(0); err == nil {
			listing.RawQuery = ""
			referer = listing.String()
		}
	}

	httpFetcher, err := fetcher.NewHTTPFetcher(fetcher.Options{
		UserAgent:    cfg.Fetch.UserAgent,
		Headers:      cfg.Fetch.Headers,
		Referer:      referer,
		Timeout:      cfg.Fetch.Timeout.Duration,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		ProxyURL:     cfg.Fetch.ProxyURL,
	})
	if err != nil {
		return nil, fmt.Errorf("http fetcher: %w", err)
	}

	var pageFetcher fetcher.Fetcher = httpFetcher
	if cfg.Rendering.Enabled {
		switch strings.ToLower(cfg.Rendering.Engine) {
		case "chromedp", "chrome":
			renderer := fetcher.NewChromedpRenderer(fetcher.RenderOptions{
				Timeout:         cfg.Rendering.Timeout.Duration,
				WaitForSelector: cfg.Rendering.WaitForSelector,
				UserAgent:       cfg.Fetch.UserAgent,
				MaxBodyBytes:    cfg.Fetch.MaxBodyBytes,
				DisableHeadless: cfg.Rendering.DisableHeadless,
			}, logger)
			pageFetcher = fetcher.NewComposite(httpFetcher, renderer, logger)
		case "none":
		default:
			return nil, fmt.Errorf("unsupported rendering engine %q", cfg.Rendering.Engine)
		}
	}

	base, err := url.Parse(cfg.Source.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	library := extract.DefaultLibrary()
	return &Engine{
		cfg:       cfg,
		fetcher:   pageFetcher,
		locator:   extract.NewLocator(library, logger),
		extractor: extract.NewExtractor(library, base, logger),
		robots:    robotsclient.NewAgent(cfg.Robots, httpFetcher.Client()),
		pacer: NewPacer(cfg.Politeness.PageDelay.Duration, RateLimiterSettings{
			Requests: cfg.Politeness.RateLimit.Requests,
			Window:   cfg.Politeness.RateLimit.Window.Duration,
		}),
		logger:    logger,
	}, nil
}

// Run crawls listing pages starting at index 0 until the termination
// conditions of nextPage are met. A fetch failure that exhausts retries on
// the very first page is a hard error; on later pages it degrades to an
// empty page and the pagination decision runs as usual.
func (e *Engine) Run(ctx context.Context) ([]types.TradeRecord, error) {
	state := &crawlState{}

	for !state.done {
		pageURL, err := e.cfg.ListingURL(state.page)
		if err != nil {
			return state.records, err
		}

		if !e.robots.Allowed(ctx, pageURL) {
			e.logger.Warn("blocked by robots.txt, stopping", "url", pageURL.String())
			break
		}

		e.logger.Info("fetching page", "page", state.page, "url", pageURL.String())
		page, err := e.fetchWithRetry(ctx, pageURL)
		if err != nil && state.page == 0 {
			return state.records, fmt.Errorf("first page unavailable: %w", err)
		}

		var doc *goquery.Document
		if err != nil {
			// Treat the page as empty; the pagination decision below may
			// still advance past it.
			e.logger.Warn("page unavailable after retries, treating as empty",
				"page", state.page, "error", err)
		} else {
			e.saveDebugHTML(pageURL, page.Body)

			var records []types.TradeRecord
			records, doc = e.extractPage(page, pageURL.String())
			state.records = append(state.records, records...)
			e.logger.Info("page extracted",
				"page", state.page, "trades", len(records), "total", len(state.records))
		}

		if !e.nextPage(doc, state.page) {
			state.done = true
			continue
		}
		state.page++

		if err := e.pacer.Wait(ctx); err != nil {
			e.logger.Warn("pacing interrupted", "error", err)
			return state.records, err
		}
	}

	e.logSummary(state.records)
	return state.records, nil
}

// fetchWithRetry wraps the fetcher with bounded retries and exponential
// backoff, doubling the delay after each failed attempt.
func (e *Engine) fetchWithRetry(ctx context.Context, target *url.URL) (*types.Page, error) {
	attempts := e.cfg.Fetch.MaxAttempts
	backoff := e.cfg.Fetch.BackoffInitial.Duration
	if backoff <= 0 {
		backoff = 2 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		page, err := e.fetcher.Fetch(ctx, target)
		if err == nil {
			return page, nil
		}
		lastErr = err
		e.logger.Warn("fetch attempt failed",
			"url", target.String(), "attempt", attempt, "attempts", attempts, "error", err)

		if attempt == attempts {
			break
		}
		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("all %d fetch attempts failed: %w", attempts, lastErr)
}

// extractPage turns a fetched page into trade records. Any failure here is
// page-local: an unparseable document yields zero trades and a nil document,
// never an error.
func (e *Engine) extractPage(page *types.Page, pageURL string) (records []types.TradeRecord, doc *goquery.Document) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("page extraction panicked, treating page as empty",
				"url", pageURL, "panic", r)
			records = nil
		}
	}()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		e.logger.Warn("unparseable page, treating as empty", "url", pageURL, "error", err)
		return nil, nil
	}

	for _, trade := range e.locator.Trades(doc) {
		fields := e.extractor.TradeFields(trade, pageURL)
		players := e.extractor.SignedPlayers(e.locator.Players(trade))
		records = append(records, extract.Aggregate(fields, players))
	}
	return records, doc
}

// nextPage decides whether to advance. With a caller-supplied page limit the
// crawl follows the pagination signal up to that limit; without one it runs
// through the known maximum page index.
func (e *Engine) nextPage(doc *goquery.Document, currentPage int) bool {
	limit := e.cfg.Source.PageLimit
	if limit > 0 && currentPage+1 >= limit {
		e.logger.Info("page limit reached", "limit", limit)
		return false
	}

	if doc != nil && HasNextPage(doc, currentPage, e.cfg.Source.PageParam) {
		return true
	}
	if limit == 0 && currentPage < e.cfg.Source.MaxPage {
		return true
	}
	return false
}

var debugNameRe = regexp.MustCompile(`[^\w-]+`)

func (e *Engine) saveDebugHTML(target *url.URL, body []byte) {
	if !e.cfg.Debug.SaveHTML {
		return
	}
	if err := os.MkdirAll(e.cfg.Debug.Directory, 0o755); err != nil {
		e.logger.Warn("debug dir", "error", err)
		return
	}
	name := debugNameRe.ReplaceAllString(target.Path+"_"+target.RawQuery, "_")
	path := filepath.Join(e.cfg.Debug.Directory, name+".html")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		e.logger.Warn("debug write", "path", path, "error", err)
		return
	}
	e.logger.Debug("saved debug html", "path", path)
}

func (e *Engine) logSummary(records []types.TradeRecord) {
	signed := 0
	var maxCap, sumCap float64
	for _, r := range records {
		if !r.HasSignedPlayers {
			continue
		}
		signed++
		if r.HighestCapHit != nil {
			sumCap += *r.HighestCapHit
			if *r.HighestCapHit > maxCap {
				maxCap = *r.HighestCapHit
			}
		}
	}
	attrs := []any{
		"total_trades", len(records),
		"with_signed_players", signed,
		"picks_or_prospects_only", len(records) - signed,
	}
	if signed > 0 {
		attrs = append(attrs,
			"max_cap_hit", maxCap,
			"avg_highest_cap_hit", sumCap/float64(signed),
		)
	}
	e.logger.Info("crawl complete", attrs...)
}

func buildLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unsupported log level %q", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Structured {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler), nil
}
