package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/michaelwdorrill/Trade-Scraper/internal/config"
	"github.com/michaelwdorrill/Trade-Scraper/internal/extract"
	robotsclient "github.com/michaelwdorrill/Trade-Scraper/internal/robots"
	"github.com/michaelwdorrill/Trade-Scraper/pkg/types"
)

func tradePage(playerName string, capHit string, nextAnchor string) string {
	return fmt.Sprintf(`<html><body>
<div class="trade-card">
  <p>The Bruins acquired %s from the Devils for a 3rd round pick</p>
  <div class="flex items-start mb-1 border rounded-lg">
    <a class="pp_link" href="/p/x">%s</a>
    <div>Cap Hit</div><div>%s</div>
  </div>
</div>
%s
</body></html>`, playerName, playerName, capHit, nextAnchor)
}

// fakeFetcher serves canned pages keyed by the page query parameter and can
// simulate transient failures.
type fakeFetcher struct {
	pages        map[string]string
	failuresLeft map[string]int
	calls        int
}

func (f *fakeFetcher) Fetch(_ context.Context, target *url.URL) (*types.Page, error) {
	f.calls++
	key := target.Query().Get("page")
	if f.failuresLeft[key] > 0 {
		f.failuresLeft[key]--
		return nil, errors.New("simulated fetch failure")
	}
	body, ok := f.pages[key]
	if !ok {
		return nil, errors.New("simulated 404")
	}
	return &types.Page{URL: target, Body: []byte(body), StatusCode: 200, FetchedAt: time.Now()}, nil
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Fetch.BackoffInitial = config.DurationFrom(time.Millisecond)
	cfg.Politeness.PageDelay = config.DurationFrom(0)
	cfg.Robots.Respect = false
	return cfg
}

func testEngine(t *testing.T, cfg config.Config, f *fakeFetcher) *Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	base, err := url.Parse(cfg.Source.BaseURL)
	if err != nil {
		t.Fatal(err)
	}
	library := extract.DefaultLibrary()
	return &Engine{
		cfg:       cfg,
		fetcher:   f,
		locator:   extract.NewLocator(library, logger),
		extractor: extract.NewExtractor(library, base, logger),
		robots:    robotsclient.NewAgent(cfg.Robots, nil),
		pacer:     NewPacer(0, RateLimiterSettings{}),
		logger:    logger,
	}
}

func TestRunFollowsPaginationAndAccumulates(t *testing.T) {
	cfg := testConfig()
	cfg.Source.MaxPage = 1
	f := &fakeFetcher{pages: map[string]string{
		"0": tradePage("Pavel Zacha", "$4,750,000", `<a href="/trades?page=1">2</a>`),
		"1": tradePage("Erik Haula", "$3,150,000", ""),
	}}

	records, err := testEngine(t, cfg, f).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].HighestCapPlayerName == nil || *records[0].HighestCapPlayerName != "Pavel Zacha" {
		t.Errorf("page order lost: first record %+v", records[0])
	}
	if records[1].HighestCapHit == nil || *records[1].HighestCapHit != 3150000 {
		t.Errorf("second record cap hit = %v", records[1].HighestCapHit)
	}
}

func TestRunHonorsPageLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Source.PageLimit = 1
	f := &fakeFetcher{pages: map[string]string{
		"0": tradePage("Pavel Zacha", "$4,750,000", `<a href="/trades?page=1">2</a>`),
		"1": tradePage("Erik Haula", "$3,150,000", ""),
	}}

	records, err := testEngine(t, cfg, f).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("got %d records, want 1 (page limit)", len(records))
	}
	if f.calls != 1 {
		t.Errorf("fetcher called %d times, want 1", f.calls)
	}
}

func TestRunRetriesTransientFailures(t *testing.T) {
	cfg := testConfig()
	cfg.Source.PageLimit = 1
	f := &fakeFetcher{
		pages:        map[string]string{"0": tradePage("Pavel Zacha", "$4,750,000", "")},
		failuresLeft: map[string]int{"0": 2},
	}

	records, err := testEngine(t, cfg, f).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("got %d records, want 1", len(records))
	}
	if f.calls != 3 {
		t.Errorf("fetcher called %d times, want 3 (2 failures + success)", f.calls)
	}
}

func TestRunFirstPageExhaustionIsError(t *testing.T) {
	cfg := testConfig()
	f := &fakeFetcher{
		pages:        map[string]string{"0": tradePage("Pavel Zacha", "$4,750,000", "")},
		failuresLeft: map[string]int{"0": 99},
	}

	records, err := testEngine(t, cfg, f).Run(context.Background())
	if err == nil {
		t.Fatal("expected error when the first page never loads")
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
	if f.calls != cfg.Fetch.MaxAttempts {
		t.Errorf("fetcher called %d times, want %d", f.calls, cfg.Fetch.MaxAttempts)
	}
}

func TestRunLaterPageExhaustionDegrades(t *testing.T) {
	cfg := testConfig()
	cfg.Source.MaxPage = 1
	f := &fakeFetcher{
		pages:        map[string]string{"0": tradePage("Pavel Zacha", "$4,750,000", `<a href="/trades?page=1">2</a>`)},
		failuresLeft: map[string]int{"1": 99},
	}

	records, err := testEngine(t, cfg, f).Run(context.Background())
	if err != nil {
		t.Fatalf("later-page failure must not surface: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("got %d records, want 1 from the healthy page", len(records))
	}
	if f.calls != 1+cfg.Fetch.MaxAttempts {
		t.Errorf("fetcher called %d times, want healthy page + %d retries", f.calls, cfg.Fetch.MaxAttempts)
	}
}

func TestRunSkipsDeadMiddlePage(t *testing.T) {
	// An exhausted later page counts as empty; the crawl still walks the
	// remaining page range.
	cfg := testConfig()
	cfg.Source.MaxPage = 2
	f := &fakeFetcher{
		pages: map[string]string{
			"0": tradePage("Pavel Zacha", "$4,750,000", ""),
			"2": tradePage("Jake Walman", "$3,400,000", ""),
		},
		failuresLeft: map[string]int{"1": 99},
	}

	records, err := testEngine(t, cfg, f).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want 2 around the dead page", len(records))
	}
}

func TestRunEmptyPageYieldsZeroTrades(t *testing.T) {
	cfg := testConfig()
	cfg.Source.PageLimit = 1
	f := &fakeFetcher{pages: map[string]string{"0": "<html><body><p>maintenance</p></body></html>"}}

	records, err := testEngine(t, cfg, f).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}

func TestRunMaxPageBoundWithoutLimit(t *testing.T) {
	// No page limit and no pagination anchors: the crawl walks the known
	// page range and stops at the configured maximum index.
	cfg := testConfig()
	cfg.Source.MaxPage = 2
	f := &fakeFetcher{pages: map[string]string{
		"0": tradePage("Pavel Zacha", "$4,750,000", ""),
		"1": tradePage("Erik Haula", "$3,150,000", ""),
		"2": tradePage("Jake Walman", "$3,400,000", ""),
	}}

	records, err := testEngine(t, cfg, f).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("got %d records, want 3", len(records))
	}
	if f.calls != 3 {
		t.Errorf("fetcher called %d times, want 3", f.calls)
	}
}

func TestPacerDelaysBetweenCalls(t *testing.T) {
	p := NewPacer(20*time.Millisecond, RateLimiterSettings{})
	ctx := context.Background()

	if err := p.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := p.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("second wait returned after %s, want >= ~20ms", elapsed)
	}
}

func TestPacerCancelled(t *testing.T) {
	p := NewPacer(time.Hour, RateLimiterSettings{})
	if err := p.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
