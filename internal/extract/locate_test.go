package extract

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseDoc(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

// listingPage mirrors the live listing: per trade, an uppercase header div
// carrying the date followed by a bordered content container with summary
// link and player cards.
const listingPage = `<html><body>
<div class="flex items-end px-1.5 uppercase tracking-widest text-sm">
  <div class="pl-2 text-pp-copy_dk">Trade &#10148; Jan 8 2026</div>
</div>
<div class="border rounded-lg mb-8 border-pp-border">
  <div class="pp_content">
    <a href="/trade/8841">The Bruins acquired Victor Soderstrom from the Utah Mammoth for a 2026 4th round pick</a>
  </div>
  <div class="flex items-start mb-1 border border-pp-border rounded-lg">
    <a class="pp_link" href="/player/victor-soderstrom">Victor Soderstrom</a>
    <span>age</span><span>28</span>
    <span>pos</span><span>C</span>
    <div>Yr 2/4 Exp 2028</div>
    <div>Cap Hit</div><div>$6,250,000</div>
  </div>
</div>
<div class="flex items-end px-1.5 uppercase tracking-widest text-sm">
  <div class="pl-2 text-pp-copy_dk">Trade &#10148; Jan 5 2026</div>
</div>
<div class="border rounded-lg mb-8 border-pp-border">
  <div class="pp_content">
    <a href="/trade/8840">The Sharks acquired a 2027 2nd round pick from the Panthers for a 2026 3rd round pick</a>
  </div>
  <div class="flex items-start mb-1 border border-pp-border rounded-lg">
    <div>Draft Pick</div>
    <div>2027 2nd Round</div>
  </div>
  <div class="flex items-start mb-1 border border-pp-border rounded-lg">
    <div>Draft Pick</div>
    <div>2026 3rd Round</div>
  </div>
</div>
</body></html>`

func TestLocatorTradesPrimaryCascade(t *testing.T) {
	doc := parseDoc(t, listingPage)
	locator := NewLocator(nil, testLogger())

	trades := locator.Trades(doc)
	if len(trades) != 2 {
		t.Fatalf("located %d trades, want 2", len(trades))
	}
}

func TestLocatorTradesTextFallback(t *testing.T) {
	// No trade class tokens anywhere; only the "acquired ... from ... for"
	// text shape identifies the trades. Both paragraphs of the first story
	// promote to the same block ancestor and must be deduplicated.
	markup := `<html><body>
<section>
  <div class="story">
    <p>The Bruins acquired Victor Soderstrom from the Utah Mammoth for a 4th round pick</p>
    <p>The Bruins acquired cap space from the Utah Mammoth for future considerations</p>
  </div>
  <div class="story">
    <p>The Flames acquired Rasmus Andersson from the Canucks for a prospect</p>
  </div>
</section>
</body></html>`
	doc := parseDoc(t, markup)
	locator := NewLocator(nil, testLogger())

	trades := locator.Trades(doc)
	if len(trades) != 2 {
		t.Fatalf("located %d trades, want 2 deduplicated containers", len(trades))
	}
}

func TestLocatorTradesDateFallback(t *testing.T) {
	markup := `<html><body>
<div class="row"><span>OCT 1 2025</span><span>Something happened</span></div>
<div class="row"><span>SEP 28 2025</span><span>Something else</span></div>
</body></html>`
	doc := parseDoc(t, markup)
	locator := NewLocator(nil, testLogger())

	trades := locator.Trades(doc)
	if len(trades) != 2 {
		t.Fatalf("located %d trades, want 2", len(trades))
	}
}

func TestLocatorTradesEmptyDocument(t *testing.T) {
	doc := parseDoc(t, "<html><body><p>nothing to see</p></body></html>")
	locator := NewLocator(nil, testLogger())
	if trades := locator.Trades(doc); len(trades) != 0 {
		t.Fatalf("located %d trades in empty document, want 0", len(trades))
	}
}

func TestLocatorPlayersFiltersExclusions(t *testing.T) {
	doc := parseDoc(t, listingPage)
	locator := NewLocator(nil, testLogger())

	trades := locator.Trades(doc)
	if len(trades) != 2 {
		t.Fatalf("located %d trades, want 2", len(trades))
	}

	if players := locator.Players(trades[0]); len(players) != 1 {
		t.Errorf("trade A: %d player containers, want 1", len(players))
	}
	// Trade B holds only draft pick cards, all excluded.
	if players := locator.Players(trades[1]); len(players) != 0 {
		t.Errorf("trade B: %d player containers, want 0", len(players))
	}
}

func TestLocatorPlayersExclusionMarkers(t *testing.T) {
	markup := `<html><body><div class="trade-card">
<div class="flex items-start mb-1 border rounded-lg"><a class="pp_link" href="/p/1">Keeper Player</a><div>Cap Hit</div><div>$900,000</div></div>
<div class="flex items-start mb-1 border rounded-lg"><div>Salary Retained 50%</div><div>$450,000</div></div>
<div class="flex items-start mb-1 border rounded-lg"><a class="pp_link" href="/p/2">Unsigned Prospect</a><div>No Current Contract</div></div>
</div></body></html>`
	doc := parseDoc(t, markup)
	locator := NewLocator(nil, testLogger())

	trades := locator.Trades(doc)
	if len(trades) != 1 {
		t.Fatalf("located %d trades, want 1", len(trades))
	}
	players := locator.Players(trades[0])
	if len(players) != 1 {
		t.Fatalf("located %d player containers, want 1 after exclusions", len(players))
	}
	if text := nodeText(players[0]); !strings.Contains(text, "Keeper Player") {
		t.Errorf("kept wrong container: %q", text)
	}
}
