package extract

import (
	"log/slog"

	"github.com/PuerkitoBio/goquery"
)

// Locator finds trade and player containers in a parsed listing page.
type Locator struct {
	library *Library
	logger  *slog.Logger
}

// NewLocator builds a locator over the given rule library. A nil library
// uses the defaults.
func NewLocator(library *Library, logger *slog.Logger) *Locator {
	if library == nil {
		library = DefaultLibrary()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Locator{library: library, logger: logger}
}

// Trades returns the ordered trade containers found on the page. The
// container cascade stops at the first strategy that yields anything;
// fallback strategies can surface the same node via several matches, so the
// result is deduplicated by node identity.
func (l *Locator) Trades(doc *goquery.Document) []*goquery.Selection {
	containers, rule := firstContainers(l.library.TradeContainers, doc.Selection)
	if len(containers) == 0 {
		l.logger.Debug("no trade containers found")
		return nil
	}
	containers = dedupeContainers(containers)
	l.logger.Debug("located trade containers", "rule", rule, "count", len(containers))
	return containers
}

// Players returns the ordered player containers within one trade container,
// with draft picks, retained-salary entries, and contract-less players
// filtered out.
func (l *Locator) Players(trade *goquery.Selection) []*goquery.Selection {
	containers, rule := firstContainers(l.library.PlayerContainers, trade)
	if len(containers) == 0 {
		return nil
	}
	containers = dedupeContainers(containers)

	kept := containers[:0]
	for _, c := range containers {
		if l.excluded(c) {
			continue
		}
		kept = append(kept, c)
	}
	l.logger.Debug("located player containers", "rule", rule, "count", len(kept))
	return kept
}

func (l *Locator) excluded(container *goquery.Selection) bool {
	text := nodeText(container)
	for _, marker := range l.library.PlayerExclusions {
		if marker.MatchString(text) {
			return true
		}
	}
	return false
}
