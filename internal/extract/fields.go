package extract

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/michaelwdorrill/Trade-Scraper/pkg/types"
)

// maxSummaryLen bounds summary capture so a permissive text rule cannot
// swallow half the page.
const maxSummaryLen = 500

const (
	minPlayerAge = 15
	maxPlayerAge = 50
)

// TradeFields holds the per-trade attributes before aggregation.
type TradeFields struct {
	Date    string
	Summary string
	URL     string
}

// Extractor applies the rule library to trade and player containers.
type Extractor struct {
	library *Library
	base    *url.URL
	logger  *slog.Logger
}

// NewExtractor builds an extractor. base is the site root used to resolve
// relative trade links; nil disables resolution.
func NewExtractor(library *Library, base *url.URL, logger *slog.Logger) *Extractor {
	if library == nil {
		library = DefaultLibrary()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{library: library, base: base, logger: logger}
}

// TradeFields extracts date, summary, and detail URL from one trade
// container. Missing fields come back empty; the URL falls back to pageURL.
func (e *Extractor) TradeFields(trade *goquery.Selection, pageURL string) TradeFields {
	fields := TradeFields{URL: pageURL}

	if raw, ok := firstText(e.library.TradeDate, trade); ok {
		if m := tradeDateRe.FindString(raw); m != "" {
			fields.Date = strings.ToUpper(collapseWhitespace(m))
		} else {
			fields.Date = collapseWhitespace(raw)
		}
	}

	if summary, ok := firstText(e.library.TradeSummary, trade); ok {
		summary = collapseWhitespace(summary)
		if len(summary) > maxSummaryLen {
			summary = summary[:maxSummaryLen]
		}
		fields.Summary = summary
	}

	if href, ok := firstText(e.library.TradeURL, trade); ok {
		if resolved := e.resolve(href); resolved != "" {
			fields.URL = resolved
		}
	}

	return fields
}

// Player extracts one player's attributes from a player container. The name
// is required; a container yielding no name is not a player and returns
// (zero, false). Optional fields that fail to parse stay nil.
func (e *Extractor) Player(container *goquery.Selection) (types.PlayerInfo, bool) {
	name, ok := firstText(e.library.PlayerName, container)
	if !ok {
		return types.PlayerInfo{}, false
	}
	player := types.PlayerInfo{Name: name}

	if raw, ok := firstText(e.library.PlayerAge, container); ok {
		if age := ParseAge(raw); age != nil && *age >= minPlayerAge && *age <= maxPlayerAge {
			player.Age = age
		}
	}
	if raw, ok := firstText(e.library.PlayerPos, container); ok {
		raw = strings.TrimSpace(raw)
		if len(raw) >= 3 && strings.EqualFold(raw[:3], "pos") {
			raw = raw[3:]
		}
		player.Position = ParsePosition(raw)
	}
	if raw, ok := firstText(e.library.ContractYears, container); ok {
		player.YearsLeft, player.TotalYears = ParseContractYears(raw)
	}
	if raw, ok := firstText(e.library.CapHit, container); ok {
		player.CapHit = ParseMoney(raw)
	}
	if player.CapHit == nil {
		// Cap hit may sit outside the labelled pair; scan the whole card.
		player.CapHit = ParseMoney(nodeText(container))
	}
	player.ExpiryYear = ParseExpiryYear(nodeText(container))

	return player, true
}

// SignedPlayers extracts every player container and keeps only signed
// players, preserving container order. Extraction misses are logged and
// skipped, never fatal.
func (e *Extractor) SignedPlayers(containers []*goquery.Selection) []types.PlayerInfo {
	var players []types.PlayerInfo
	for _, container := range containers {
		player, ok := e.Player(container)
		if !ok {
			e.logger.Debug("player container yielded no name, skipping")
			continue
		}
		if !player.Signed() {
			e.logger.Debug("player has no cap hit, skipping", "name", player.Name)
			continue
		}
		players = append(players, player)
	}
	return players
}

func (e *Extractor) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		e.logger.Debug("unparseable trade link", "href", href, "error", err)
		return ""
	}
	if e.base != nil {
		return e.base.ResolveReference(ref).String()
	}
	if ref.IsAbs() {
		return ref.String()
	}
	return ""
}
