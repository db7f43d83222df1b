package types

import (
	"net/http"
	"net/url"
	"time"
)

// Position codes recognised for skaters and goalies.
var ValidPositions = map[string]struct{}{
	"C":  {},
	"LW": {},
	"RW": {},
	"D":  {},
	"G":  {},
	"F":  {},
	"W":  {},
}

// PlayerInfo describes one player involved in a trade. Optional fields are
// nil when the page did not yield a parseable value.
type PlayerInfo struct {
	Name       string   `json:"name"`
	Age        *int     `json:"age,omitempty"`
	Position   *string  `json:"position,omitempty"`
	CapHit     *float64 `json:"cap_hit,omitempty"`
	YearsLeft  *int     `json:"years_left,omitempty"`
	TotalYears *int     `json:"total_years,omitempty"`
	ExpiryYear *int     `json:"expiry_year,omitempty"`
}

// Signed reports whether the player carries a positive cap hit. Draft picks,
// retained-salary entries, and unsigned prospects are not signed players.
func (p PlayerInfo) Signed() bool {
	return p.CapHit != nil && *p.CapHit > 0
}

// TradeRecord is one normalized trade annotated with the highest-cap-hit
// player among its signed players.
type TradeRecord struct {
	TradeDate    string `json:"trade_date"`
	TradeSummary string `json:"trade_summary"`
	TradeURL     string `json:"trade_url"`

	HighestCapHit              *float64 `json:"highest_cap_hit,omitempty"`
	HighestCapPlayerName       *string  `json:"highest_cap_player_name,omitempty"`
	HighestCapPlayerAge        *int     `json:"highest_cap_player_age,omitempty"`
	HighestCapPlayerPosition   *string  `json:"highest_cap_player_position,omitempty"`
	HighestCapPlayerYearsLeft  *int     `json:"highest_cap_player_years_left,omitempty"`
	HighestCapPlayerTotalYears *int     `json:"highest_cap_player_total_years,omitempty"`

	HasSignedPlayers bool `json:"has_signed_players"`

	// AllPlayers retains the full signed-player list for diagnostic output.
	AllPlayers []PlayerInfo `json:"all_players"`
}

// Page represents a fetched listing page.
type Page struct {
	URL             *url.URL
	FinalURL        *url.URL
	Body            []byte
	ContentType     string
	StatusCode      int
	Headers         http.Header
	FetchedAt       time.Time
	Rendered        bool
	ResponseLatency time.Duration
}
