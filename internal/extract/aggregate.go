package extract

import (
	"github.com/michaelwdorrill/Trade-Scraper/pkg/types"
)

// Aggregate reduces a trade's signed-player list to one TradeRecord,
// annotated with the player carrying the maximum cap hit. Ties break in
// favour of the first player in container order, so identical input order
// always produces identical output. An empty list yields a record with
// HasSignedPlayers false and no highest_cap fields.
func Aggregate(fields TradeFields, players []types.PlayerInfo) types.TradeRecord {
	record := types.TradeRecord{
		TradeDate:    fields.Date,
		TradeSummary: fields.Summary,
		TradeURL:     fields.URL,
		AllPlayers:   []types.PlayerInfo{},
	}

	var highest *types.PlayerInfo
	for i := range players {
		if !players[i].Signed() {
			continue
		}
		record.AllPlayers = append(record.AllPlayers, players[i])
		if highest == nil || *players[i].CapHit > *highest.CapHit {
			highest = &players[i]
		}
	}
	if highest == nil {
		return record
	}

	record.HasSignedPlayers = true
	record.HighestCapHit = highest.CapHit
	name := highest.Name
	record.HighestCapPlayerName = &name
	record.HighestCapPlayerAge = highest.Age
	record.HighestCapPlayerPosition = highest.Position
	record.HighestCapPlayerYearsLeft = highest.YearsLeft
	record.HighestCapPlayerTotalYears = highest.TotalYears
	return record
}
