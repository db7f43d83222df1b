package extract

import (
	"testing"

	"github.com/michaelwdorrill/Trade-Scraper/pkg/types"
)

func player(name string, capHit float64) types.PlayerInfo {
	p := types.PlayerInfo{Name: name}
	if capHit > 0 {
		p.CapHit = &capHit
	}
	return p
}

func TestAggregateSelectsHighestCapHit(t *testing.T) {
	fields := TradeFields{Date: "JAN 8 2026", Summary: "summary", URL: "https://puckpedia.com/trades"}
	players := []types.PlayerInfo{
		player("Low", 850000),
		player("High", 6250000),
		player("Mid", 2500000),
	}

	record := Aggregate(fields, players)
	if !record.HasSignedPlayers {
		t.Fatal("expected HasSignedPlayers")
	}
	if record.HighestCapPlayerName == nil || *record.HighestCapPlayerName != "High" {
		t.Errorf("highest player = %v, want High", record.HighestCapPlayerName)
	}
	if record.HighestCapHit == nil || *record.HighestCapHit != 6250000 {
		t.Errorf("highest cap hit = %v, want 6250000", record.HighestCapHit)
	}
	if len(record.AllPlayers) != 3 {
		t.Errorf("all players = %d, want 3", len(record.AllPlayers))
	}
	if record.TradeDate != "JAN 8 2026" || record.TradeURL != "https://puckpedia.com/trades" {
		t.Errorf("trade fields not carried through: %+v", record)
	}
}

func TestAggregateTieBreaksOnContainerOrder(t *testing.T) {
	players := []types.PlayerInfo{
		player("First", 4000000),
		player("Second", 4000000),
	}
	for i := 0; i < 10; i++ {
		record := Aggregate(TradeFields{}, players)
		if record.HighestCapPlayerName == nil || *record.HighestCapPlayerName != "First" {
			t.Fatalf("tie must select first in container order, got %v", record.HighestCapPlayerName)
		}
	}
}

func TestAggregateNoSignedPlayers(t *testing.T) {
	tests := []struct {
		name    string
		players []types.PlayerInfo
	}{
		{"empty list", nil},
		{"unsigned only", []types.PlayerInfo{player("Prospect", 0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := Aggregate(TradeFields{Date: "OCT 1 2025"}, tt.players)
			if record.HasSignedPlayers {
				t.Error("expected HasSignedPlayers false")
			}
			if record.HighestCapHit != nil || record.HighestCapPlayerName != nil ||
				record.HighestCapPlayerAge != nil || record.HighestCapPlayerPosition != nil ||
				record.HighestCapPlayerYearsLeft != nil || record.HighestCapPlayerTotalYears != nil {
				t.Errorf("highest_cap fields must be nil: %+v", record)
			}
			if len(record.AllPlayers) != 0 {
				t.Errorf("all players = %d, want 0", len(record.AllPlayers))
			}
		})
	}
}
