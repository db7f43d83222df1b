package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/michaelwdorrill/Trade-Scraper/pkg/types"
)

// csvHeader is the flat column layout; nested player detail is collapsed to
// the highest-cap-hit annotation so the file loads cleanly into a spreadsheet.
var csvHeader = []string{
	"trade_date",
	"trade_summary",
	"trade_url",
	"highest_cap_hit",
	"highest_cap_player_name",
	"highest_cap_player_age",
	"highest_cap_player_position",
	"highest_cap_player_years_left",
	"highest_cap_player_total_years",
	"has_signed_players",
}

// CSVSink writes records to a single CSV file, replacing any previous run.
type CSVSink struct {
	path string
}

func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

func (s *CSVSink) Write(ctx context.Context, records []types.TradeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fh, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create csv output: %w", err)
	}
	defer fh.Close()

	w := csv.NewWriter(fh)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.TradeDate,
			r.TradeSummary,
			r.TradeURL,
			formatFloat(r.HighestCapHit),
			formatString(r.HighestCapPlayerName),
			formatInt(r.HighestCapPlayerAge),
			formatString(r.HighestCapPlayerPosition),
			formatInt(r.HighestCapPlayerYearsLeft),
			formatInt(r.HighestCapPlayerTotalYears),
			strconv.FormatBool(r.HasSignedPlayers),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}
	return fh.Sync()
}

func formatString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
