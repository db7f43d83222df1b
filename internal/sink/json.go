package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/michaelwdorrill/Trade-Scraper/pkg/types"
)

// JSONSink writes the full record set, including per-player detail, as an
// indented JSON array.
type JSONSink struct {
	path string
}

func NewJSONSink(path string) *JSONSink {
	return &JSONSink{path: path}
}

func (s *JSONSink) Write(ctx context.Context, records []types.TradeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if records == nil {
		records = []types.TradeRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json output: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write json output: %w", err)
	}
	return nil
}
