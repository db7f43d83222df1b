// Package sink persists scraped trade records to files and databases.
package sink

import (
	"context"
	"fmt"

	"github.com/michaelwdorrill/Trade-Scraper/internal/config"
	"github.com/michaelwdorrill/Trade-Scraper/pkg/types"
)

// Sink writes a completed batch of trade records to a destination.
type Sink interface {
	Write(ctx context.Context, records []types.TradeRecord) error
}

// Pipeline fans a batch out to every configured sink.
type Pipeline struct {
	sinks []Sink
}

// NewPipeline constructs a pipeline over the given sinks; nils are skipped.
func NewPipeline(sinks ...Sink) *Pipeline {
	p := &Pipeline{}
	for _, s := range sinks {
		if s != nil {
			p.sinks = append(p.sinks, s)
		}
	}
	if len(p.sinks) == 0 {
		return nil
	}
	return p
}

// Write delivers the batch to each sink in order. The first failure aborts
// the fan-out so a partial write is never silently overwritten.
func (p *Pipeline) Write(ctx context.Context, records []types.TradeRecord) error {
	if p == nil {
		return nil
	}
	for _, s := range p.sinks {
		if err := s.Write(ctx, records); err != nil {
			return err
		}
	}
	return nil
}

// Close releases resources held by closable sinks.
func (p *Pipeline) Close() error {
	if p == nil {
		return nil
	}
	var firstErr error
	for _, s := range p.sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// FromConfig assembles the output pipeline described by cfg.
func FromConfig(cfg config.OutputConfig) (*Pipeline, error) {
	var sinks []Sink
	switch cfg.Format {
	case "csv":
		sinks = append(sinks, NewCSVSink(cfg.Path))
	case "json":
		sinks = append(sinks, NewJSONSink(cfg.Path))
	default:
		return nil, fmt.Errorf("unsupported output format %q", cfg.Format)
	}
	if cfg.SQL.DSN != "" {
		sqlSink, err := NewSQLSink(cfg.SQL)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sqlSink)
	}
	return NewPipeline(sinks...), nil
}
