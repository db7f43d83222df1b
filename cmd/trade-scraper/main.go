package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/michaelwdorrill/Trade-Scraper/internal/config"
	"github.com/michaelwdorrill/Trade-Scraper/internal/crawler"
	"github.com/michaelwdorrill/Trade-Scraper/internal/sink"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "Path to scraper configuration file")
	output := flag.String("output", "", "Output file path (overrides config)")
	format := flag.String("format", "", "Output format: csv or json (overrides config)")
	maxPages := flag.Int("max-pages", -1, "Maximum number of listing pages to scrape; 0 scrapes all (overrides config)")
	delay := flag.Duration("delay", -1, "Delay between page requests (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *output != "" {
		cfg.Output.Path = *output
	}
	if *format != "" {
		cfg.Output.Format = *format
	}
	if *maxPages >= 0 {
		cfg.Source.PageLimit = *maxPages
	}
	if *delay >= 0 {
		cfg.Politeness.PageDelay = config.DurationFrom(*delay)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	engine, err := crawler.NewEngine(*cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise scraper: %v\n", err)
		os.Exit(1)
	}

	out, err := sink.FromConfig(cfg.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise output: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	records, err := engine.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scrape stopped with error: %v\n", err)
		os.Exit(1)
	}

	writeCtx, writeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer writeCancel()
	if err := out.Write(writeCtx, records); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write output: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "wrote %d trades to %s\n", len(records), cfg.Output.Path)
}

// loadConfig falls back to built-in defaults when the default config file is
// absent, so the binary runs without any setup.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		defaults := config.Default()
		return &defaults, nil
	}
	return nil, err
}
