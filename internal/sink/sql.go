package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	pq "github.com/lib/pq"

	"github.com/michaelwdorrill/Trade-Scraper/internal/config"
	"github.com/michaelwdorrill/Trade-Scraper/pkg/types"
)

// SQLSink upserts trade records into a relational database. Re-running a
// scrape refreshes existing rows instead of duplicating them.
type SQLSink struct {
	db          *sql.DB
	autoMigrate bool
}

// NewSQLSink opens the configured database, creating it first when
// create-if-missing is set and the target does not exist.
func NewSQLSink(cfg config.SQLConfig) (*SQLSink, error) {
	if cfg.Driver == "" || cfg.DSN == "" {
		return nil, errors.New("sql config missing driver or dsn")
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sql connection: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		if cfg.CreateIfMissing && shouldAttemptCreateDatabase(cfg.Driver, err) {
			_ = db.Close()
			if err := createDatabase(ctx, cfg); err != nil {
				return nil, err
			}
			db, err = sql.Open(cfg.Driver, cfg.DSN)
			if err != nil {
				return nil, fmt.Errorf("open sql connection: %w", err)
			}
			if err := db.PingContext(ctx); err != nil {
				return nil, fmt.Errorf("ping sql connection: %w", err)
			}
		} else {
			return nil, fmt.Errorf("ping sql connection: %w", err)
		}
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime.Duration > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime.Duration)
	}
	s := &SQLSink{db: db, autoMigrate: cfg.AutoMigrate}
	if cfg.AutoMigrate {
		if err := s.ensureSchema(context.Background()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Write upserts the batch inside a single transaction.
func (s *SQLSink) Write(ctx context.Context, records []types.TradeRecord) error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.writeBatch(ctx, records); err != nil {
		if s.autoMigrate && isUndefinedTableErr(err) {
			if schemaErr := s.ensureSchema(ctx); schemaErr != nil {
				return fmt.Errorf("ensure schema: %w", schemaErr)
			}
			if retryErr := s.writeBatch(ctx, records); retryErr != nil {
				return fmt.Errorf("insert trades: %w", retryErr)
			}
			return nil
		}
		return fmt.Errorf("insert trades: %w", err)
	}
	return nil
}

func (s *SQLSink) writeBatch(ctx context.Context, records []types.TradeRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
        INSERT INTO trades (
            trade_date, trade_summary, trade_url,
            highest_cap_hit, highest_cap_player_name, highest_cap_player_age,
            highest_cap_player_position, highest_cap_player_years_left,
            highest_cap_player_total_years, has_signed_players, scraped_at
        )
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        ON CONFLICT (trade_url, trade_summary) DO UPDATE SET
            trade_date = EXCLUDED.trade_date,
            highest_cap_hit = EXCLUDED.highest_cap_hit,
            highest_cap_player_name = EXCLUDED.highest_cap_player_name,
            highest_cap_player_age = EXCLUDED.highest_cap_player_age,
            highest_cap_player_position = EXCLUDED.highest_cap_player_position,
            highest_cap_player_years_left = EXCLUDED.highest_cap_player_years_left,
            highest_cap_player_total_years = EXCLUDED.highest_cap_player_total_years,
            has_signed_players = EXCLUDED.has_signed_players,
            scraped_at = EXCLUDED.scraped_at
    `
	now := time.Now().UTC()
	for _, r := range records {
		if _, err := tx.ExecContext(ctx, query,
			r.TradeDate,
			r.TradeSummary,
			r.TradeURL,
			r.HighestCapHit,
			r.HighestCapPlayerName,
			r.HighestCapPlayerAge,
			r.HighestCapPlayerPosition,
			r.HighestCapPlayerYearsLeft,
			r.HighestCapPlayerTotalYears,
			r.HasSignedPlayers,
			now,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close closes the underlying DB connection.
func (s *SQLSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLSink) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil || !s.autoMigrate {
		return nil
	}
	schemaCtx := ctx
	if schemaCtx == nil || schemaCtx.Err() != nil {
		schemaCtx = context.Background()
	}
	schemaCtx, cancel := context.WithTimeout(schemaCtx, 10*time.Second)
	defer cancel()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trades (
		    id BIGSERIAL PRIMARY KEY,
		    trade_date TEXT,
		    trade_summary TEXT NOT NULL,
		    trade_url TEXT NOT NULL,
		    highest_cap_hit DOUBLE PRECISION,
		    highest_cap_player_name TEXT,
		    highest_cap_player_age INT,
		    highest_cap_player_position TEXT,
		    highest_cap_player_years_left INT,
		    highest_cap_player_total_years INT,
		    has_signed_players BOOLEAN NOT NULL DEFAULT FALSE,
		    scraped_at TIMESTAMPTZ
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_trades_url_summary ON trades (trade_url, trade_summary)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_scraped_at ON trades (scraped_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(schemaCtx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func shouldAttemptCreateDatabase(driver string, err error) bool {
	if !strings.EqualFold(driver, "postgres") {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "3D000"
	}
	return strings.Contains(strings.ToLower(err.Error()), "does not exist")
}

func createDatabase(ctx context.Context, cfg config.SQLConfig) error {
	parsed, err := url.Parse(cfg.DSN)
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}
	dbName := strings.TrimPrefix(parsed.Path, "/")
	if dbName == "" {
		return errors.New("dsn missing database name")
	}
	if strings.EqualFold(dbName, "postgres") {
		return fmt.Errorf("target database %q cannot be auto-created", dbName)
	}
	parsed.Path = "/postgres"
	adminDSN := parsed.String()
	adminDB, err := sql.Open(cfg.Driver, adminDSN)
	if err != nil {
		return fmt.Errorf("connect admin database: %w", err)
	}
	defer adminDB.Close()
	if err := adminDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping admin database: %w", err)
	}
	stmt := fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbName))
	if _, err := adminDB.ExecContext(ctx, stmt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "42P04" {
			return nil
		}
		return fmt.Errorf("create database %q: %w", dbName, err)
	}
	return nil
}

func isUndefinedTableErr(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "42P01"
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "relation") && strings.Contains(lower, "does not exist")
}
