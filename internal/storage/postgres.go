package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"sjsage522/consoledealworker/internal/listing"
	"sjsage522/consoledealworker/logger"

	_ "github.com/lib/pq"
)

const (
	insertBatchSize = 50
	insertColumns   = 6
)

// PostgresSink persists accepted listings to PostgreSQL
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink opens a connection, waits for the server and runs the
// schema migration
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 5; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	s := &PostgresSink{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresSink) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			id         SERIAL PRIMARY KEY,
			title      TEXT          NOT NULL,
			price      NUMERIC(10,2) NOT NULL DEFAULT 0,
			link       TEXT          NOT NULL,
			platform   VARCHAR(50)   NOT NULL,
			category   VARCHAR(50)   NOT NULL DEFAULT '',
			unverified BOOLEAN       NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
			UNIQUE (platform, link)
		);

		CREATE INDEX IF NOT EXISTS idx_listings_category ON listings(category);
		CREATE INDEX IF NOT EXISTS idx_listings_platform ON listings(platform);
	`)
	return err
}

// Save inserts listings in batches; rows already present are skipped
func (s *PostgresSink) Save(ctx context.Context, listings []listing.ClassifiedListing) error {
	for i := 0; i < len(listings); i += insertBatchSize {
		end := i + insertBatchSize
		if end > len(listings) {
			end = len(listings)
		}
		query, args := buildInsert(listings[i:end])
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("postgres: insert: %w", err)
		}
	}

	if len(listings) > 0 {
		logger.ForStore().Debug().Int("count", len(listings)).Msg("Saved listings to postgres")
	}
	return nil
}

func buildInsert(batch []listing.ClassifiedListing) (string, []interface{}) {
	values := make([]string, 0, len(batch))
	args := make([]interface{}, 0, len(batch)*insertColumns)

	for idx, l := range batch {
		base := idx * insertColumns
		values = append(values, fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6))
		args = append(args, l.Title, l.Price.StringFixed(2), l.Link, l.Platform, l.Category, l.Unverified())
	}

	query := fmt.Sprintf(`
		INSERT INTO listings (title, price, link, platform, category, unverified)
		VALUES %s
		ON CONFLICT (platform, link) DO NOTHING
	`, strings.Join(values, ","))
	return query, args
}

// Count returns the number of stored listings
func (s *PostgresSink) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM listings").Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count: %w", err)
	}
	return n, nil
}

// Close closes the database connection
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
