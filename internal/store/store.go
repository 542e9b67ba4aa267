package store

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/raaihank/mail-sentinel/internal/config"
	"github.com/raaihank/mail-sentinel/internal/logger"
)

// maxBatchRows keeps a multi-row insert under the Postgres bind parameter limit
const maxBatchRows = 1000

const schema = `
CREATE TABLE IF NOT EXISTS classifications (
	id                BIGSERIAL PRIMARY KEY,
	request_id        TEXT NOT NULL,
	text_hash         TEXT NOT NULL,
	masked_email      TEXT NOT NULL,
	category          TEXT NOT NULL,
	entity_count      INTEGER NOT NULL DEFAULT 0,
	entity_categories TEXT[] NOT NULL DEFAULT '{}',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_classifications_category ON classifications (category);

CREATE TABLE IF NOT EXISTS masked_emails (
	id           BIGSERIAL PRIMARY KEY,
	text_hash    TEXT NOT NULL UNIQUE,
	masked_email TEXT NOT NULL,
	label        TEXT NOT NULL,
	entity_count INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// Store persists classification audits and the masked training corpus in PostgreSQL
type Store struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// New connects to the database and configures the connection pool
func New(cfg config.StorageConfig, log *logger.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	store := NewWithDB(db, log)

	log.Info("Audit store connected",
		zap.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns))

	return store, nil
}

// NewWithDB wraps an existing connection
func NewWithDB(db *sqlx.DB, log *logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithComponent("store"),
	}
}

// EnsureSchema creates the tables if they do not exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	s.logger.Debug("Schema ensured")
	return nil
}

// InsertClassification records one classified email
func (s *Store) InsertClassification(ctx context.Context, c *Classification) error {
	if c.Categories == nil {
		c.Categories = pq.StringArray{}
	}

	query := `
		INSERT INTO classifications (request_id, text_hash, masked_email, category, entity_count, entity_categories)
		VALUES (:request_id, :text_hash, :masked_email, :category, :entity_count, :entity_categories)
		RETURNING id, created_at`

	rows, err := s.db.NamedQueryContext(ctx, query, c)
	if err != nil {
		return fmt.Errorf("failed to insert classification: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&c.ID, &c.CreatedAt); err != nil {
			return fmt.Errorf("failed to read inserted classification: %w", err)
		}
	}

	s.logger.Debug("Classification stored",
		zap.Int64("id", c.ID),
		zap.String("category", c.Category),
		zap.Int("entity_count", c.EntityCount))

	return rows.Err()
}

// BatchInsertMasked stores masked training emails, skipping ones already present
func (s *Store) BatchInsertMasked(ctx context.Context, emails []*MaskedEmail) (*BatchInsertResult, error) {
	result := &BatchInsertResult{}
	if len(emails) == 0 {
		return result, nil
	}

	start := time.Now()
	for offset := 0; offset < len(emails); offset += maxBatchRows {
		end := min(offset+maxBatchRows, len(emails))
		query, args := buildMaskedInsert(emails[offset:end])

		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			s.logger.Error("Batch insert failed", zap.Error(err))
			return result, fmt.Errorf("batch insert failed: %w", err)
		}

		inserted, err := res.RowsAffected()
		if err != nil {
			s.logger.Warn("Could not get rows affected", zap.Error(err))
			inserted = int64(end - offset)
		}
		result.Inserted += inserted
		result.Duplicates += int64(end-offset) - inserted
	}
	result.Duration = time.Since(start)

	s.logger.Info("Batch insert completed",
		zap.Int64("inserted", result.Inserted),
		zap.Int64("duplicates_skipped", result.Duplicates),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// GetStats returns row counts for both tables and classifications per category
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	if err := s.db.GetContext(ctx, &stats.TotalClassifications, "SELECT COUNT(*) FROM classifications"); err != nil {
		return nil, fmt.Errorf("failed to count classifications: %w", err)
	}
	if err := s.db.GetContext(ctx, &stats.TotalMaskedEmails, "SELECT COUNT(*) FROM masked_emails"); err != nil {
		return nil, fmt.Errorf("failed to count masked emails: %w", err)
	}

	query := `
		SELECT category, COUNT(*) AS count
		FROM classifications
		GROUP BY category
		ORDER BY count DESC, category`
	if err := s.db.SelectContext(ctx, &stats.ByCategory, query); err != nil {
		return nil, fmt.Errorf("failed to count categories: %w", err)
	}

	return stats, nil
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// buildMaskedInsert renders a multi-row insert for the masked_emails table
func buildMaskedInsert(emails []*MaskedEmail) (string, []interface{}) {
	valueStrings := make([]string, 0, len(emails))
	valueArgs := make([]interface{}, 0, len(emails)*4)

	for i, e := range emails {
		valueStrings = append(valueStrings, fmt.Sprintf("($%d, $%d, $%d, $%d)", i*4+1, i*4+2, i*4+3, i*4+4))
		valueArgs = append(valueArgs, e.TextHash, e.MaskedEmail, e.Label, e.EntityCount)
	}

	query := fmt.Sprintf(`
		INSERT INTO masked_emails (text_hash, masked_email, label, entity_count)
		VALUES %s
		ON CONFLICT (text_hash) DO NOTHING`,
		strings.Join(valueStrings, ","))

	return query, valueArgs
}

// maskDatabaseURL hides the password in a database URL for logging
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[invalid url]"
	}
	return u.Redacted()
}
