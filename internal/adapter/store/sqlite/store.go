package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/omnitea/omnitea/internal/store"
)

// Store implements the store.Store interface using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite store at the given path, creating
// parent directories as needed. Use ":memory:" for an in-memory
// database (useful for testing).
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}

	if err := s.createSchema(); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return s, nil
}

// createSchema creates all tables and indexes if they don't exist.
func (s *Store) createSchema() error {
	schema := `
	-- One row per answered message
	CREATE TABLE IF NOT EXISTS exchanges (
		exchange_id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		guild_id TEXT NOT NULL,
		channel_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		user_name TEXT NOT NULL,
		model TEXT NOT NULL,
		prompt_tokens INTEGER NOT NULL DEFAULT 0,
		completion_tokens INTEGER NOT NULL DEFAULT 0,
		mode TEXT NOT NULL CHECK(mode IN ('text', 'image')),
		pages INTEGER NOT NULL DEFAULT 0,
		prompt_override INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_exchanges_created ON exchanges(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_exchanges_channel ON exchanges(channel_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveExchange stores one exchange record.
func (s *Store) SaveExchange(ctx context.Context, exchange store.Exchange) error {
	query := `
		INSERT INTO exchanges (exchange_id, created_at, guild_id, channel_id, user_id, user_name, model, prompt_tokens, completion_tokens, mode, pages, prompt_override, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	promptOverride := 0
	if exchange.PromptOverride {
		promptOverride = 1
	}

	_, err := s.db.ExecContext(ctx, query,
		exchange.ExchangeID,
		exchange.CreatedAt.Unix(),
		exchange.GuildID,
		exchange.ChannelID,
		exchange.UserID,
		exchange.UserName,
		exchange.Model,
		exchange.PromptTokens,
		exchange.CompletionTokens,
		exchange.Mode,
		exchange.Pages,
		promptOverride,
		exchange.DurationMS,
	)

	if err != nil {
		return fmt.Errorf("failed to save exchange: %w", err)
	}

	return nil
}

// RecentExchanges retrieves the most recent exchanges, newest first.
func (s *Store) RecentExchanges(ctx context.Context, limit int) ([]store.Exchange, error) {
	query := `
		SELECT exchange_id, created_at, guild_id, channel_id, user_id, user_name, model, prompt_tokens, completion_tokens, mode, pages, prompt_override, duration_ms
		FROM exchanges
		ORDER BY created_at DESC, exchange_id DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchanges: %w", err)
	}
	defer rows.Close()

	var exchanges []store.Exchange
	for rows.Next() {
		var exchange store.Exchange
		var createdAt int64
		var promptOverride int

		if err := rows.Scan(
			&exchange.ExchangeID,
			&createdAt,
			&exchange.GuildID,
			&exchange.ChannelID,
			&exchange.UserID,
			&exchange.UserName,
			&exchange.Model,
			&exchange.PromptTokens,
			&exchange.CompletionTokens,
			&exchange.Mode,
			&exchange.Pages,
			&promptOverride,
			&exchange.DurationMS,
		); err != nil {
			return nil, fmt.Errorf("failed to scan exchange: %w", err)
		}

		exchange.CreatedAt = time.Unix(createdAt, 0)
		exchange.PromptOverride = promptOverride == 1
		exchanges = append(exchanges, exchange)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exchanges: %w", err)
	}

	return exchanges, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
