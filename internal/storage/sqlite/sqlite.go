package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shelfy/internal/storage"
	"shelfy/internal/vitesy"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage implements storage.Storage using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

var _ storage.Storage = (*SQLiteStorage)(nil)

// New creates a new SQLite storage instance
func New(dbPath string) (*SQLiteStorage, error) {
	// SQLite will store times as UTC strings, we'll convert in app layer
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStorage{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate creates the database schema
func (s *SQLiteStorage) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS vitesy_tokens (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			refresh_token TEXT NOT NULL,
			access_token TEXT,
			access_token_expires_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS maintenance_notifications (
			device_id TEXT NOT NULL,
			item TEXT NOT NULL,
			due_date DATETIME NOT NULL,
			notified_at DATETIME NOT NULL,
			PRIMARY KEY (device_id, item, due_date)
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Run migrations for schema changes
	return s.runMigrations()
}

// runMigrations applies incremental schema changes
func (s *SQLiteStorage) runMigrations() error {
	// api_key arrived after the first release of the token table
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM pragma_table_info('vitesy_tokens') WHERE name = 'api_key'
	`).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to inspect vitesy_tokens: %w", err)
	}
	if count > 0 {
		return nil
	}

	if _, err := s.db.Exec(`ALTER TABLE vitesy_tokens ADD COLUMN api_key TEXT`); err != nil {
		return fmt.Errorf("failed to add api_key column: %w", err)
	}
	return nil
}

// GetTokens retrieves the stored token set
// Implements vitesy.TokenStorage interface
func (s *SQLiteStorage) GetTokens(ctx context.Context) (*vitesy.Tokens, error) {
	var tokens vitesy.Tokens
	var accessToken, apiKey sql.NullString
	var expiresAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT refresh_token, access_token, access_token_expires_at, api_key, created_at, updated_at
		FROM vitesy_tokens WHERE id = 1
	`).Scan(&tokens.RefreshToken, &accessToken, &expiresAt, &apiKey, &tokens.CreatedAt, &tokens.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // No tokens stored yet
	}
	if err != nil {
		return nil, err
	}

	tokens.AccessToken = accessToken.String
	tokens.APIKey = apiKey.String
	if expiresAt.Valid {
		tokens.ExpiresAt = &expiresAt.Time
	}

	return &tokens, nil
}

// SaveTokens saves or updates the token set
// Implements vitesy.TokenStorage interface
func (s *SQLiteStorage) SaveTokens(ctx context.Context, tokens *vitesy.Tokens) error {
	now := time.Now()
	tokens.UpdatedAt = now
	if tokens.CreatedAt.IsZero() {
		tokens.CreatedAt = now
	}

	var expiresAt sql.NullTime
	if tokens.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *tokens.ExpiresAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vitesy_tokens (id, refresh_token, access_token, access_token_expires_at, api_key, created_at, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			refresh_token = excluded.refresh_token,
			access_token = excluded.access_token,
			access_token_expires_at = excluded.access_token_expires_at,
			api_key = excluded.api_key,
			updated_at = excluded.updated_at
	`, tokens.RefreshToken, tokens.AccessToken, expiresAt, tokens.APIKey, tokens.CreatedAt, tokens.UpdatedAt)

	return err
}

// DeleteTokens forgets the stored token set, forcing a new login
func (s *SQLiteStorage) DeleteTokens(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM vitesy_tokens WHERE id = 1`)
	return err
}

// MarkNotified records that a maintenance alert was sent. It returns false
// when the same alert was already recorded.
func (s *SQLiteStorage) MarkNotified(ctx context.Context, deviceID, item string, dueDate time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO maintenance_notifications (device_id, item, due_date, notified_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(device_id, item, due_date) DO NOTHING
	`, deviceID, item, dueDate.UTC(), time.Now())
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
