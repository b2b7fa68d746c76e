package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"shelfy/internal/vitesy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	storage, err := New(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		storage.Close()
	})

	return storage
}

func TestSQLiteStorage_GetTokens_Empty(t *testing.T) {
	storage := setupTestDB(t)

	tokens, err := storage.GetTokens(context.Background())
	require.NoError(t, err)
	assert.Nil(t, tokens)
}

func TestSQLiteStorage_SaveAndGetTokens(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	expiresAt := time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC)
	tokens := &vitesy.Tokens{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    &expiresAt,
	}
	require.NoError(t, storage.SaveTokens(ctx, tokens))
	assert.False(t, tokens.CreatedAt.IsZero())

	retrieved, err := storage.GetTokens(ctx)
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, "access-1", retrieved.AccessToken)
	assert.Equal(t, "refresh-1", retrieved.RefreshToken)
	assert.Empty(t, retrieved.APIKey)
	require.NotNil(t, retrieved.ExpiresAt)
	assert.True(t, expiresAt.Equal(*retrieved.ExpiresAt))

	// Second save updates the single row
	tokens.AccessToken = "access-2"
	tokens.APIKey = "key-1"
	require.NoError(t, storage.SaveTokens(ctx, tokens))

	retrieved, err = storage.GetTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-2", retrieved.AccessToken)
	assert.Equal(t, "key-1", retrieved.APIKey)

	var rows int
	require.NoError(t, storage.db.QueryRow("SELECT COUNT(*) FROM vitesy_tokens").Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestSQLiteStorage_SaveTokens_WithoutExpiry(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, storage.SaveTokens(ctx, &vitesy.Tokens{RefreshToken: "refresh-1"}))

	retrieved, err := storage.GetTokens(ctx)
	require.NoError(t, err)
	assert.Nil(t, retrieved.ExpiresAt)
	assert.Empty(t, retrieved.AccessToken)
}

func TestSQLiteStorage_DeleteTokens(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, storage.SaveTokens(ctx, &vitesy.Tokens{RefreshToken: "refresh-1"}))
	require.NoError(t, storage.DeleteTokens(ctx))

	tokens, err := storage.GetTokens(ctx)
	require.NoError(t, err)
	assert.Nil(t, tokens)

	// Deleting nothing is fine
	assert.NoError(t, storage.DeleteTokens(ctx))
}

func TestSQLiteStorage_AuthenticatorPersistence(t *testing.T) {
	storage := setupTestDB(t)
	auth := vitesy.NewAuthenticator(vitesy.Config{}, vitesy.WithStorage(storage))

	auth.SetAPIKey(context.Background(), "key-9")

	tokens, err := storage.GetTokens(context.Background())
	require.NoError(t, err)
	require.NotNil(t, tokens)
	assert.Equal(t, "key-9", tokens.APIKey)
}

func TestSQLiteStorage_MarkNotified(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	due := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	first, err := storage.MarkNotified(ctx, "AA:BB", "filter", due)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := storage.MarkNotified(ctx, "AA:BB", "filter", due)
	require.NoError(t, err)
	assert.False(t, again)

	// A new due date or another item is a new alert
	next, err := storage.MarkNotified(ctx, "AA:BB", "filter", due.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.True(t, next)

	other, err := storage.MarkNotified(ctx, "AA:BB", "fridge", due)
	require.NoError(t, err)
	assert.True(t, other)
}

func TestSQLiteStorage_MigratesLegacyTokenTable(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "legacy.db")

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE vitesy_tokens (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			refresh_token TEXT NOT NULL,
			access_token TEXT,
			access_token_expires_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	storage, err := New(dbPath)
	require.NoError(t, err)
	defer storage.Close()

	require.NoError(t, storage.SaveTokens(context.Background(), &vitesy.Tokens{RefreshToken: "r", APIKey: "k"}))
	tokens, err := storage.GetTokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "k", tokens.APIKey)

	// Reopening does not try to add the column twice
	require.NoError(t, storage.Close())
	reopened, err := New(dbPath)
	require.NoError(t, err)
	reopened.Close()
}
