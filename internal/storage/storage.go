package storage

import (
	"context"
	"time"

	"shelfy/internal/vitesy"
)

// Storage defines the interface for data persistence
type Storage interface {
	// Tokens
	GetTokens(ctx context.Context) (*vitesy.Tokens, error)
	SaveTokens(ctx context.Context, tokens *vitesy.Tokens) error
	DeleteTokens(ctx context.Context) error

	// Notifications
	MarkNotified(ctx context.Context, deviceID, item string, dueDate time.Time) (bool, error)

	// Lifecycle
	Close() error
}
