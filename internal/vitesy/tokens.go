package vitesy

import (
	"context"
	"time"
)

// Tokens is the session state obtained from the vendor identity provider
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	APIKey       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Expired reports whether the access token can no longer be used at now.
// A token set without an expiry counts as expired.
func (t Tokens) Expired(now time.Time) bool {
	if t.ExpiresAt == nil {
		return true
	}
	return !now.Before(*t.ExpiresAt)
}

// clone returns a copy that shares no pointers with t
func (t Tokens) clone() Tokens {
	if t.ExpiresAt != nil {
		exp := *t.ExpiresAt
		t.ExpiresAt = &exp
	}
	return t
}

// TokenStorage defines the interface for token persistence
// This interface is implemented by the storage layer to avoid tight coupling
type TokenStorage interface {
	GetTokens(ctx context.Context) (*Tokens, error)
	SaveTokens(ctx context.Context, tokens *Tokens) error
}
