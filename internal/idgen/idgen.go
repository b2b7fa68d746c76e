package idgen

import (
	"github.com/google/uuid"
)

// ID prefixes for generated identifiers
const (
	PrefixCycle   = "cycle_"
	PrefixRequest = "req_"
)

// NewCycle generates a poll cycle ID with cycle_ prefix
func NewCycle() string {
	return PrefixCycle + uuid.New().String()
}

// NewRequest generates an HTTP request ID with req_ prefix
func NewRequest() string {
	return PrefixRequest + uuid.New().String()
}
