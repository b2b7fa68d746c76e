package vitesy

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/oauth2"
)

const (
	// ChallengeMethodS256 is the only challenge method the vendor accepts
	ChallengeMethodS256 = "S256"

	// stateBytes gives the 16 hex characters used for state and nonce
	stateBytes = 8
)

// PKCE holds the proof key pair for one authorization code exchange.
// The verifier never leaves the process except in the token request.
type PKCE struct {
	Verifier  string
	Challenge string
	Method    string
}

// GeneratePKCE creates a verifier from 32 random bytes (43 base64url chars,
// no padding) and its S256 challenge.
func GeneratePKCE() PKCE {
	verifier := oauth2.GenerateVerifier()
	return PKCE{
		Verifier:  verifier,
		Challenge: oauth2.S256ChallengeFromVerifier(verifier),
		Method:    ChallengeMethodS256,
	}
}

// randomHex returns 2*n lowercase hex characters
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
