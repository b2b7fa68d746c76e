package vitesy

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of the Cognito access token claims used for status
// reporting. The signature is not verified: the token is only forwarded to
// the vendor, which does the verification.
type Claims struct {
	Subject   string
	Username  string
	Email     string
	Issuer    string
	ClientID  string
	ExpiresAt *time.Time
}

// ParseClaims decodes the claims of a JWT access token without verifying it
func ParseClaims(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, errors.New("empty token")
	}

	token, _, err := jwt.NewParser().ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("error extracting claims")
	}

	out := &Claims{}
	out.Subject, _ = claims["sub"].(string)
	out.Username, _ = claims["username"].(string)
	if out.Username == "" {
		out.Username, _ = claims["cognito:username"].(string)
	}
	out.Email, _ = claims["email"].(string)
	out.Issuer, _ = claims["iss"].(string)
	out.ClientID, _ = claims["client_id"].(string)

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		out.ExpiresAt = &t
	}

	return out, nil
}
