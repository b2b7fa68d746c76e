package vitesy

import (
	"errors"
	"fmt"
	"net"
)

var (
	ErrCSRFMissing              = errors.New("XSRF-TOKEN cookie not set by login page")
	ErrLoginFailed              = errors.New("login failed - check email and password")
	ErrTokenExchangeFailed      = errors.New("authorization code exchange failed")
	ErrTokenRefreshFailed       = errors.New("access token refresh failed")
	ErrAPIKeyProvisioningFailed = errors.New("api key could not be fetched or created")
	ErrNoRefreshToken           = errors.New("no refresh token held - login required")
)

// AuthErrorKind classifies an authentication failure
type AuthErrorKind string

const (
	KindCSRFMissing              AuthErrorKind = "csrf_missing"
	KindLoginFailed              AuthErrorKind = "login_failed"
	KindTokenExchangeFailed      AuthErrorKind = "token_exchange_failed"
	KindTokenRefreshFailed       AuthErrorKind = "token_refresh_failed"
	KindAPIKeyProvisioningFailed AuthErrorKind = "api_key_provisioning_failed"
)

var kindSentinels = map[AuthErrorKind]error{
	KindCSRFMissing:              ErrCSRFMissing,
	KindLoginFailed:              ErrLoginFailed,
	KindTokenExchangeFailed:      ErrTokenExchangeFailed,
	KindTokenRefreshFailed:       ErrTokenRefreshFailed,
	KindAPIKeyProvisioningFailed: ErrAPIKeyProvisioningFailed,
}

// AuthError is returned by every step of the login, refresh and api key flows.
// StatusCode and Body are set when the failure came from an HTTP response.
type AuthError struct {
	Kind       AuthErrorKind
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthError) Error() string {
	msg := string(e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, truncate(e.Body, maxErrorBody))
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the same kind
func (e *AuthError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// HTTPError is returned when a data endpoint answers with a non-2xx status
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Method, e.URL, e.StatusCode, truncate(e.Body, maxErrorBody))
}

// IsInvalidAuth reports whether err means the credentials were rejected,
// as opposed to the vendor being unreachable.
func IsInvalidAuth(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return false
	}
	return errors.Is(err, ErrLoginFailed) ||
		errors.Is(err, ErrTokenExchangeFailed) ||
		errors.Is(err, ErrNoRefreshToken)
}

const maxErrorBody = 512

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
