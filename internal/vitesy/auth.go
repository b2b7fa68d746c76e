package vitesy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultClientID    = "79r5m89hpavjbas5eadaif9tf"
	DefaultRedirectURI = "hub.vitesy.com:/oauth2redirect"
	DefaultScope       = "openid email profile aws.cognito.signin.user.admin API/*:*"
	DefaultAuthBaseURL = "https://auth.vitesy.com"
	DefaultAPIBaseURL  = "https://v1.api.vitesyhub.com"

	// DefaultHTTPTimeout is applied to every vendor request
	DefaultHTTPTimeout = 30 * time.Second

	// defaultExpiresIn is used when the token response omits expires_in
	defaultExpiresIn = 3600
)

// Config contains the vendor identity provider settings
type Config struct {
	Email       string
	Password    string
	ClientID    string
	RedirectURI string
	Scope       string
	AuthBaseURL string
	APIBaseURL  string
}

func (c Config) withDefaults() Config {
	if c.ClientID == "" {
		c.ClientID = DefaultClientID
	}
	if c.RedirectURI == "" {
		c.RedirectURI = DefaultRedirectURI
	}
	if c.Scope == "" {
		c.Scope = DefaultScope
	}
	if c.AuthBaseURL == "" {
		c.AuthBaseURL = DefaultAuthBaseURL
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	c.AuthBaseURL = strings.TrimSuffix(c.AuthBaseURL, "/")
	c.APIBaseURL = strings.TrimSuffix(c.APIBaseURL, "/")
	return c
}

// LoginURL is the hosted login form, also used as the authorization endpoint
func (c Config) LoginURL() string {
	return c.AuthBaseURL + "/login"
}

// TokenURL is the OAuth2 token endpoint
func (c Config) TokenURL() string {
	return c.AuthBaseURL + "/oauth2/token"
}

// Authenticator performs the scraped login, the PKCE code exchange and the
// refresh of the resulting token set. It owns the token set: callers obtain a
// bearer value only through AccessToken.
type Authenticator struct {
	config     Config
	pkce       PKCE
	httpClient *http.Client
	storage    TokenStorage
	logger     *slog.Logger
	now        func() time.Time

	mu     sync.RWMutex // Protects tokens
	tokens Tokens

	// refreshGroup collapses concurrent refreshes of an expired token
	refreshGroup singleflight.Group
}

// Option configures an Authenticator
type Option func(*Authenticator)

// WithHTTPClient sets the client used for the token endpoint. The login
// form requests reuse its transport and timeout with their own cookie jar.
func WithHTTPClient(client *http.Client) Option {
	return func(a *Authenticator) {
		a.httpClient = client
	}
}

// WithStorage persists the token set after every login and refresh
func WithStorage(storage TokenStorage) Option {
	return func(a *Authenticator) {
		a.storage = storage
	}
}

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authenticator) {
		a.logger = logger
	}
}

// WithClock replaces time.Now, mainly for expiry tests
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		a.now = now
	}
}

// NewAuthenticator creates an Authenticator with a fresh PKCE pair
func NewAuthenticator(config Config, opts ...Option) *Authenticator {
	a := &Authenticator{
		config:     config.withDefaults(),
		pkce:       GeneratePKCE(),
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		logger:     slog.Default(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	a.logger = a.logger.With("component", "vitesy.auth")
	return a
}

// Config returns the effective configuration, defaults applied
func (a *Authenticator) Config() Config {
	return a.config
}

// PKCE returns the proof key pair of this Authenticator
func (a *Authenticator) PKCE() PKCE {
	return a.pkce
}

// Login runs the interactive login and exchanges the resulting authorization
// code for a token set.
func (a *Authenticator) Login(ctx context.Context) error {
	code, err := a.authorizationCode(ctx)
	if err != nil {
		a.logger.Error("Login failed", "error", err)
		return err
	}

	resp, err := a.tokenRequest(ctx, KindTokenExchangeFailed, url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {a.config.ClientID},
		"redirect_uri":  {a.config.RedirectURI},
		"code_verifier": {a.pkce.Verifier},
		"code":          {code},
	})
	if err != nil {
		a.logger.Error("Token exchange failed", "error", err)
		return err
	}

	tokens := a.apply(resp, false)
	a.persist(ctx, tokens)

	a.logger.Info("Logged in",
		"expires_at", tokens.ExpiresAt,
		"has_refresh_token", tokens.RefreshToken != "")
	return nil
}

// RefreshAccessToken exchanges the refresh token for a new access token.
// The refresh token is only replaced when the response carries a new one.
// On failure the current token set is left untouched.
func (a *Authenticator) RefreshAccessToken(ctx context.Context) error {
	a.mu.RLock()
	refreshToken := a.tokens.RefreshToken
	a.mu.RUnlock()

	if refreshToken == "" {
		return &AuthError{Kind: KindTokenRefreshFailed, Err: ErrNoRefreshToken}
	}

	resp, err := a.tokenRequest(ctx, KindTokenRefreshFailed, url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {a.config.ClientID},
		"refresh_token": {refreshToken},
	})
	if err != nil {
		a.logger.Error("Token refresh failed", "error", err)
		return err
	}

	tokens := a.apply(resp, true)
	a.persist(ctx, tokens)

	a.logger.Info("Access token refreshed",
		"expires_at", tokens.ExpiresAt,
		"refresh_token_rotated", resp.RefreshToken != "")
	return nil
}

// IsTokenExpired reports whether the access token is unset or past its expiry
func (a *Authenticator) IsTokenExpired() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tokens.Expired(a.now())
}

// AccessToken returns a usable bearer token, refreshing it first when it has
// expired. Concurrent callers share a single refresh.
func (a *Authenticator) AccessToken(ctx context.Context) (string, error) {
	a.mu.RLock()
	if !a.tokens.Expired(a.now()) {
		token := a.tokens.AccessToken
		a.mu.RUnlock()
		return token, nil
	}
	a.mu.RUnlock()

	if err := a.sharedRefresh(ctx, true); err != nil {
		return "", err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tokens.AccessToken, nil
}

// ForceRefresh refreshes the access token whether or not it has expired.
// A refresh already in flight is joined instead of sending a second grant.
func (a *Authenticator) ForceRefresh(ctx context.Context) error {
	return a.sharedRefresh(ctx, false)
}

// sharedRefresh runs at most one refresh at a time. The refresh itself is
// detached from the caller that started it, so one caller giving up does not
// fail the others; each caller still returns when its own ctx is done.
func (a *Authenticator) sharedRefresh(ctx context.Context, onlyIfExpired bool) error {
	ch := a.refreshGroup.DoChan("refresh", func() (interface{}, error) {
		// Double-check: a refresh that just finished may have fixed it
		if onlyIfExpired && !a.IsTokenExpired() {
			return nil, nil
		}
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultHTTPTimeout)
		defer cancel()
		return nil, a.RefreshAccessToken(flightCtx)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Tokens returns a snapshot of the current token set
func (a *Authenticator) Tokens() Tokens {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tokens.clone()
}

// Restore replaces the token set, typically with one loaded from storage
func (a *Authenticator) Restore(tokens Tokens) {
	a.mu.Lock()
	a.tokens = tokens.clone()
	a.mu.Unlock()
}

// SetAPIKey records the api key in the token set and persists it
func (a *Authenticator) SetAPIKey(ctx context.Context, apiKey string) {
	a.mu.Lock()
	if a.tokens.APIKey == apiKey {
		a.mu.Unlock()
		return
	}
	a.tokens.APIKey = apiKey
	a.tokens.UpdatedAt = a.now()
	tokens := a.tokens.clone()
	a.mu.Unlock()

	a.persist(ctx, tokens)
}

// tokenResponse is the token endpoint payload
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    *int64 `json:"expires_in"`
	TokenType    string `json:"token_type"`
	IDToken      string `json:"id_token"`
}

// tokenRequest posts a form to the token endpoint. Every failure is reported
// as an AuthError of the given kind.
func (a *Authenticator) tokenRequest(ctx context.Context, kind AuthErrorKind, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.TokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &AuthError{Kind: kind, Err: fmt.Errorf("failed to create token request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &AuthError{Kind: kind, Err: fmt.Errorf("token request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthError{Kind: kind, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read token response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &AuthError{Kind: kind, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, &AuthError{Kind: kind, StatusCode: resp.StatusCode, Body: string(body), Err: fmt.Errorf("failed to parse token response: %w", err)}
	}
	if token.AccessToken == "" {
		return nil, &AuthError{Kind: kind, StatusCode: resp.StatusCode, Body: string(body), Err: fmt.Errorf("token response has no access_token")}
	}

	return &token, nil
}

// apply stores a token response and returns the resulting snapshot.
// keepRefresh retains the current refresh token when none is returned.
func (a *Authenticator) apply(resp *tokenResponse, keepRefresh bool) Tokens {
	now := a.now()

	expiresIn := int64(defaultExpiresIn)
	if resp.ExpiresIn != nil {
		expiresIn = *resp.ExpiresIn
	}
	expiresAt := now.Add(time.Duration(expiresIn) * time.Second)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.tokens.AccessToken = resp.AccessToken
	if resp.RefreshToken != "" || !keepRefresh {
		a.tokens.RefreshToken = resp.RefreshToken
	}
	a.tokens.ExpiresAt = &expiresAt
	if a.tokens.CreatedAt.IsZero() {
		a.tokens.CreatedAt = now
	}
	a.tokens.UpdatedAt = now

	return a.tokens.clone()
}

// persist saves tokens when storage is configured
func (a *Authenticator) persist(ctx context.Context, tokens Tokens) {
	if a.storage == nil {
		return
	}
	if err := a.storage.SaveTokens(ctx, &tokens); err != nil {
		// Log error but don't fail - the token set is still valid in memory
		a.logger.Warn("Failed to save tokens to storage", "error", err)
	}
}
