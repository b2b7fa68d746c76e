package vitesy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"
)

const (
	csrfCookieName = "XSRF-TOKEN"
	maxRedirects   = 10
)

// AuthorizationURL builds the login page URL carrying the PKCE challenge
func (a *Authenticator) AuthorizationURL(state, nonce string) string {
	oauthConfig := oauth2.Config{
		ClientID:    a.config.ClientID,
		RedirectURL: a.config.RedirectURI,
		Scopes:      []string{a.config.Scope},
		Endpoint: oauth2.Endpoint{
			AuthURL:  a.config.LoginURL(),
			TokenURL: a.config.TokenURL(),
		},
	}

	return oauthConfig.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("code_challenge", a.pkce.Challenge),
		oauth2.SetAuthURLParam("code_challenge_method", a.pkce.Method),
	)
}

// authorizationCode loads the login form, posts the credentials with the
// CSRF token from the form's cookie and captures the code from the redirect.
func (a *Authenticator) authorizationCode(ctx context.Context) (string, error) {
	state, err := randomHex(stateBytes)
	if err != nil {
		return "", &AuthError{Kind: KindLoginFailed, Err: err}
	}
	nonce, err := randomHex(stateBytes)
	if err != nil {
		return "", &AuthError{Kind: KindLoginFailed, Err: err}
	}

	authURL := a.AuthorizationURL(state, nonce)
	client, err := a.loginClient()
	if err != nil {
		return "", &AuthError{Kind: KindLoginFailed, Err: err}
	}

	// Step 1: GET the login page to obtain the CSRF cookie
	csrfToken, err := a.fetchCSRFToken(ctx, client, authURL)
	if err != nil {
		return "", err
	}

	// Step 2: POST the credentials without following the redirect
	form := url.Values{
		"_csrf":    {csrfToken},
		"username": {a.config.Email},
		"password": {a.config.Password},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &AuthError{Kind: KindLoginFailed, Err: fmt.Errorf("failed to create login request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", authURL)

	resp, err := client.Do(req)
	if err != nil {
		return "", &AuthError{Kind: KindLoginFailed, Err: fmt.Errorf("login request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	// Step 3: the code travels in the redirect target
	if code, ok := extractCode(resp.Header.Get("Location")); ok {
		return code, nil
	}

	return "", &AuthError{Kind: KindLoginFailed, StatusCode: resp.StatusCode, Body: string(body)}
}

// fetchCSRFToken issues the login page GET and reads the XSRF-TOKEN cookie
func (a *Authenticator) fetchCSRFToken(ctx context.Context, client *http.Client, authURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, authURL, nil)
	if err != nil {
		return "", &AuthError{Kind: KindCSRFMissing, Err: fmt.Errorf("failed to create login page request: %w", err)}
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", &AuthError{Kind: KindCSRFMissing, Err: fmt.Errorf("login page request failed: %w", err)}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	// The page may redirect, so look at both the requested and the final URL
	candidates := []*url.URL{req.URL}
	if resp.Request != nil && resp.Request.URL != nil {
		candidates = append(candidates, resp.Request.URL)
	}
	for _, u := range candidates {
		for _, cookie := range client.Jar.Cookies(u) {
			if cookie.Name == csrfCookieName {
				return cookie.Value, nil
			}
		}
	}

	a.logger.Error("CSRF token not found in cookies", "status", resp.StatusCode)
	return "", &AuthError{Kind: KindCSRFMissing, StatusCode: resp.StatusCode}
}

// loginClient returns a client with its own cookie jar that follows GET
// redirects but stops at the redirect answering the credentials POST.
func (a *Authenticator) loginClient() (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &http.Client{
		Transport: a.httpClient.Transport,
		Timeout:   a.httpClient.Timeout,
		Jar:       jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if via[0].Method == http.MethodPost {
				return http.ErrUseLastResponse
			}
			if len(via) >= maxRedirects {
				return errors.New("stopped after 10 redirects")
			}
			return nil
		},
	}, nil
}

// extractCode returns the text between the first "code=" and the next "&"
func extractCode(location string) (string, bool) {
	_, rest, found := strings.Cut(location, "code=")
	if !found {
		return "", false
	}
	code, _, _ := strings.Cut(rest, "&")
	return code, code != ""
}
