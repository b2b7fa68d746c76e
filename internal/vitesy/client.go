package vitesy

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

const (
	devicesQuery = "user_id=me&connected_once=true&expand=all%2C-place"

	// missingAPIKeyMessage is how the vendor says no key was provisioned yet
	missingAPIKeyMessage = "User does not have ApiKey"

	mobileUserAgent = "VitesyHub/5.3.10 (Android; HomeAssistant)"
)

// API is the set of vendor operations used by the poller and the buttons
type API interface {
	GetDevices(ctx context.Context) ([]Device, error)
	GetMeasurements(ctx context.Context, deviceID string) ([]Measurement, error)
	GetMaintenance(ctx context.Context, deviceID string) (Maintenance, error)
	GetPrograms(ctx context.Context, deviceType, firmwareVersion string) ([]Program, error)
	ResetFilter(ctx context.Context, deviceID string) (*ResetResult, error)
	ResetFridge(ctx context.Context, deviceID string) (*ResetResult, error)
	GetOrCreateAPIKey(ctx context.Context) (string, error)
}

// Client calls the vendor REST API with the Authenticator's bearer token
type Client struct {
	auth       *Authenticator
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.RWMutex
	apiKey string
}

var _ API = (*Client)(nil)

// NewClient creates a Client. A nil httpClient gets a 30 second timeout.
func NewClient(auth *Authenticator, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		auth:       auth,
		baseURL:    auth.Config().APIBaseURL,
		httpClient: httpClient,
		logger:     logger.With("component", "vitesy.client"),
		apiKey:     auth.Tokens().APIKey,
	}
}

// GetDevices lists every device the account has ever connected
func (c *Client) GetDevices(ctx context.Context) ([]Device, error) {
	var devices []Device
	if err := c.getJSON(ctx, "/devices?"+devicesQuery, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// GetMeasurements returns the latest measurement of a device
func (c *Client) GetMeasurements(ctx context.Context, deviceID string) ([]Measurement, error) {
	path := fmt.Sprintf("/measurements?device_id=%s&latest=true", EscapeID(deviceID))

	var raw json.RawMessage
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return nil, err
	}
	return decodeMeasurements(raw)
}

// GetMaintenance returns the maintenance schedule of a device
func (c *Client) GetMaintenance(ctx context.Context, deviceID string) (Maintenance, error) {
	var maintenance Maintenance
	if err := c.getJSON(ctx, "/devices/"+EscapeID(deviceID)+"/maintenance", &maintenance); err != nil {
		return nil, err
	}
	return maintenance, nil
}

// GetPrograms returns the program catalogue for a device type and firmware
func (c *Client) GetPrograms(ctx context.Context, deviceType, firmwareVersion string) ([]Program, error) {
	query := url.Values{
		"device_type":      {deviceType},
		"firmware_version": {firmwareVersion},
	}

	var programs []Program
	if err := c.getJSON(ctx, "/programs/?"+query.Encode(), &programs); err != nil {
		return nil, err
	}
	return programs, nil
}

// ResetFilter marks the filter as washed, restarting its maintenance period
func (c *Client) ResetFilter(ctx context.Context, deviceID string) (*ResetResult, error) {
	return c.resetMaintenance(ctx, deviceID, "filter")
}

// ResetFridge marks the fridge as cleaned, restarting its maintenance period
func (c *Client) ResetFridge(ctx context.Context, deviceID string) (*ResetResult, error) {
	return c.resetMaintenance(ctx, deviceID, "fridge")
}

// resetMaintenance posts an empty body with the headers of the mobile app
func (c *Client) resetMaintenance(ctx context.Context, deviceID, task string) (*ResetResult, error) {
	path := fmt.Sprintf("/devices/%s/maintenance/%s/done", EscapeID(deviceID), task)

	req, err := c.newRequest(ctx, http.MethodPost, path)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Language", "it-IT")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", mobileUserAgent)
	req.Header.Set("Connection", "Keep-Alive")

	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(req, status, body); err != nil {
		return nil, err
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return &ResetResult{StatusCode: status, Text: string(body)}, nil
	}
	return &ResetResult{Data: data}, nil
}

// GetOrCreateAPIKey returns the account api key, provisioning one when the
// account has none yet. The key is cached for the life of the session.
func (c *Client) GetOrCreateAPIKey(ctx context.Context) (string, error) {
	c.mu.RLock()
	cached := c.apiKey
	c.mu.RUnlock()
	if cached != "" {
		return cached, nil
	}

	// Try GET first
	data, err := c.apiKeyRequest(ctx, http.MethodGet)
	if err != nil {
		return "", err
	}
	if data.hasKey {
		return c.storeAPIKey(ctx, data.key()), nil
	}

	if data.errorMessage() != missingAPIKeyMessage {
		return "", &AuthError{Kind: KindAPIKeyProvisioningFailed, Err: fmt.Errorf("unexpected api key response: %s", data.raw)}
	}

	c.logger.Info("Account has no api key, creating one")
	created, err := c.apiKeyRequest(ctx, http.MethodPost)
	if err != nil {
		return "", err
	}
	if !created.hasKey {
		return "", &AuthError{Kind: KindAPIKeyProvisioningFailed, Err: fmt.Errorf("failed to create api key: %s", created.raw)}
	}
	return c.storeAPIKey(ctx, created.key()), nil
}

type apiKeyResult struct {
	apiKeyResponse
	raw string
	// hasKey is set when the body carries an apiKey field, even a null one
	hasKey bool
}

// apiKeyRequest calls /users/me/api-key. The status is not checked: the
// vendor reports a missing key as an error body.
func (c *Client) apiKeyRequest(ctx context.Context, method string) (*apiKeyResult, error) {
	req, err := c.newRequest(ctx, method, "/users/me/api-key")
	if err != nil {
		return nil, err
	}

	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	result := &apiKeyResult{raw: string(body)}
	if err := json.Unmarshal(body, &result.apiKeyResponse); err != nil {
		return nil, &AuthError{Kind: KindAPIKeyProvisioningFailed, StatusCode: status, Body: string(body), Err: fmt.Errorf("failed to parse api key response: %w", err)}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err == nil {
		_, result.hasKey = fields["apiKey"]
	}
	return result, nil
}

func (c *Client) storeAPIKey(ctx context.Context, apiKey string) string {
	c.mu.Lock()
	c.apiKey = apiKey
	c.mu.Unlock()

	c.auth.SetAPIKey(ctx, apiKey)
	return apiKey
}

// getJSON performs an authorized GET and decodes a 2xx body into out
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path)
	if err != nil {
		return err
	}

	status, body, err := c.do(req)
	if err != nil {
		return err
	}
	if err := checkStatus(req, status, body); err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", req.URL.Path, err)
	}
	return nil
}

// newRequest creates a request with a freshly validated bearer token
func (c *Client) newRequest(ctx context.Context, method, path string) (*http.Request, error) {
	token, err := c.auth.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	return req, nil
}

// do sends req and returns the status and the decoded body
func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	// Setting Accept-Encoding by hand disables the transport's gunzip
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return resp.StatusCode, nil, fmt.Errorf("failed to open gzip response: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, body, nil
}

func checkStatus(req *http.Request, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	return &HTTPError{
		Method:     req.Method,
		URL:        req.URL.Path,
		StatusCode: status,
		Body:       string(body),
	}
}

// decodeMeasurements accepts a list of measurements or a single object
func decodeMeasurements(raw json.RawMessage) ([]Measurement, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var list []Measurement
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("failed to parse measurements: %w", err)
		}
		return list, nil
	}

	var single Measurement
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, fmt.Errorf("failed to parse measurement: %w", err)
	}
	return []Measurement{single}, nil
}

// EscapeID percent-encodes a device id for use in a path or query,
// including the colons of MAC-style ids.
func EscapeID(id string) string {
	return strings.ReplaceAll(url.QueryEscape(id), "+", "%20")
}
