package vitesy

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient returns a client with a valid access token "T" against handler
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *Authenticator) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	auth := newTestAuthenticator(server.URL)
	expires := time.Now().Add(time.Hour)
	auth.Restore(Tokens{AccessToken: "T", RefreshToken: "R", ExpiresAt: &expires})

	return NewClient(auth, server.Client(), nil), auth
}

func TestEscapeID(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{id: "AA:BB:CC", want: "AA%3ABB%3ACC"},
		{id: "plain", want: "plain"},
		{id: "a b/c", want: "a%20b%2Fc"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, EscapeID(tt.id))
		})
	}
}

func TestClient_GetDevices(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/devices", r.URL.Path)
		assert.Equal(t, "user_id=me&connected_once=true&expand=all%2C-place", r.URL.RawQuery)
		assert.Equal(t, "Bearer T", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.Write([]byte(`[{"id":"AA:BB:CC:DD:EE:FF","type":"SHELFY","firmware_version":"1.2.0","battery":{"level":87,"charging":false}}]`))
	})

	devices, err := client.GetDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)

	device := devices[0]
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", device.ID)
	assert.Equal(t, "SHELFY", device.Type)
	require.NotNil(t, device.FirmwareVersion)
	assert.Equal(t, "1.2.0", *device.FirmwareVersion)
	require.NotNil(t, device.Battery)
	require.NotNil(t, device.Battery.Level)
	assert.Equal(t, 87.0, *device.Battery.Level)
	assert.Nil(t, device.Model)
}

func TestClient_GetDevices_HTTPError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"boom"}`))
	})

	_, err := client.GetDevices(context.Background())
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	assert.Equal(t, http.MethodGet, httpErr.Method)
	assert.Equal(t, `{"message":"boom"}`, httpErr.Body)
}

func TestClient_GetMeasurements_EscapesID(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/measurements", r.URL.Path)
		assert.Equal(t, "device_id=AA%3ABB%3ACC&latest=true", r.URL.RawQuery)

		w.Write([]byte(`[{"id":"m1","score":0.87,"timestamp":"2025-03-01T10:00:00Z","sensors_data":[{"id":"TMP01-SY","value":{"avg":4.5}}]}]`))
	})

	measurements, err := client.GetMeasurements(context.Background(), "AA:BB:CC")
	require.NoError(t, err)
	require.Len(t, measurements, 1)
	require.NotNil(t, measurements[0].Score)
	assert.Equal(t, 0.87, *measurements[0].Score)
	require.Len(t, measurements[0].SensorsData, 1)
	assert.Equal(t, "TMP01-SY", measurements[0].SensorsData[0].ID)
}

func TestClient_GetMeasurements_SingleObject(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"m1","score":0.5}`))
	})

	measurements, err := client.GetMeasurements(context.Background(), "AA:BB:CC")
	require.NoError(t, err)
	require.Len(t, measurements, 1)
	assert.Equal(t, "m1", *measurements[0].ID)
}

func TestClient_GetMaintenance_EscapesID(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/devices/AA%3ABB%3ACC/maintenance", r.URL.EscapedPath())

		w.Write([]byte(`{"filter":{"due_date":"2025-04-01T00:00:00Z"},"fridge":{"due_date":null}}`))
	})

	maintenance, err := client.GetMaintenance(context.Background(), "AA:BB:CC")
	require.NoError(t, err)
	require.Contains(t, maintenance, "filter")

	due, ok := maintenance["filter"].Due()
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), due)

	_, ok = maintenance["fridge"].Due()
	assert.False(t, ok)
}

func TestClient_GetPrograms(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/programs/", r.URL.Path)
		assert.Equal(t, "NATEDE", r.URL.Query().Get("device_type"))
		assert.Equal(t, "2.0.1", r.URL.Query().Get("firmware_version"))

		w.Write([]byte(`[{"id":"boost-s0","name":"Boost","metadata":{"fan":3,"power":"high"}}]`))
	})

	programs, err := client.GetPrograms(context.Background(), "NATEDE", "2.0.1")
	require.NoError(t, err)
	require.Len(t, programs, 1)
	assert.Equal(t, "boost-s0", programs[0].ID)
	require.NotNil(t, programs[0].Metadata)
	assert.Equal(t, 3.0, programs[0].Metadata.Fan)
	assert.Equal(t, "high", programs[0].Metadata.Power)
}

func TestClient_ResetFilter_GzipJSON(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/devices/AA%3ABB%3ACC/maintenance/filter/done", r.URL.EscapedPath())
		assert.Equal(t, "it-IT", r.Header.Get("Accept-Language"))
		assert.Equal(t, "gzip", r.Header.Get("Accept-Encoding"))
		assert.Equal(t, "VitesyHub/5.3.10 (Android; HomeAssistant)", r.Header.Get("User-Agent"))
		assert.Equal(t, "Bearer T", r.Header.Get("Authorization"))

		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		gz.Write([]byte(`{"due_date":"2025-05-01T00:00:00Z"}`))
		gz.Close()

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Content-Type", "application/json")
		w.Write(buf.Bytes())
	})

	result, err := client.ResetFilter(context.Background(), "AA:BB:CC")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"due_date": "2025-05-01T00:00:00Z"}, result.Data)
	assert.Empty(t, result.Text)
}

func TestClient_ResetFridge_TextFallback(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/devices/AA%3ABB%3ACC/maintenance/fridge/done", r.URL.EscapedPath())
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("OK"))
	})

	result, err := client.ResetFridge(context.Background(), "AA:BB:CC")
	require.NoError(t, err)
	assert.Nil(t, result.Data)
	assert.Equal(t, http.StatusAccepted, result.StatusCode)
	assert.Equal(t, "OK", result.Text)
}

func TestClient_ResetFilter_HTTPError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("device not found"))
	})

	_, err := client.ResetFilter(context.Background(), "AA:BB:CC")
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
}

func TestClient_GetOrCreateAPIKey_Existing(t *testing.T) {
	var posts atomic.Int32
	client, auth := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me/api-key", r.URL.Path)
		if r.Method == http.MethodPost {
			posts.Add(1)
		}
		w.Write([]byte(`{"apiKey":"k1"}`))
	})

	key, err := client.GetOrCreateAPIKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "k1", key)
	assert.Equal(t, int32(0), posts.Load())
	assert.Equal(t, "k1", auth.Tokens().APIKey)
}

func TestClient_GetOrCreateAPIKey_NullKey(t *testing.T) {
	var posts atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts.Add(1)
		}
		w.Write([]byte(`{"apiKey":null}`))
	})

	key, err := client.GetOrCreateAPIKey(context.Background())
	require.NoError(t, err)
	assert.Empty(t, key)
	assert.Equal(t, int32(0), posts.Load())
}

func TestClient_GetOrCreateAPIKey_Creates(t *testing.T) {
	var posts atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer T", r.Header.Get("Authorization"))
		if r.Method == http.MethodPost {
			posts.Add(1)
			w.Write([]byte(`{"apiKey":"k2"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"User does not have ApiKey"}}`))
	})

	key, err := client.GetOrCreateAPIKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "k2", key)
	assert.Equal(t, int32(1), posts.Load())
}

func TestClient_GetOrCreateAPIKey_Failures(t *testing.T) {
	tests := []struct {
		name string
		get  string
		post string
	}{
		{name: "other error", get: `{"error":{"message":"Forbidden"}}`},
		{name: "string error", get: `{"error":"Forbidden"}`},
		{name: "empty object", get: `{}`},
		{name: "not json", get: `<html></html>`},
		{name: "create returns no key", get: `{"error":{"message":"User does not have ApiKey"}}`, post: `{"error":{"message":"quota"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodPost {
					w.Write([]byte(tt.post))
					return
				}
				w.Write([]byte(tt.get))
			})

			_, err := client.GetOrCreateAPIKey(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrAPIKeyProvisioningFailed))
		})
	}
}

func TestClient_GetOrCreateAPIKey_Cached(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"apiKey":"k1"}`))
	})

	for i := 0; i < 3; i++ {
		key, err := client.GetOrCreateAPIKey(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "k1", key)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_RefreshesExpiredTokenBeforeRequest(t *testing.T) {
	var refreshes atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/token":
			refreshes.Add(1)
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			w.Write([]byte(`{"access_token":"fresh","expires_in":3600}`))
		case "/devices":
			assert.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
			w.Write([]byte(`[]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	auth := newTestAuthenticator(server.URL)
	expired := time.Now().Add(-time.Minute)
	auth.Restore(Tokens{AccessToken: "stale", RefreshToken: "R", ExpiresAt: &expired})
	client := NewClient(auth, server.Client(), nil)

	devices, err := client.GetDevices(context.Background())
	require.NoError(t, err)
	assert.Empty(t, devices)
	assert.Equal(t, int32(1), refreshes.Load())
}

func TestClient_RefreshFailureStopsRequest(t *testing.T) {
	var dataCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth2/token" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		dataCalls.Add(1)
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	auth := newTestAuthenticator(server.URL)
	expired := time.Now().Add(-time.Minute)
	auth.Restore(Tokens{AccessToken: "stale", RefreshToken: "R", ExpiresAt: &expired})
	client := NewClient(auth, server.Client(), nil)

	_, err := client.GetDevices(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTokenRefreshFailed))
	assert.Equal(t, int32(0), dataCalls.Load())
}
