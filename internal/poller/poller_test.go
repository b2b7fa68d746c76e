package poller

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"shelfy/internal/vitesy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock implementation

type mockAPI struct {
	mu sync.Mutex

	devices         []vitesy.Device
	devicesErr      error
	apiKey          string
	apiKeyErr       error
	measurements    map[string][]vitesy.Measurement
	measurementsErr error
	maintenance     map[string]vitesy.Maintenance
	programs        []vitesy.Program
	programCalls    []string
	deviceCalls     int
}

func (m *mockAPI) GetDevices(ctx context.Context) ([]vitesy.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deviceCalls++
	if m.devicesErr != nil {
		return nil, m.devicesErr
	}
	// Return a copy so enrichment does not leak into the fixture
	devices := make([]vitesy.Device, len(m.devices))
	copy(devices, m.devices)
	return devices, nil
}

func (m *mockAPI) GetMeasurements(ctx context.Context, deviceID string) ([]vitesy.Measurement, error) {
	if m.measurementsErr != nil {
		return nil, m.measurementsErr
	}
	return m.measurements[deviceID], nil
}

func (m *mockAPI) GetMaintenance(ctx context.Context, deviceID string) (vitesy.Maintenance, error) {
	return m.maintenance[deviceID], nil
}

func (m *mockAPI) GetPrograms(ctx context.Context, deviceType, firmwareVersion string) ([]vitesy.Program, error) {
	m.mu.Lock()
	m.programCalls = append(m.programCalls, deviceType+"@"+firmwareVersion)
	m.mu.Unlock()
	return m.programs, nil
}

func (m *mockAPI) ResetFilter(ctx context.Context, deviceID string) (*vitesy.ResetResult, error) {
	return &vitesy.ResetResult{}, nil
}

func (m *mockAPI) ResetFridge(ctx context.Context, deviceID string) (*vitesy.ResetResult, error) {
	return &vitesy.ResetResult{}, nil
}

func (m *mockAPI) GetOrCreateAPIKey(ctx context.Context) (string, error) {
	return m.apiKey, m.apiKeyErr
}

func strPtr(s string) *string {
	return &s
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newMockAPI() *mockAPI {
	score := 0.9
	return &mockAPI{
		apiKey: "key-1",
		devices: []vitesy.Device{
			{ID: "AA:BB", Type: "SHELFY", FirmwareVersion: strPtr("1.0.0")},
			{ID: "CC:DD", Type: "NATEDE"},
		},
		measurements: map[string][]vitesy.Measurement{
			"AA:BB": {{Score: &score}},
		},
		maintenance: map[string]vitesy.Maintenance{
			"AA:BB": {"filter": {DueDate: strPtr("2025-04-01T00:00:00Z")}},
		},
		programs: []vitesy.Program{{ID: "eco-s0"}},
	}
}

func TestPoller_Refresh(t *testing.T) {
	api := newMockAPI()
	poller := NewPoller(api, time.Minute, testLogger())

	require.NoError(t, poller.Refresh(context.Background()))

	snapshot := poller.Snapshot()
	assert.True(t, snapshot.Available)
	assert.Empty(t, snapshot.LastError)
	assert.True(t, strings.HasPrefix(snapshot.CycleID, "cycle_"))
	assert.False(t, snapshot.UpdatedAt.IsZero())
	require.Len(t, snapshot.Devices, 2)

	shelfy := snapshot.Devices[0]
	require.NotNil(t, shelfy.APIKey)
	assert.Equal(t, "key-1", *shelfy.APIKey)
	require.Len(t, shelfy.Measurements, 1)
	assert.Contains(t, shelfy.Maintenance, "filter")
	assert.Len(t, shelfy.Programs, 1)

	natede := snapshot.Devices[1]
	assert.Empty(t, natede.Measurements)
	assert.Empty(t, natede.Programs)

	// Programs are only fetched for devices reporting a firmware version
	assert.Equal(t, []string{"SHELFY@1.0.0"}, api.programCalls)
}

func TestPoller_Refresh_APIKeyFailureIsNotFatal(t *testing.T) {
	api := newMockAPI()
	api.apiKey = ""
	api.apiKeyErr = errors.New("api key unavailable")
	poller := NewPoller(api, time.Minute, testLogger())

	require.NoError(t, poller.Refresh(context.Background()))

	snapshot := poller.Snapshot()
	assert.True(t, snapshot.Available)
	assert.Nil(t, snapshot.Devices[0].APIKey)
}

func TestPoller_Refresh_EnrichmentFailureKeepsDevice(t *testing.T) {
	api := newMockAPI()
	existing := 0.1
	api.devices[0].Measurements = []vitesy.Measurement{{Score: &existing}}
	api.measurementsErr = errors.New("timeout")
	poller := NewPoller(api, time.Minute, testLogger())

	require.NoError(t, poller.Refresh(context.Background()))

	device := poller.Snapshot().Devices[0]
	require.Len(t, device.Measurements, 1)
	assert.Equal(t, 0.1, *device.Measurements[0].Score)
}

func TestPoller_Refresh_DevicesFailureKeepsPreviousDevices(t *testing.T) {
	api := newMockAPI()
	poller := NewPoller(api, time.Minute, testLogger())
	require.NoError(t, poller.Refresh(context.Background()))

	api.mu.Lock()
	api.devicesErr = errors.New("503 service unavailable")
	api.mu.Unlock()

	err := poller.Refresh(context.Background())
	require.Error(t, err)

	snapshot := poller.Snapshot()
	assert.False(t, snapshot.Available)
	assert.Equal(t, "503 service unavailable", snapshot.LastError)
	assert.Len(t, snapshot.Devices, 2)
}

func TestPoller_OnUpdate(t *testing.T) {
	api := newMockAPI()
	poller := NewPoller(api, time.Minute, testLogger())

	var received []Snapshot
	poller.OnUpdate(func(s Snapshot) {
		received = append(received, s)
	})

	require.NoError(t, poller.Refresh(context.Background()))
	api.devicesErr = errors.New("down")
	require.Error(t, poller.Refresh(context.Background()))

	require.Len(t, received, 2)
	assert.True(t, received[0].Available)
	assert.False(t, received[1].Available)
	assert.NotEqual(t, received[0].CycleID, received[1].CycleID)
}

func TestPoller_StartStop(t *testing.T) {
	api := newMockAPI()
	poller := NewPoller(api, 10*time.Millisecond, testLogger())

	done := make(chan struct{})
	go func() {
		poller.Start()
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return poller.Snapshot().Available
	}, time.Second, 5*time.Millisecond)

	poller.Stop()
	poller.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestNewPoller_DefaultInterval(t *testing.T) {
	poller := NewPoller(newMockAPI(), 0, nil)
	assert.Equal(t, DefaultInterval, poller.interval)
}
