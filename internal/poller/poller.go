package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"shelfy/internal/idgen"
	"shelfy/internal/vitesy"
)

// DefaultInterval is the time between two polls
const DefaultInterval = 300 * time.Second

// Snapshot is the device state published after each poll
type Snapshot struct {
	Devices   []vitesy.Device `json:"devices"`
	UpdatedAt time.Time       `json:"updated_at"`
	Available bool            `json:"available"`
	LastError string          `json:"last_error,omitempty"`
	CycleID   string          `json:"cycle_id,omitempty"`
}

// Listener is called with every new snapshot
type Listener func(Snapshot)

// Poller fetches the device snapshot periodically
type Poller struct {
	api      vitesy.API
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []Listener
}

// NewPoller creates a new poller
func NewPoller(api vitesy.API, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		api:      api,
		interval: interval,
		stopChan: make(chan struct{}),
		logger:   logger.With("component", "poller"),
		now:      time.Now,
	}
}

// OnUpdate registers a listener for new snapshots
func (p *Poller) OnUpdate(listener Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, listener)
}

// Snapshot returns the latest snapshot
func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshot
}

// Start begins the poll loop. It blocks until Stop is called.
func (p *Poller) Start() {
	p.logger.Info("Poller started", "interval", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.tick()
		case <-p.stopChan:
			p.logger.Info("Poller stopped")
			return
		}
	}
}

// Stop stops the poll loop
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})
}

// tick performs one poll bounded by the interval
func (p *Poller) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval)
	defer cancel()

	if err := p.Refresh(ctx); err != nil {
		p.logger.Error("Poll failed", "error", err)
	}
}

// Refresh runs one poll cycle and publishes the result. When the device list
// cannot be fetched the previous devices are kept and marked unavailable.
func (p *Poller) Refresh(ctx context.Context) error {
	cycleID := idgen.NewCycle()
	logger := p.logger.With("cycle_id", cycleID)
	start := p.now()

	// The api key is best effort: devices are still useful without it
	apiKey, err := p.api.GetOrCreateAPIKey(ctx)
	if err != nil {
		logger.Warn("Failed to get api key", "error", err)
	}

	devices, err := p.api.GetDevices(ctx)
	if err != nil {
		p.publish(func(s *Snapshot) {
			s.Available = false
			s.LastError = err.Error()
			s.CycleID = cycleID
		})
		return err
	}

	for i := range devices {
		p.enrich(ctx, logger, &devices[i], apiKey)
	}

	p.publish(func(s *Snapshot) {
		s.Devices = devices
		s.UpdatedAt = p.now()
		s.Available = true
		s.LastError = ""
		s.CycleID = cycleID
	})

	logger.Info("Poll completed",
		"devices", len(devices),
		"duration_ms", p.now().Sub(start).Milliseconds())
	return nil
}

// enrich adds the latest measurement, the maintenance schedule and the
// program catalogue. A failing call leaves what the device list returned.
func (p *Poller) enrich(ctx context.Context, logger *slog.Logger, device *vitesy.Device, apiKey string) {
	logger = logger.With("device_id", device.ID)

	if apiKey != "" {
		key := apiKey
		device.APIKey = &key
	}

	if measurements, err := p.api.GetMeasurements(ctx, device.ID); err != nil {
		logger.Warn("Failed to get measurements", "error", err)
	} else if len(measurements) > 0 {
		device.Measurements = measurements
	}

	if maintenance, err := p.api.GetMaintenance(ctx, device.ID); err != nil {
		logger.Warn("Failed to get maintenance", "error", err)
	} else if len(maintenance) > 0 {
		device.Maintenance = maintenance
	}

	if device.FirmwareVersion == nil || *device.FirmwareVersion == "" {
		return
	}
	if programs, err := p.api.GetPrograms(ctx, device.Type, *device.FirmwareVersion); err != nil {
		logger.Warn("Failed to get programs", "error", err)
	} else if len(programs) > 0 {
		device.Programs = programs
	}
}

// publish applies update to the snapshot and notifies the listeners
func (p *Poller) publish(update func(*Snapshot)) {
	p.mu.Lock()
	update(&p.snapshot)
	snapshot := p.snapshot
	listeners := make([]Listener, len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()

	for _, listener := range listeners {
		listener(snapshot)
	}
}
