package logging

import (
	"context"
	"log/slog"
	"time"

	"shelfy/internal/vitesy"
)

// ClientLogger wraps a vitesy.API and logs all method calls.
// Reads are logged at debug level since the poller issues them constantly.
type ClientLogger struct {
	api    vitesy.API
	logger *slog.Logger
}

// NewClientLogger creates a new logging decorator for the vendor API
func NewClientLogger(api vitesy.API, logger *slog.Logger) vitesy.API {
	return &ClientLogger{
		api:    api,
		logger: logger.With("interface", "VitesyAPI"),
	}
}

func (l *ClientLogger) GetDevices(ctx context.Context) ([]vitesy.Device, error) {
	start := time.Now()
	l.logger.Debug("GetDevices called")

	devices, err := l.api.GetDevices(ctx)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("GetDevices failed",
			"duration", duration,
			"error", err)
		return nil, err
	}

	l.logger.Debug("GetDevices completed",
		"devices", len(devices),
		"duration", duration)

	return devices, nil
}

func (l *ClientLogger) GetMeasurements(ctx context.Context, deviceID string) ([]vitesy.Measurement, error) {
	start := time.Now()
	l.logger.Debug("GetMeasurements called",
		"device_id", deviceID)

	measurements, err := l.api.GetMeasurements(ctx, deviceID)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("GetMeasurements failed",
			"device_id", deviceID,
			"duration", duration,
			"error", err)
		return nil, err
	}

	l.logger.Debug("GetMeasurements completed",
		"device_id", deviceID,
		"measurements", len(measurements),
		"duration", duration)

	return measurements, nil
}

func (l *ClientLogger) GetMaintenance(ctx context.Context, deviceID string) (vitesy.Maintenance, error) {
	start := time.Now()
	l.logger.Debug("GetMaintenance called",
		"device_id", deviceID)

	maintenance, err := l.api.GetMaintenance(ctx, deviceID)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("GetMaintenance failed",
			"device_id", deviceID,
			"duration", duration,
			"error", err)
		return nil, err
	}

	l.logger.Debug("GetMaintenance completed",
		"device_id", deviceID,
		"items", len(maintenance),
		"duration", duration)

	return maintenance, nil
}

func (l *ClientLogger) GetPrograms(ctx context.Context, deviceType, firmwareVersion string) ([]vitesy.Program, error) {
	start := time.Now()
	l.logger.Debug("GetPrograms called",
		"device_type", deviceType,
		"firmware_version", firmwareVersion)

	programs, err := l.api.GetPrograms(ctx, deviceType, firmwareVersion)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("GetPrograms failed",
			"device_type", deviceType,
			"firmware_version", firmwareVersion,
			"duration", duration,
			"error", err)
		return nil, err
	}

	l.logger.Debug("GetPrograms completed",
		"device_type", deviceType,
		"programs", len(programs),
		"duration", duration)

	return programs, nil
}

func (l *ClientLogger) ResetFilter(ctx context.Context, deviceID string) (*vitesy.ResetResult, error) {
	return l.reset(ctx, "ResetFilter", deviceID, l.api.ResetFilter)
}

func (l *ClientLogger) ResetFridge(ctx context.Context, deviceID string) (*vitesy.ResetResult, error) {
	return l.reset(ctx, "ResetFridge", deviceID, l.api.ResetFridge)
}

func (l *ClientLogger) reset(ctx context.Context, method, deviceID string, call func(context.Context, string) (*vitesy.ResetResult, error)) (*vitesy.ResetResult, error) {
	start := time.Now()
	l.logger.Info(method+" called",
		"device_id", deviceID)

	result, err := call(ctx, deviceID)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error(method+" failed",
			"device_id", deviceID,
			"duration", duration,
			"error", err)
		return nil, err
	}

	l.logger.Info(method+" completed",
		"device_id", deviceID,
		"status_code", result.StatusCode,
		"duration", duration)

	return result, nil
}

func (l *ClientLogger) GetOrCreateAPIKey(ctx context.Context) (string, error) {
	start := time.Now()
	l.logger.Debug("GetOrCreateAPIKey called")

	apiKey, err := l.api.GetOrCreateAPIKey(ctx)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("GetOrCreateAPIKey failed",
			"duration", duration,
			"error", err)
		return "", err
	}

	// The key itself is a secret
	l.logger.Debug("GetOrCreateAPIKey completed",
		"duration", duration)

	return apiKey, nil
}
