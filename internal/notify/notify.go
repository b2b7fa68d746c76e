package notify

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"shelfy/internal/entities"
	"shelfy/internal/poller"
	"shelfy/internal/vitesy"
)

// Sender delivers a text message
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Marker records sent alerts. MarkNotified returns false when the alert was
// already recorded.
type Marker interface {
	MarkNotified(ctx context.Context, deviceID, item string, dueDate time.Time) (bool, error)
}

// Notifier sends an alert when a maintenance item becomes due
type Notifier struct {
	sender Sender
	marker Marker
	logger *slog.Logger
	now    func() time.Time
}

// NewNotifier creates a new notifier. A nil marker keeps the sent alerts in
// memory only.
func NewNotifier(sender Sender, marker Marker, logger *slog.Logger) *Notifier {
	if marker == nil {
		marker = newMemoryMarker()
	}
	return &Notifier{
		sender: sender,
		marker: marker,
		logger: logger.With("component", "notifier"),
		now:    time.Now,
	}
}

// HandleSnapshot checks a poller snapshot. It is meant to be registered with
// poller.OnUpdate.
func (n *Notifier) HandleSnapshot(snapshot poller.Snapshot) {
	if !snapshot.Available {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sent, err := n.Check(ctx, snapshot.Devices)
	if err != nil {
		n.logger.Error("Maintenance check failed",
			"cycle_id", snapshot.CycleID,
			"error", err)
		return
	}
	if sent > 0 {
		n.logger.Info("Maintenance alerts sent",
			"cycle_id", snapshot.CycleID,
			"count", sent)
	}
}

// Check sends one alert per due maintenance item not alerted before and
// returns how many were sent. A failed send is logged and skipped.
func (n *Notifier) Check(ctx context.Context, devices []vitesy.Device) (int, error) {
	now := n.now()
	sent := 0

	for _, device := range devices {
		for _, item := range slices.Sorted(maps.Keys(device.Maintenance)) {
			due, ok := device.Maintenance[item].Due()
			if !ok {
				continue
			}
			days := entities.DaysUntil(due, now)
			if days > 0 {
				continue
			}

			fresh, err := n.marker.MarkNotified(ctx, device.ID, item, due)
			if err != nil {
				return sent, fmt.Errorf("failed to record alert: %w", err)
			}
			if !fresh {
				continue
			}

			if err := n.sender.Send(ctx, FormatAlert(device, item, days)); err != nil {
				n.logger.Error("Failed to send maintenance alert",
					"device_id", device.ID,
					"item", item,
					"error", err)
				continue
			}
			sent++
		}
	}

	return sent, nil
}

// FormatAlert renders the alert for one due maintenance item
func FormatAlert(device vitesy.Device, item string, days int) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("🧽 *Vitesy %s* (%s)\n", entities.DisplayType(device.Type), device.ID))
	switch {
	case days == 0:
		sb.WriteString(fmt.Sprintf("The %s is due for washing today.", item))
	case days == -1:
		sb.WriteString(fmt.Sprintf("The %s was due for washing yesterday.", item))
	default:
		sb.WriteString(fmt.Sprintf("The %s was due for washing %d days ago.", item, -days))
	}

	return sb.String()
}

type memoryMarker struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemoryMarker() *memoryMarker {
	return &memoryMarker{seen: make(map[string]bool)}
}

func (m *memoryMarker) MarkNotified(ctx context.Context, deviceID, item string, dueDate time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := deviceID + "|" + item + "|" + dueDate.UTC().Format(time.RFC3339)
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}
