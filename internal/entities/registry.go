package entities

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"shelfy/internal/vitesy"
)

// ErrEntityNotFound is returned when no entity has the requested unique id
var ErrEntityNotFound = errors.New("entity not found")

// Registry manages the discovered entities
type Registry struct {
	entities map[string]Entity // unique id -> entity
	order    []string          // discovery order
	mu       sync.RWMutex
}

// NewRegistry creates a new entity registry
func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[string]Entity),
	}
}

// Register adds an entity to the registry
func (r *Registry) Register(entity Entity) error {
	if entity.UniqueID == "" {
		return fmt.Errorf("entity unique id cannot be empty")
	}
	if entity.DeviceID == "" {
		return fmt.Errorf("entity %s has no device id", entity.UniqueID)
	}
	if entity.Kind != KindSensor && entity.Kind != KindButton {
		return fmt.Errorf("entity %s has unknown kind %q", entity.UniqueID, entity.Kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entities[entity.UniqueID]; exists {
		return fmt.Errorf("entity %s already registered", entity.UniqueID)
	}

	r.entities[entity.UniqueID] = entity
	r.order = append(r.order, entity.UniqueID)
	return nil
}

// Replace swaps the registry content for entities, keeping their order.
// Duplicate unique ids keep the first entity.
func (r *Registry) Replace(entities []Entity) {
	byID := make(map[string]Entity, len(entities))
	order := make([]string, 0, len(entities))
	for _, entity := range entities {
		if _, exists := byID[entity.UniqueID]; exists {
			continue
		}
		byID[entity.UniqueID] = entity
		order = append(order, entity.UniqueID)
	}

	r.mu.Lock()
	r.entities = byID
	r.order = order
	r.mu.Unlock()
}

// Sync rediscovers the entities of devices and replaces the registry content.
// It returns the number of entities.
func (r *Registry) Sync(devices []vitesy.Device) int {
	discovered := Discover(devices)
	r.Replace(discovered)
	return len(discovered)
}

// Get retrieves an entity by unique id
func (r *Registry) Get(uniqueID string) (Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entity, exists := r.entities[uniqueID]
	if !exists {
		return Entity{}, fmt.Errorf("%w: %s", ErrEntityNotFound, uniqueID)
	}

	return entity, nil
}

// List returns all registered entities in discovery order
func (r *Registry) List() []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entities := make([]Entity, 0, len(r.order))
	for _, id := range r.order {
		entities = append(entities, r.entities[id])
	}

	return entities
}

// ListByDevice returns the entities of one device
func (r *Registry) ListByDevice(deviceID string) []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entities := make([]Entity, 0)
	for _, id := range r.order {
		entity := r.entities[id]
		if entity.DeviceID == deviceID || compactID(entity.DeviceID) == deviceID {
			entities = append(entities, entity)
		}
	}

	return entities
}

// State is an entity together with its current value
type State struct {
	Entity
	Value     any  `json:"value"`
	Available bool `json:"available"`
}

// Resolve computes the state of entity from a device snapshot. Buttons have
// no value and are available while their device is known.
func Resolve(entity Entity, devices []vitesy.Device, now time.Time) State {
	state := State{Entity: entity}

	device, ok := FindDevice(devices, entity.DeviceID)
	if !ok {
		return state
	}
	state.Available = true

	if entity.Kind == KindSensor {
		if value, ok := Value(device, entity.Key, now); ok {
			state.Value = value
		}
	}
	return state
}

// FindDevice looks a device up by id, with or without colons
func FindDevice(devices []vitesy.Device, deviceID string) (vitesy.Device, bool) {
	compact := compactID(deviceID)
	for _, device := range devices {
		if compactID(device.ID) == compact {
			return device, true
		}
	}
	return vitesy.Device{}, false
}
