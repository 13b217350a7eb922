package entity

import (
	"sync"
)

// Registry holds the sensors added by setup, in registration order.
type Registry struct {
	mu      sync.RWMutex
	sensors []*Sensor
	byID    map[string]*Sensor
}

// NewRegistry creates an empty sensor registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Sensor)}
}

// Add registers sensors. A sensor whose unique id is already registered is skipped,
// since the host refuses duplicate entity ids. It returns the number added.
func (r *Registry) Add(sensors ...*Sensor) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	added := 0
	for _, s := range sensors {
		id := s.UniqueID()
		if _, ok := r.byID[id]; ok {
			continue
		}
		r.byID[id] = s
		r.sensors = append(r.sensors, s)
		added++
	}
	return added
}

// All returns the registered sensors.
func (r *Registry) All() []*Sensor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Sensor(nil), r.sensors...)
}

// Get returns the sensor with the given unique id.
func (r *Registry) Get(uniqueID string) (*Sensor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[uniqueID]
	return s, ok
}

// Len returns the number of registered sensors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sensors)
}
