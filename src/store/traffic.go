package store

import (
	"sync"
	"time"

	"transit-observer/src/models"
)

// -----------------------------------------------------------------------------
// TrafficSignalStore: TTL-bounded traffic condition per route, written by the
// traffic-sensing collaborator, read by the prediction engine.
// -----------------------------------------------------------------------------

const DefaultTrafficTTL = 600 * time.Second

type trafficEntry struct {
	signal    models.MTrafficSignal
	expiresAt time.Time
}

type TrafficSignalStore struct {
	mu      sync.RWMutex
	entries map[int]trafficEntry
	now     func() time.Time
}

// -----------------------------------------------------------------------------

func NewTrafficSignalStore() *TrafficSignalStore {
	return &TrafficSignalStore{
		entries: make(map[int]trafficEntry),
		now:     time.Now,
	}
}

// -----------------------------------------------------------------------------

// Set records the signal for its route with a ttl expiry.
func (s *TrafficSignalStore) Set(signal models.MTrafficSignal, ttl time.Duration) {
	s.mu.Lock()
	s.entries[signal.RouteID] = trafficEntry{
		signal:    signal,
		expiresAt: s.now().Add(ttl),
	}
	s.mu.Unlock()
}

// -----------------------------------------------------------------------------

// GetSignal implements interfaces.ITrafficSensor.
func (s *TrafficSignalStore) GetSignal(routeID int) (models.MTrafficSignal, bool) {
	s.mu.RLock()
	e, ok := s.entries[routeID]
	s.mu.RUnlock()
	if !ok || !s.now().Before(e.expiresAt) {
		return models.MTrafficSignal{}, false
	}
	return e.signal, true
}
