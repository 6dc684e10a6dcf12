package store

import (
	"context"
	"sync"
	"time"

	"transit-observer/src/models"
)

// -----------------------------------------------------------------------------
// LiveLocationStore: ephemeral, TTL-bounded last-known state per vehicle.
//
// Sharded so that the ingest writers and the predict/broadcast readers do not
// contend on one lock. Expiry is checked lazily on every read; the janitor
// only reclaims memory.
// -----------------------------------------------------------------------------

const (
	DefaultLocationTTL = 300 * time.Second
	shardCount         = 16
	sweepInterval      = 60 * time.Second
)

type locationEntry struct {
	state     models.MVehicleState
	expiresAt time.Time
}

type locationShard struct {
	mu      sync.RWMutex
	entries map[int]locationEntry
}

type LiveLocationStore struct {
	shards [shardCount]*locationShard
	now    func() time.Time
}

// -----------------------------------------------------------------------------

func NewLiveLocationStore() *LiveLocationStore {
	s := &LiveLocationStore{now: time.Now}
	for i := range s.shards {
		s.shards[i] = &locationShard{entries: make(map[int]locationEntry)}
	}
	return s
}

func (s *LiveLocationStore) shardFor(vehicleID int) *locationShard {
	idx := vehicleID % shardCount
	if idx < 0 {
		idx += shardCount
	}
	return s.shards[idx]
}

// -----------------------------------------------------------------------------

// Set upserts the vehicle's state and (re)arms a ttl expiry. Any prior state
// for the vehicle is discarded.
func (s *LiveLocationStore) Set(state models.MVehicleState, ttl time.Duration) {
	sh := s.shardFor(state.VehicleID)
	sh.mu.Lock()
	sh.entries[state.VehicleID] = locationEntry{
		state:     state,
		expiresAt: s.now().Add(ttl),
	}
	sh.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Get returns the current state, found=false if absent or expired (even when
// the entry has not been physically swept yet).
func (s *LiveLocationStore) Get(vehicleID int) (models.MVehicleState, bool) {
	sh := s.shardFor(vehicleID)
	sh.mu.RLock()
	e, ok := sh.entries[vehicleID]
	sh.mu.RUnlock()
	if !ok || !s.now().Before(e.expiresAt) {
		return models.MVehicleState{}, false
	}
	return e.state, true
}

// -----------------------------------------------------------------------------

// ActiveSnapshot returns every non-expired state at call time.
func (s *LiveLocationStore) ActiveSnapshot() []models.MVehicleState {
	now := s.now()
	var out []models.MVehicleState
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, e := range sh.entries {
			if now.Before(e.expiresAt) {
				out = append(out, e.state)
			}
		}
		sh.mu.RUnlock()
	}
	return out
}

// -----------------------------------------------------------------------------

// Len counts non-expired entries.
func (s *LiveLocationStore) Len() int {
	now := s.now()
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, e := range sh.entries {
			if now.Before(e.expiresAt) {
				n++
			}
		}
		sh.mu.RUnlock()
	}
	return n
}

// -----------------------------------------------------------------------------

// StartJanitor sweeps expired entries until the context is cancelled.
func (s *LiveLocationStore) StartJanitor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *LiveLocationStore) sweep() {
	now := s.now()
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, e := range sh.entries {
			if !now.Before(e.expiresAt) {
				delete(sh.entries, id)
			}
		}
		sh.mu.Unlock()
	}
}
