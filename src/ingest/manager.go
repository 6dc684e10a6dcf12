package ingest

import (
	"context"
	"fmt"
	"sync"

	"transit-observer/src/interfaces"
	"transit-observer/src/logger"
	"transit-observer/src/models"
)

// MultiSourceManager aggregates multiple IIngestSource instances type
type MultiSourceManager struct {
	Sources     map[string]interfaces.IIngestSource
	Logger      *logger.Logger
	mu          sync.RWMutex
	positions   chan<- []models.MVehicleState // Send-only, managed by parent
	traffic     chan<- models.MTrafficSignal
	ctx         context.Context    // Lifecycle context (derived)
	cancelFunc  context.CancelFunc // To stop all sources
	wg          *sync.WaitGroup    // Shared WaitGroup (ptr)
}

// -----------------------------------------------------------------------------

func NewMultiSourceManager(sources []interfaces.IIngestSource, log *logger.Logger) *MultiSourceManager {
	m := &MultiSourceManager{
		Sources: make(map[string]interfaces.IIngestSource),
		Logger:  log,
	}

	for _, s := range sources {
		m.Sources[s.Name()] = s
	}

	return m
}

// -----------------------------------------------------------------------------

// AddSource adds a new source and starts it if the manager is running
func (m *MultiSourceManager) AddSource(source interfaces.IIngestSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := source.Name()
	if _, exists := m.Sources[name]; exists {
		return fmt.Errorf("source %s already exists", name)
	}

	m.Sources[name] = source
	m.Logger.Info("Added source: %s", name)

	// If Manager is already running, start the new source immediately
	if m.positions != nil && m.ctx != nil {
		m.wg.Add(1)
		if err := source.Start(m.ctx, m.positions, m.traffic, m.wg); err != nil {
			m.wg.Done()
			return fmt.Errorf("failed to start source %s: %v", name, err)
		}
		m.Logger.Info("Started source: %s", name)
	}

	return nil
}

// -----------------------------------------------------------------------------

// RemoveSource stops and removes a source
func (m *MultiSourceManager) RemoveSource(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	source, exists := m.Sources[name]
	if !exists {
		return fmt.Errorf("source %s not found", name)
	}

	if err := source.Stop(); err != nil {
		m.Logger.Error("Error stopping source %s: %v", name, err)
	}

	delete(m.Sources, name)
	m.Logger.Info("Removed source: %s", name)
	return nil
}

// -----------------------------------------------------------------------------

// GetSource retrieves a source by name
func (m *MultiSourceManager) GetSource(name string) (interfaces.IIngestSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	source, exists := m.Sources[name]
	if !exists {
		return nil, fmt.Errorf("source %s not found", name)
	}
	return source, nil
}

// -----------------------------------------------------------------------------

// GetAllSources returns a list of all sources
func (m *MultiSourceManager) GetAllSources() []interfaces.IIngestSource {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]interfaces.IIngestSource, 0, len(m.Sources))
	for _, s := range m.Sources {
		list = append(list, s)
	}
	return list
}

// -----------------------------------------------------------------------------

// Start starts all sources
func (m *MultiSourceManager) Start(parentCtx context.Context, positions chan<- []models.MVehicleState, traffic chan<- models.MTrafficSignal, wg *sync.WaitGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx != nil {
		return fmt.Errorf("MultiSourceManager is already running")
	}

	// Derive a context so we can stop the manager independently if needed
	ctx, cancel := context.WithCancel(parentCtx)
	m.ctx = ctx
	m.cancelFunc = cancel

	m.positions = positions
	m.traffic = traffic
	m.wg = wg

	for _, src := range m.Sources {
		m.wg.Add(1)
		if err := src.Start(m.ctx, m.positions, m.traffic, m.wg); err != nil {
			m.Logger.Error("Failed to start source %s: %v", src.Name(), err)
			m.wg.Done()
			return err
		}
	}
	return nil
}

// Stop stops all sources gracefully by cancelling the internal context
func (m *MultiSourceManager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil {
		return nil // Already stopped
	}

	m.Logger.Info("Stopping MultiSourceManager...")

	// Cancel context -> Signals all sources to stop
	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	for _, src := range m.Sources {
		if err := src.Stop(); err != nil {
			m.Logger.Error("Error stopping source %s: %v", src.Name(), err)
		}
	}

	m.cancelFunc = nil
	m.ctx = nil

	m.Logger.Info("MultiSourceManager Stopped.")
	return nil
}

// -----------------------------------------------------------------------------

// Name returns "MultiSourceManager"
func (m *MultiSourceManager) Name() string {
	return "MultiSourceManager"
}
