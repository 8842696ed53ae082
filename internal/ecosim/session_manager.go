package ecosim

import (
	"fmt"
	"sync"
)

// SessionManager is an explicit keyed registry of simulation sessions,
// each isolated from the others. It owns the create/destroy lifecycle;
// there is no ambient global session state.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[SimulationID]*Simulation
	logger   Logger
}

// NewSessionManager creates a manager with a no-op logger.
func NewSessionManager() *SessionManager {
	return NewSessionManagerWithLogger(NewNoOpLogger())
}

// NewSessionManagerWithLogger creates a manager using the given logger.
func NewSessionManagerWithLogger(logger Logger) *SessionManager {
	if logger == nil {
		logger = NewNoOpLogger()
	}
	return &SessionManager{
		sessions: make(map[SimulationID]*Simulation),
		logger:   logger,
	}
}

// Create builds a new session from the parameters and registers it under
// its own id, or under the supplied id when non-empty. It fails if the
// id is already taken.
func (m *SessionManager) Create(id SimulationID, params Params) (*Simulation, error) {
	sim, err := NewSimulation(params, m.logger)
	if err != nil {
		return nil, err
	}
	if id != "" {
		sim.SetID(id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[sim.ID()]; exists {
		return nil, fmt.Errorf("simulation with id %s already exists", sim.ID())
	}
	m.sessions[sim.ID()] = sim
	return sim, nil
}

// Get retrieves a session by id.
func (m *SessionManager) Get(id SimulationID) (*Simulation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sim, exists := m.sessions[id]
	return sim, exists
}

// Delete stops and removes a session. The session's grid and hunger
// buffers die with it.
func (m *SessionManager) Delete(id SimulationID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sim, exists := m.sessions[id]
	if !exists {
		return fmt.Errorf("%w: simulation %s", ErrNotFound, id)
	}
	sim.Stop()
	delete(m.sessions, id)
	m.logger.Infof("simulation %s destroyed", id)
	return nil
}

// List returns the ids of all registered sessions.
func (m *SessionManager) List() []SimulationID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]SimulationID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}
