package multiagent

import (
	"errors"
	"fmt"
	"sync"
)

// ErrAgentNotFound is returned by AgentRegistry lookups for an unknown ID.
var ErrAgentNotFound = errors.New("agent not found")

// ErrAgentExists is returned by Create when the ID is already registered.
var ErrAgentExists = errors.New("agent already exists")

// AgentRegistry is the mutable, in-memory CRUD surface over agent
// definitions backing `agent list|create|delete` and the RPC agent.*
// namespace. ConfigPath, when set, is persisted to on every mutation via
// SaveConfig so changes survive a restart.
type AgentRegistry struct {
	mu         sync.RWMutex
	agents     map[string]*AgentDefinition
	defaultID  string
	configPath string
}

// NewAgentRegistry seeds a registry from an already-loaded config.
func NewAgentRegistry(config *MultiAgentConfig, configPath string) *AgentRegistry {
	reg := &AgentRegistry{
		agents:     make(map[string]*AgentDefinition),
		configPath: configPath,
	}
	if config != nil {
		reg.defaultID = config.DefaultAgentID
		for i := range config.Agents {
			def := config.Agents[i]
			reg.agents[def.ID] = &def
		}
	}
	return reg
}

// List returns every registered agent, in no particular order.
func (r *AgentRegistry) List() []*AgentDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*AgentDefinition, 0, len(r.agents))
	for _, def := range r.agents {
		out = append(out, def)
	}
	return out
}

// Get returns the agent definition for id.
func (r *AgentRegistry) Get(id string) (*AgentDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.agents[id]
	if !ok {
		return nil, ErrAgentNotFound
	}
	return def, nil
}

// Create registers a new agent definition. Fails if the ID is already taken.
func (r *AgentRegistry) Create(def AgentDefinition) error {
	if def.ID == "" {
		return fmt.Errorf("agent id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[def.ID]; exists {
		return ErrAgentExists
	}
	r.agents[def.ID] = &def
	return r.persistLocked()
}

// Delete removes an agent definition. Fails if id is the configured default.
func (r *AgentRegistry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[id]; !ok {
		return ErrAgentNotFound
	}
	if id == r.defaultID {
		return fmt.Errorf("cannot delete default agent %q", id)
	}
	delete(r.agents, id)
	return r.persistLocked()
}

// persistLocked writes the registry's current state to configPath, if set.
// Callers must hold r.mu.
func (r *AgentRegistry) persistLocked() error {
	if r.configPath == "" {
		return nil
	}
	cfg := &MultiAgentConfig{DefaultAgentID: r.defaultID}
	for _, def := range r.agents {
		cfg.Agents = append(cfg.Agents, *def)
	}
	return SaveConfig(cfg, r.configPath)
}
