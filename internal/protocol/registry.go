// internal/protocol/registry.go
package protocol

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Registry хранит builder'ы протоколов по имени.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
	logger   *zap.Logger
}

// NewRegistry creates a new protocol registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		builders: make(map[string]Builder),
		logger:   logger.Named("protocol_registry"),
	}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds a builder under its Name().
func (r *Registry) Register(b Builder) error {
	name := normalize(b.Name())
	if name == "" {
		return fmt.Errorf("protocol name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.builders[name]; exists {
		return fmt.Errorf("protocol %s already registered", name)
	}
	r.builders[name] = b

	r.logger.Info("Protocol registered", zap.String("name", name))
	return nil
}

// Get retrieves a builder by name, case-insensitive.
func (r *Registry) Get(name string) (Builder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, exists := r.builders[normalize(name)]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProtocol, name)
	}
	return b, nil
}

// List returns all registered protocol names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unregister removes a builder from the registry.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalize(name)
	if _, exists := r.builders[key]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownProtocol, name)
	}
	delete(r.builders, key)

	r.logger.Info("Protocol unregistered", zap.String("name", key))
	return nil
}
