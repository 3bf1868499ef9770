package providers

import (
	"errors"
	"sort"
	"sync"
)

var (
	// ErrProviderNotFound is returned when a provider is not registered
	ErrProviderNotFound = errors.New("provider not found")

	// ErrProviderAlreadyRegistered is returned when trying to register a duplicate provider
	ErrProviderAlreadyRegistered = errors.New("provider already registered")
)

// ProviderBuilder is a function that creates a provider instance
type ProviderBuilder func(config ProviderConfig) (Provider, error)

// Registry maps provider names to builders so the solver backend can be
// chosen from configuration.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]ProviderBuilder
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]ProviderBuilder),
	}
}

// Register adds a builder under name.
func (r *Registry) Register(name string, builder ProviderBuilder) error {
	if name == "" {
		return errors.New("provider name cannot be empty")
	}
	if builder == nil {
		return errors.New("provider builder cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.builders[name]; exists {
		return ErrProviderAlreadyRegistered
	}
	r.builders[name] = builder
	return nil
}

// Build instantiates the named provider.
func (r *Registry) Build(name string, config ProviderConfig) (Provider, error) {
	r.mu.RLock()
	builder, exists := r.builders[name]
	r.mu.RUnlock()

	if !exists {
		return nil, ErrProviderNotFound
	}
	return builder(config)
}

// ListProviders returns all registered provider names, sorted.
func (r *Registry) ListProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
