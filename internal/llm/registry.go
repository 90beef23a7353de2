package llm

import (
	"sort"
	"sync"

	"github.com/scrapeflow-ai/scrapeflow/internal/types"
)

// Registry manages LLM provider registration and lookup. It provides a
// centralized, thread-safe registry for all configured providers.
type Registry interface {
	// RegisterProvider registers an LLM provider with the registry
	RegisterProvider(provider Provider) error

	// UnregisterProvider removes a provider from the registry by name
	UnregisterProvider(name string) error

	// GetProvider retrieves a provider by name
	GetProvider(name string) (Provider, error)

	// ListProviders returns the names of all registered providers
	ListProviders() []string
}

// DefaultRegistry implements Registry with a sync.RWMutex protecting
// concurrent access to the provider map.
type DefaultRegistry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a new DefaultRegistry instance
func NewRegistry() *DefaultRegistry {
	return &DefaultRegistry{
		providers: make(map[string]Provider),
	}
}

// RegisterProvider registers an LLM provider with the registry.
// Returns ErrProviderAlreadyExists if a provider with the same name is
// already registered, ErrProviderInvalidInput if the provider is nil or
// has an empty name.
func (r *DefaultRegistry) RegisterProvider(provider Provider) error {
	if provider == nil {
		return types.NewError(ErrProviderInvalidInput, "provider cannot be nil")
	}

	name := provider.Name()
	if name == "" {
		return types.NewError(ErrProviderInvalidInput, "provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return types.NewError(ErrProviderAlreadyExists, "provider already registered: "+name)
	}

	r.providers[name] = provider
	return nil
}

// UnregisterProvider removes a provider from the registry by name.
func (r *DefaultRegistry) UnregisterProvider(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; !exists {
		return types.NewError(ErrProviderNotFound, "provider not registered: "+name)
	}

	delete(r.providers, name)
	return nil
}

// GetProvider retrieves a provider by name.
func (r *DefaultRegistry) GetProvider(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	if !exists {
		return nil, types.NewError(ErrProviderNotFound, "provider not registered: "+name)
	}

	return provider, nil
}

// ListProviders returns the sorted names of all registered providers.
func (r *DefaultRegistry) ListProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
