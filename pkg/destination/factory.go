package destination

import (
	"fmt"

	"github.com/gottino/rmirror-cloud/pkg/models"
)

// DefaultRegistry returns a registry with the shipped destinations.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	// Registration of built-ins cannot collide.
	_ = r.Register("notes", NewNotesAdapter)
	_ = r.Register("webhook", NewWebhookAdapter)
	return r
}

// Resolver turns stored integration rows into live adapters.
type Resolver struct {
	registry *Registry
	sealer   *Sealer
}

// NewResolver creates a resolver over the given registry and sealer.
func NewResolver(registry *Registry, sealer *Sealer) *Resolver {
	return &Resolver{registry: registry, sealer: sealer}
}

// Registry exposes the underlying registry.
func (r *Resolver) Registry() *Registry { return r.registry }

// Seal encrypts settings for storage, returning the blob and its salt.
func (r *Resolver) Seal(settings map[string]string) (blob, salt []byte, err error) {
	salt, err = NewSalt()
	if err != nil {
		return nil, nil, err
	}
	blob, err = r.sealer.Seal(settings, salt)
	if err != nil {
		return nil, nil, err
	}
	return blob, salt, nil
}

// Resolve decrypts the integration's credentials and builds its adapter.
func (r *Resolver) Resolve(cfg *models.IntegrationConfig) (Adapter, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("destination %q is disabled", cfg.Destination)
	}

	settings, err := r.sealer.Open(cfg.EncryptedBlob, cfg.Salt)
	if err != nil {
		return nil, fmt.Errorf("opening credentials for %q: %w", cfg.Destination, err)
	}

	adapter, err := r.registry.Build(cfg.Destination, settings)
	if err != nil {
		return nil, err
	}
	return adapter, nil
}
