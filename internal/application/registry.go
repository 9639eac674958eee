package application

import (
	"sort"

	"github.com/ericfisherdev/gitvault/internal/domain/model"
	"github.com/ericfisherdev/gitvault/internal/domain/port/driven"
)

// ProviderComponents is one registry entry: how to build an authenticated
// client for a provider and how to read its payloads.
type ProviderComponents struct {
	Factory    driven.ClientFactory
	Normalizer driven.ResponseNormalizer
}

// Registry maps provider tags to their components. It is filled once at
// construction and never modified, so concurrent reads need no locking.
type Registry struct {
	components map[model.ProviderTag]ProviderComponents
}

// NewRegistry copies entries into a new Registry. Entries with a nil factory
// or normalizer are skipped.
func NewRegistry(entries map[model.ProviderTag]ProviderComponents) *Registry {
	components := make(map[model.ProviderTag]ProviderComponents, len(entries))
	for tag, c := range entries {
		if c.Factory == nil || c.Normalizer == nil {
			continue
		}
		components[tag] = c
	}
	return &Registry{components: components}
}

// GetComponents returns the factory and normalizer registered for tag, or a
// nil pair when the provider is unknown.
func (r *Registry) GetComponents(tag model.ProviderTag) (driven.ClientFactory, driven.ResponseNormalizer) {
	c, ok := r.components[tag]
	if !ok {
		return nil, nil
	}
	return c.Factory, c.Normalizer
}

// Providers lists the registered tags in sorted order.
func (r *Registry) Providers() []model.ProviderTag {
	tags := make([]model.ProviderTag, 0, len(r.components))
	for tag := range r.components {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}
