package adapters

import (
	"strings"

	donationdomain "github.com/jkvis/donateflow/internal/donation/domain"
	"github.com/jkvis/donateflow/internal/payment/domain"
)

type Registry struct {
	adapters map[donationdomain.Channel]domain.Adapter
}

func NewRegistry(adapters ...domain.Adapter) *Registry {
	registry := &Registry{adapters: map[donationdomain.Channel]domain.Adapter{}}
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		channel := donationdomain.Channel(strings.ToLower(strings.TrimSpace(string(adapter.Channel()))))
		if channel == "" {
			continue
		}
		registry.adapters[channel] = adapter
	}
	return registry
}

func (r *Registry) Resolve(provider string) (domain.Adapter, error) {
	if r == nil {
		return nil, domain.ErrProviderNotFound
	}
	channel := donationdomain.Channel(strings.ToLower(strings.TrimSpace(provider)))
	adapter, ok := r.adapters[channel]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return adapter, nil
}
