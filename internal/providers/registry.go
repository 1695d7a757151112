package providers

import (
	"context"
	"strings"
	"sync"

	"github.com/moosync/moosyncd/internal/eventbus"
	moosyncerrors "github.com/moosync/moosyncd/internal/errors"
	"github.com/moosync/moosyncd/internal/logger"
	"github.com/moosync/moosyncd/internal/models"
)

// Registry holds key -> Adapter in a thread-safe read-mostly map (§4.6):
// single writer during ExtensionRegistry-driven discovery, many concurrent
// readers serving provider calls.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	bus      *eventbus.Bus
	cache    *RequestCache
}

func NewRegistry(bus *eventbus.Bus, cache *RequestCache) *Registry {
	return &Registry{adapters: make(map[string]Adapter), bus: bus, cache: cache}
}

// Register adds or replaces an adapter by key, used both for built-in
// adapters at startup and for extension-backed adapters created when
// ExtensionRegistry reports a new installed package.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	r.adapters[a.Key()] = a
	r.mu.Unlock()
}

// Unregister drops an adapter, used when ExtensionRegistry.Remove fires.
func (r *Registry) Unregister(key string) {
	r.mu.Lock()
	delete(r.adapters, key)
	r.mu.Unlock()
}

// Keys filters adapters by declared scope.
func (r *Registry) Keys(scope models.PluginScope) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for key, a := range r.adapters {
		if a.Scopes().Has(scope) {
			out = append(out, key)
		}
	}
	return out
}

// KeyByID returns the adapter whose id-prefix matches id, relying on the
// invariant that every entity an adapter returns is prefixed with its key
// domain (§4.7).
func (r *Registry) KeyByID(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for key, a := range r.adapters {
		if strings.HasPrefix(id, a.IDPrefix()+":") || strings.HasPrefix(id, a.IDPrefix()+"-") {
			return key, true
		}
	}
	return "", false
}

func (r *Registry) get(key string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[key]
	return a, ok
}

// Statuses returns a snapshot of every adapter's current ProviderStatus.
func (r *Registry) Statuses() map[string]models.ProviderStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]models.ProviderStatus, len(r.adapters))
	for key, a := range r.adapters {
		out[key] = a.Status()
	}
	return out
}

// PublishStatus re-reads one adapter's status and broadcasts it on
// EventBus, called after login/signout/authorize.
func (r *Registry) PublishStatus(key string) {
	a, ok := r.get(key)
	if !ok {
		return
	}
	r.bus.Publish(eventbus.TopicProviderStatus, a.Status())
}

// Call invokes op against the adapter at key without caching (CallCached
// adds RequestCache for hot methods), with the SwitchProviders sentinel
// causing a one-shot retry against the adapter it names (§7 policy).
func (r *Registry) Call(ctx context.Context, key, op string, fn func(Adapter) (any, error)) (any, error) {
	a, ok := r.get(key)
	if !ok {
		return nil, moosyncerrors.ProviderError(key, "not registered")
	}

	result, err := fn(a)
	if err != nil {
		if switchKey, isSwitch := moosyncerrors.AsSwitchProviders(err); isSwitch {
			logger.Provider().Info().Str("from", key).Str("to", switchKey).Str("op", op).Msg("switching providers")
			target, ok := r.get(switchKey)
			if !ok {
				return nil, moosyncerrors.ProviderError(switchKey, "not registered")
			}
			return fn(target)
		}
		return result, err
	}
	return result, nil
}

// CallCached wraps Call with RequestCache for the §4.8 hot methods.
func (r *Registry) CallCached(ctx context.Context, key, method string, args []string, fn func(Adapter) (any, error), decode func([]byte) (any, error), encode func(any) ([]byte, error)) (any, error) {
	if r.cache == nil {
		return r.Call(ctx, key, method, fn)
	}
	cacheArgs := append([]string{key}, args...)
	return r.cache.Call(ctx, method, cacheArgs, func() (any, error) {
		return r.Call(ctx, key, method, fn)
	}, decode, encode)
}
