package export

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory creates an unconnected sink.
type Factory func() Sink

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a sink available by type name. It is meant to be called
// from init functions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get returns the factory registered under name.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// IsRegistered reports whether a sink type exists.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// List returns the registered sink types sorted.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates a sink for cfg.Type. The sink is not connected.
func New(cfg Config) (Sink, error) {
	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("unknown export type %q (available: %s)", cfg.Type, strings.Join(List(), ", "))
	}
	return factory(), nil
}
