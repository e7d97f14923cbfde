// Copyright 2025 Forge1
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"log"
	"os"
	"sync"
)

// Registry tracks the set of usable model adapters and resolves which ones
// can serve a given task type. It is safe for concurrent use.
//
// Registration order is preserved so that deterministic routers see a stable
// candidate ordering across calls within a process.
type Registry struct {
	adapters map[string]Adapter
	order    []string // registration order of model names
	logger   *log.Logger
	mu       sync.RWMutex
}

// RegistryOption configures the registry during creation.
type RegistryOption func(*Registry)

// WithRegistryLogger sets a custom logger for the registry.
func WithRegistryLogger(logger *log.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty adapter registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		adapters: make(map[string]Adapter),
		logger:   log.New(os.Stdout, "[MODEL_REGISTRY] ", log.LstdFlags),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds an adapter keyed by its model name. Re-registering a name
// overwrites the previous adapter but keeps its original position in the
// candidate ordering.
func (r *Registry) Register(adapter Adapter) {
	if adapter == nil {
		return
	}

	name := adapter.ModelName()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[name]; !exists {
		r.order = append(r.order, name)
	} else {
		r.logger.Printf("Overwriting adapter registration: %s", name)
	}
	r.adapters[name] = adapter

	r.logger.Printf("Registered adapter: %s (capabilities: %v)", name, adapter.Capabilities())
}

// Adapter returns the adapter registered under the given model name.
// The second return value is false if no such adapter exists.
func (r *Registry) Adapter(modelName string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[modelName]
	return a, ok
}

// AdaptersForTask returns all adapters whose capability set contains the
// task type, in registration order. Calling it twice with no intervening
// Register returns identical lists.
func (r *Registry) AdaptersForTask(taskType TaskType) []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Adapter
	for _, name := range r.order {
		a := r.adapters[name]
		if HasCapability(a, taskType) {
			result = append(result, a)
		}
	}
	return result
}

// ModelNames returns all registered model names in registration order.
func (r *Registry) ModelNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Count returns the number of registered adapters.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.adapters)
}

// Unregister removes an adapter. Missing names are a no-op.
func (r *Registry) Unregister(modelName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[modelName]; !exists {
		return
	}

	delete(r.adapters, modelName)
	for i, name := range r.order {
		if name == modelName {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	r.logger.Printf("Unregistered adapter: %s", modelName)
}
