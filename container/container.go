// Package container implements the optional service-container DI
// mechanism: register_instance/register_factory/resolve/unregister over
// Singleton and Transient lifetimes, keyed by reflect.Type since Go has no
// runtime generics-as-values. Grounded on the dependency-injection surface
// exercised by original_source/integration_tests/integration/ilogger_di_integration_test.cpp
// and composition_example.cpp; there is no ready-made Go DI library in the
// example corpus, so this is built on reflect + sync, matching the
// teacher's plain sync.RWMutex-guarded map style used throughout its own
// worker bookkeeping.
package container

import (
	"fmt"
	"reflect"
	"sync"
)

// Lifetime controls whether Resolve returns a cached instance or invokes
// the factory afresh each time.
type Lifetime int

const (
	// Singleton caches the first resolved instance and returns it on every
	// subsequent Resolve call.
	Singleton Lifetime = iota
	// Transient invokes the factory on every Resolve call.
	Transient
)

func (l Lifetime) String() string {
	if l == Singleton {
		return "singleton"
	}
	return "transient"
}

// Factory builds a new instance of a registered type on demand.
type Factory func() (any, error)

type registration struct {
	lifetime Lifetime
	factory  Factory
	instance any
	built    bool
}

// Container is a thread-safe, reflect.Type-keyed service registry.
type Container struct {
	mu            sync.RWMutex
	registrations map[reflect.Type]*registration
}

// New returns an empty Container.
func New() *Container {
	return &Container{registrations: make(map[reflect.Type]*registration)}
}

// RegisterInstance registers value as the resolved result for its
// concrete type, equivalent to a pre-built Singleton.
func RegisterInstance[T any](c *Container, value T) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registrations[t] = &registration{
		lifetime: Singleton,
		instance: value,
		built:    true,
	}
}

// RegisterFactory registers fn to build T on demand, under the given
// lifetime.
func RegisterFactory[T any](c *Container, fn func() (T, error), lifetime Lifetime) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registrations[t] = &registration{
		lifetime: lifetime,
		factory: func() (any, error) {
			return fn()
		},
	}
}

// Resolve returns the registered instance of T, building it via its
// factory if necessary. Returns an error if T was never registered or its
// factory fails.
func Resolve[T any](c *Container) (T, error) {
	var zero T
	t := reflect.TypeOf((*T)(nil)).Elem()

	c.mu.Lock()
	reg, ok := c.registrations[t]
	if !ok {
		c.mu.Unlock()
		return zero, fmt.Errorf("container: no registration for %s", t)
	}

	if reg.lifetime == Singleton && reg.built {
		instance := reg.instance
		c.mu.Unlock()
		return instance.(T), nil
	}

	factory := reg.factory
	c.mu.Unlock()

	if factory == nil {
		return zero, fmt.Errorf("container: registration for %s has no factory", t)
	}

	built, err := factory()
	if err != nil {
		return zero, fmt.Errorf("container: factory for %s failed: %w", t, err)
	}

	if reg.lifetime == Singleton {
		c.mu.Lock()
		if !reg.built {
			reg.instance = built
			reg.built = true
		}
		cached := reg.instance
		c.mu.Unlock()
		return cached.(T), nil
	}

	return built.(T), nil
}

// Unregister removes T's registration, if any.
func Unregister[T any](c *Container) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.registrations, t)
}

// IsRegistered reports whether T currently has a registration.
func IsRegistered[T any](c *Container) bool {
	t := reflect.TypeOf((*T)(nil)).Elem()
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.registrations[t]
	return ok
}
