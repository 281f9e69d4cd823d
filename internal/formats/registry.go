// Package formats implements validators for the named string formats that
// JSON Schema declares but most structural validators leave unchecked.
package formats

import (
	"fmt"
	"sort"
	"sync"
)

// Func validates a string value, returning nil when the value conforms.
type Func func(value string) error

// Registry maps format names to validators. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	validators map[string]Func
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{validators: make(map[string]Func)}
}

// Default creates a registry preloaded with the built-in formats:
// date-time, email, hostname, ipv4, ipv6, uri, uuid and hex.
func Default() *Registry {
	r := NewRegistry()
	r.Register("date-time", DateTime)
	r.Register("email", Email)
	r.Register("hostname", Hostname)
	r.Register("ipv4", IPv4)
	r.Register("ipv6", IPv6)
	r.Register("uri", URI)
	r.Register("uuid", UUID)
	r.Register("hex", Hex)
	return r
}

// Register adds or replaces the validator for name.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[name] = fn
}

// Has reports whether a validator is registered for name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.validators[name]
	return ok
}

// Names returns the registered format names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.validators))
	for name := range r.validators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks value against the named format.
//
// Unknown formats, nil values and non-string values are vacuously valid:
// presence and type are checked elsewhere. A validator that panics is
// reported as an ordinary format error.
func (r *Registry) Validate(name string, value any) (err error) {
	r.mu.RLock()
	fn, ok := r.validators[name]
	r.mu.RUnlock()
	if !ok || value == nil {
		return nil
	}
	s, ok := value.(string)
	if !ok {
		return nil
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("invalid %s: validator failed: %v", name, p)
		}
	}()
	return fn(s)
}
