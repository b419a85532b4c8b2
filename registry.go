package apireg

import (
	"log/slog"
	"sort"
)

// Class is the registration target for a group of endpoint methods.
// It stands in for a class in an inheritance hierarchy: Parent links form the
// chain along which endpoints are inherited.
//
// Classes are defined once, typically in package variables, and receive their
// endpoints from init functions. Registration on a Class is not safe for
// concurrent use; reading its Registry afterwards is.
type Class struct {
	name   string
	parent *Class
	own    *Registry // nil until the first registration on this exact class
	logger *slog.Logger
}

// NewClass defines a class. parent may be nil.
func NewClass(name string, parent *Class) *Class {
	if name == "" {
		panic("apireg: class name must not be empty")
	}
	return &Class{name: name, parent: parent}
}

// WithLogger sets the logger used for registration and dispatch diagnostics.
// Subclasses without their own logger use their parent's.
// It returns the class for chaining.
func (c *Class) WithLogger(logger *slog.Logger) *Class {
	c.logger = logger
	return c
}

// Name returns the class name used in endpoint paths.
func (c *Class) Name() string { return c.name }

// Parent returns the class this one extends, or nil.
func (c *Class) Parent() *Class { return c.parent }

// Registry returns the merged endpoint registry visible from c: its own
// registry if it has registered endpoints, otherwise the nearest ancestor's.
func (c *Class) Registry() *Registry {
	if c.own != nil {
		return c.own
	}
	return c.inherited()
}

// inherited returns the registry of the nearest ancestor that owns one.
// An owning ancestor already holds everything above it, so the walk stops there.
func (c *Class) inherited() *Registry {
	for p := c.parent; p != nil; p = p.parent {
		if p.own != nil {
			return p.own
		}
	}
	return emptyRegistry
}

// ownRegistry returns c's own registry, creating it on first use, with
// everything currently visible from its ancestors merged in.
func (c *Class) ownRegistry() *Registry {
	if c.own == nil {
		c.own = &Registry{entries: make(map[string]*Endpoint)}
	}
	c.own.mergeFrom(c.inherited(), c)
	return c.own
}

func (c *Class) log() *slog.Logger {
	for k := c; k != nil; k = k.parent {
		if k.logger != nil {
			return k.logger
		}
	}
	return slog.Default()
}

// Registry maps method names to endpoints for one class.
// It is read-only outside this package.
type Registry struct {
	entries map[string]*Endpoint
}

var emptyRegistry = &Registry{}

// Lookup returns the endpoint registered under a method name.
func (r *Registry) Lookup(name string) (*Endpoint, bool) {
	if r == nil {
		return nil, false
	}
	e, ok := r.entries[name]
	return e, ok
}

// ByPath returns the endpoint serving path.
func (r *Registry) ByPath(path string) (*Endpoint, bool) {
	if r == nil {
		return nil, false
	}
	for _, e := range r.entries {
		if e.path == path {
			return e, true
		}
	}
	return nil, false
}

// Len returns the number of endpoints.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Names returns the registered method names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Endpoints returns the endpoints ordered by method name.
func (r *Registry) Endpoints() []*Endpoint {
	names := r.Names()
	out := make([]*Endpoint, len(names))
	for i, name := range names {
		out[i] = r.entries[name]
	}
	return out
}

// mergeFrom copies ancestor entries into r. Entries declared on owner itself
// take precedence over inherited ones; inherited copies are refreshed.
func (r *Registry) mergeFrom(ancestor *Registry, owner *Class) {
	if ancestor == nil || ancestor == r {
		return
	}
	for name, e := range ancestor.entries {
		if cur, ok := r.entries[name]; ok && cur.class == owner {
			continue
		}
		r.entries[name] = e
	}
}
