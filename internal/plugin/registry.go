package plugin

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Factory creates a new, caller-owned instance of a capability.
type Factory[T, A any] func(args A) (T, error)

// Plugin is a registry entry: a named factory plus its documentation.
type Plugin[T, A any] struct {
	Name    string
	Doc     string
	Options OptionTable
	Factory Factory[T, A]
}

// Registry maps plugin names to factories for one capability kind.
type Registry[T, A any] struct {
	kind      string
	shortName string

	mu       sync.RWMutex
	plugins  map[string]Plugin[T, A]
	locators []Locator
}

// NewRegistry creates an empty registry for the given capability kind.
// shortName is the plugin used when a caller does not name one.
func NewRegistry[T, A any](kind, shortName string) *Registry[T, A] {
	return &Registry[T, A]{
		kind:      kind,
		shortName: shortName,
		plugins:   make(map[string]Plugin[T, A]),
	}
}

// Kind returns the capability kind served by this registry.
func (r *Registry[T, A]) Kind() string { return r.kind }

// ShortName returns the default plugin name for this kind.
func (r *Registry[T, A]) ShortName() string { return r.shortName }

// Register adds p, replacing any previous entry with the same name.
// Instances created before the override keep their original factory.
func (r *Registry[T, A]) Register(p Plugin[T, A]) error {
	if p.Name == "" {
		return errors.New("plugin: empty plugin name")
	}
	if p.Factory == nil {
		return fmt.Errorf("plugin: %s/%s has no factory", r.kind, p.Name)
	}

	r.mu.Lock()
	_, replaced := r.plugins[p.Name]
	r.plugins[p.Name] = p
	r.mu.Unlock()

	if replaced {
		slog.Debug("plugin overridden", "kind", r.kind, "name", p.Name)
	}
	return nil
}

// MustRegister is Register for package init blocks.
func (r *Registry[T, A]) MustRegister(p Plugin[T, A]) {
	if err := r.Register(p); err != nil {
		panic(err)
	}
}

// AddLocator appends a discovery source consulted by Load on a miss.
func (r *Registry[T, A]) AddLocator(l Locator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locators = append(r.locators, l)
}

func (r *Registry[T, A]) lookup(name string) (Plugin[T, A], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// Load returns the plugin registered under name, running discovery first
// if it is not yet present. An empty name selects ShortName.
func (r *Registry[T, A]) Load(name string) (Plugin[T, A], error) {
	if name == "" {
		name = r.shortName
	}
	if p, ok := r.lookup(name); ok {
		return p, nil
	}

	r.mu.RLock()
	locators := slices.Clone(r.locators)
	r.mu.RUnlock()

	var locateErrs []error
	for _, l := range locators {
		err := l.Locate(r.kind, name)
		if errors.Is(err, ErrNotLocated) {
			continue
		}
		if err != nil {
			locateErrs = append(locateErrs, err)
			continue
		}
		if p, ok := r.lookup(name); ok {
			slog.Debug("plugin discovered", "kind", r.kind, "name", name)
			return p, nil
		}
	}

	return Plugin[T, A]{}, &NotFoundError{
		Kind:  r.kind,
		Name:  name,
		Known: r.List(),
		Cause: errors.Join(locateErrs...),
	}
}

// Instantiate loads name and invokes its factory. The caller exclusively
// owns the result.
func (r *Registry[T, A]) Instantiate(name string, args A) (T, error) {
	p, err := r.Load(name)
	if err != nil {
		var zero T
		return zero, err
	}
	inst, err := p.Factory(args)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s %q: %w", r.kind, p.Name, err)
	}
	return inst, nil
}

// List returns the registered plugin names in sorted order.
func (r *Registry[T, A]) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Entries returns a snapshot of all registered plugins sorted by name.
func (r *Registry[T, A]) Entries() []Plugin[T, A] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin[T, A], 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Plugin[T, A]) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}
