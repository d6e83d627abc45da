package plugin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	goplugin "plugin"
	"sync"
)

// Locator makes a plugin available on demand. A successful Locate must have
// registered the plugin with its registry before returning. Locators
// without a candidate return ErrNotLocated.
type Locator interface {
	Locate(kind, name string) error
}

// FuncLocator runs an in-process provider the first time a name is
// requested. Providers typically call Registry.Register.
type FuncLocator struct {
	Kind      string
	Providers map[string]func() error

	mu   sync.Mutex
	done map[string]bool
}

// Locate implements Locator.
func (l *FuncLocator) Locate(kind, name string) error {
	if kind != l.Kind {
		return ErrNotLocated
	}
	provide, ok := l.Providers[name]
	if !ok {
		return ErrNotLocated
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done[name] {
		// Already provided once; a second miss means the provider did not
		// register what it promised.
		return fmt.Errorf("plugin: provider for %s/%s did not register it", kind, name)
	}
	if err := provide(); err != nil {
		return fmt.Errorf("plugin: provider for %s/%s: %w", kind, name, err)
	}
	if l.done == nil {
		l.done = make(map[string]bool)
	}
	l.done[name] = true
	return nil
}

// RegisterSymbol is the symbol a shared-object plugin must export. Its type
// must be func() error; it registers the plugin with the proper registry.
const RegisterSymbol = "Register"

// DirLocator discovers shared-object plugins named <kind>_<name>.so in a
// list of directories, searched in order.
type DirLocator struct {
	Dirs []string

	// open is swapped in tests; defaults to the Go plugin loader.
	open func(path string) (func() error, error)
}

// NewDirLocator creates a locator searching dirs.
func NewDirLocator(dirs ...string) *DirLocator {
	return &DirLocator{Dirs: dirs}
}

// FileName returns the shared-object file name for a plugin.
func FileName(kind, name string) string {
	return kind + "_" + name + ".so"
}

// Locate implements Locator.
func (l *DirLocator) Locate(kind, name string) error {
	file := FileName(kind, name)
	for _, dir := range l.Dirs {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, file)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("plugin: stat %s: %w", path, err)
		}

		open := l.open
		if open == nil {
			open = openSharedObject
		}
		register, err := open(path)
		if err != nil {
			return fmt.Errorf("plugin: open %s: %w", path, err)
		}
		if err := register(); err != nil {
			return fmt.Errorf("plugin: register %s: %w", path, err)
		}
		return nil
	}
	return ErrNotLocated
}

func openSharedObject(path string) (func() error, error) {
	p, err := goplugin.Open(path)
	if err != nil {
		return nil, err
	}
	sym, err := p.Lookup(RegisterSymbol)
	if err != nil {
		return nil, err
	}
	register, ok := sym.(func() error)
	if !ok {
		return nil, fmt.Errorf("symbol %s has type %T, want func() error", RegisterSymbol, sym)
	}
	return register, nil
}
