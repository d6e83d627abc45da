package plugin

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter interface {
	Greet() string
}

type staticGreeter string

func (g staticGreeter) Greet() string { return string(g) }

func greeterPlugin(name, greeting string) Plugin[greeter, string] {
	return Plugin[greeter, string]{
		Name: name,
		Doc:  "greets " + greeting,
		Factory: func(suffix string) (greeter, error) {
			return staticGreeter(greeting + suffix), nil
		},
	}
}

func TestInstantiateRegistered(t *testing.T) {
	r := NewRegistry[greeter, string]("greeter", "hello")
	require.NoError(t, r.Register(greeterPlugin("hello", "hi")))

	g, err := r.Instantiate("hello", "!")
	require.NoError(t, err)
	assert.Equal(t, "hi!", g.Greet())
}

func TestInstantiateEmptyNameUsesShortName(t *testing.T) {
	r := NewRegistry[greeter, string]("greeter", "hello")
	require.NoError(t, r.Register(greeterPlugin("hello", "hi")))

	g, err := r.Instantiate("", "")
	require.NoError(t, err)
	assert.Equal(t, "hi", g.Greet())
	assert.Equal(t, "hello", r.ShortName())
	assert.Equal(t, "greeter", r.Kind())
}

func TestUnknownNameListsKnownNames(t *testing.T) {
	r := NewRegistry[greeter, string]("greeter", "hello")
	require.NoError(t, r.Register(greeterPlugin("hello", "hi")))
	require.NoError(t, r.Register(greeterPlugin("bonjour", "salut")))

	_, err := r.Instantiate("hola", "")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "hola", nf.Name)
	assert.Equal(t, []string{"bonjour", "hello"}, nf.Known)
	assert.Contains(t, err.Error(), "bonjour, hello")
}

func TestOverrideAffectsOnlyLaterInstances(t *testing.T) {
	r := NewRegistry[greeter, string]("greeter", "hello")
	require.NoError(t, r.Register(greeterPlugin("hello", "hi")))

	before, err := r.Instantiate("hello", "")
	require.NoError(t, err)

	require.NoError(t, r.Register(greeterPlugin("hello", "hey")))
	after, err := r.Instantiate("hello", "")
	require.NoError(t, err)

	assert.Equal(t, "hi", before.Greet())
	assert.Equal(t, "hey", after.Greet())
	assert.Equal(t, []string{"hello"}, r.List())
}

func TestRegisterRejectsIncompleteEntries(t *testing.T) {
	r := NewRegistry[greeter, string]("greeter", "hello")
	assert.Error(t, r.Register(Plugin[greeter, string]{Name: "x"}))
	assert.Error(t, r.Register(Plugin[greeter, string]{Factory: greeterPlugin("a", "b").Factory}))
}

func TestFactoryErrorIsWrapped(t *testing.T) {
	r := NewRegistry[greeter, string]("greeter", "hello")
	boom := errors.New("boom")
	require.NoError(t, r.Register(Plugin[greeter, string]{
		Name:    "broken",
		Factory: func(string) (greeter, error) { return nil, boom },
	}))

	_, err := r.Instantiate("broken", "")
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsNotFound(err))
}

func TestFuncLocatorLazyDiscovery(t *testing.T) {
	r := NewRegistry[greeter, string]("greeter", "hello")
	calls := 0
	r.AddLocator(&FuncLocator{
		Kind: "greeter",
		Providers: map[string]func() error{
			"lazy": func() error {
				calls++
				return r.Register(greeterPlugin("lazy", "late"))
			},
		},
	})

	assert.Empty(t, r.List())

	g, err := r.Instantiate("lazy", "")
	require.NoError(t, err)
	assert.Equal(t, "late", g.Greet())

	_, err = r.Instantiate("lazy", "")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = r.Instantiate("missing", "")
	assert.True(t, IsNotFound(err))
}

func TestFuncLocatorIgnoresOtherKinds(t *testing.T) {
	l := &FuncLocator{Kind: "linsol", Providers: map[string]func() error{"x": func() error { return nil }}}
	assert.ErrorIs(t, l.Locate("rootfinder", "x"), ErrNotLocated)
}

func TestFuncLocatorProviderThatDoesNotRegister(t *testing.T) {
	r := NewRegistry[greeter, string]("greeter", "hello")
	r.AddLocator(&FuncLocator{
		Kind:      "greeter",
		Providers: map[string]func() error{"liar": func() error { return nil }},
	})

	_, err := r.Instantiate("liar", "")
	assert.True(t, IsNotFound(err))

	// The second attempt surfaces the broken provider as the cause
	_, err = r.Instantiate("liar", "")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Error(t, nf.Cause)
}

func TestDirLocatorSearchesDirectoriesInOrder(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	path := filepath.Join(second, FileName("greeter", "disk"))
	require.NoError(t, os.WriteFile(path, []byte("not really elf"), 0o644))

	r := NewRegistry[greeter, string]("greeter", "hello")
	var opened string
	r.AddLocator(&DirLocator{
		Dirs: []string{first, second},
		open: func(p string) (func() error, error) {
			opened = p
			return func() error { return r.Register(greeterPlugin("disk", "loaded")) }, nil
		},
	})

	g, err := r.Instantiate("disk", "")
	require.NoError(t, err)
	assert.Equal(t, "loaded", g.Greet())
	assert.Equal(t, path, opened)

	_, err = r.Instantiate("absent", "")
	assert.True(t, IsNotFound(err))
}

func TestDirLocatorOpenFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName("greeter", "bad")), nil, 0o644))

	l := &DirLocator{
		Dirs: []string{dir},
		open: func(string) (func() error, error) { return nil, errors.New("bad elf") },
	}
	err := l.Locate("greeter", "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotLocated)
}

func TestConcurrentLookups(t *testing.T) {
	r := NewRegistry[greeter, string]("greeter", "hello")
	require.NoError(t, r.Register(greeterPlugin("hello", "hi")))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				g, err := r.Instantiate("hello", "")
				if assert.NoError(t, err) {
					assert.Equal(t, "hi", g.Greet())
				}
				_ = r.List()
			}
		}()
	}
	wg.Wait()
}
