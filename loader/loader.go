package loader

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
)

// Record is the journal entry of one unit whose initializer has started.
type Record struct {
	Name  string
	Form  Form
	Path  string
	Order int
}

// Loader memoizes unit loading. A unit is acquired from the native table
// first, then from the locator, compiled, and initialized after all of its
// dependencies.
//
// A unit is marked loaded after its dependencies resolve and before its
// initializer runs, so an initializer that requires its own unit gets a
// memoization hit and sees the unit partially initialized. The same holds
// for a dependent required from inside that initializer: if the initializer
// then fails, its unit is unmarked but the dependent stays loaded on top of
// it.
//
// Loads are sequential. The mutex only guards the journal for concurrent
// readers such as an inspection server; Require must not be called from
// several goroutines at once.
type Loader struct {
	locator  Locator
	compiler Compiler
	native   map[string]*Unit

	mu      sync.RWMutex
	loaded  map[string]bool
	journal []Record
	stack   []string

	log commonlog.Logger
}

// New creates a loader. locator and compiler may be nil when only native
// units are used.
func New(locator Locator, compiler Compiler) *Loader {
	return &Loader{
		locator:  locator,
		compiler: compiler,
		native:   make(map[string]*Unit),
		loaded:   make(map[string]bool),
		log:      commonlog.GetLogger("rtl.loader"),
	}
}

// Define adds a native unit. Native units shadow located ones.
func (l *Loader) Define(u *Unit) error {
	if u == nil || u.Name == "" {
		return fmt.Errorf("define: unit has no name")
	}
	if _, ok := l.native[u.Name]; ok {
		return fmt.Errorf("define: unit %s already defined", u.Name)
	}
	l.native[u.Name] = u
	return nil
}

// Require ensures the named unit and its transitive dependencies have run
// their initializers, dependencies first, each at most once.
//
// A failure aborts the current chain. The failing unit stays unloaded so
// a later Require may retry; units that completed stay loaded.
func (l *Loader) Require(name string) error {
	if l.IsLoaded(name) {
		l.log.Debugf("unit %s already loaded", name)
		return nil
	}
	for _, pending := range l.stack {
		if pending == name {
			return &LoadError{Unit: name, Err: fmt.Errorf("%w: %s", ErrCycle, cyclePath(l.stack, name))}
		}
	}

	u, src, err := l.acquire(name)
	if err != nil {
		return &LoadError{Unit: name, Err: err}
	}

	l.stack = append(l.stack, name)
	for _, dep := range u.Uses {
		if err := l.Require(dep); err != nil {
			l.stack = l.stack[:len(l.stack)-1]
			return err
		}
	}
	l.stack = l.stack[:len(l.stack)-1]

	l.mark(name, src)
	if u.Init == nil {
		return nil
	}
	if err := u.Init(); err != nil {
		l.unmark(name)
		return &LoadError{Unit: name, Err: err}
	}
	return nil
}

// RequireAll requires each name in order and stops at the first failure.
func (l *Loader) RequireAll(names ...string) error {
	for _, name := range names {
		if err := l.Require(name); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) acquire(name string) (*Unit, *Source, error) {
	if u, ok := l.native[name]; ok {
		return u, &Source{Name: name, Form: FormNative}, nil
	}
	if l.locator == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	src, err := l.locator.Locate(name)
	if err != nil {
		return nil, nil, err
	}
	if l.compiler == nil {
		return nil, nil, fmt.Errorf("no compiler for %s", src.Path)
	}
	l.log.Infof("compiling %s (%s, %s)", name, src.Form, src.Path)
	u, err := l.compiler.Compile(src)
	if err != nil {
		return nil, nil, err
	}
	if u.Name == "" {
		u.Name = name
	}
	return u, src, nil
}

func (l *Loader) mark(name string, src *Source) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loaded[name] = true
	l.journal = append(l.journal, Record{
		Name:  name,
		Form:  src.Form,
		Path:  src.Path,
		Order: len(l.journal),
	})
}

func (l *Loader) unmark(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.loaded, name)
	for i := len(l.journal) - 1; i >= 0; i-- {
		if l.journal[i].Name == name {
			l.journal = append(l.journal[:i], l.journal[i+1:]...)
			break
		}
	}
	for i := range l.journal {
		l.journal[i].Order = i
	}
}

// IsLoaded reports whether the unit is marked loaded.
func (l *Loader) IsLoaded(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded[name]
}

// Loaded returns the loaded unit names in the order their initializers
// started.
func (l *Loader) Loaded() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, len(l.journal))
	for i, r := range l.journal {
		names[i] = r.Name
	}
	return names
}

// Journal returns a copy of the load records.
func (l *Loader) Journal() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make([]Record, len(l.journal))
	copy(result, l.journal)
	return result
}

// "A -> B -> A"
func cyclePath(stack []string, again string) string {
	i := 0
	for idx, s := range stack {
		if s == again {
			i = idx
			break
		}
	}
	chain := append(append([]string(nil), stack[i:]...), again)
	return strings.Join(chain, " -> ")
}
