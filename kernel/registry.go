package kernel

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/pthm-cable/stablefluid/grid"
)

// Provider supplies field storage and pass programs.
type Provider interface {
	grid.Allocator
	Program(name string) (*Program, error)
}

// Registry is the in-process Provider: fields live on the heap and
// programs are registered by name.
type Registry struct {
	mu       sync.RWMutex
	programs map[string]*Program
	live     int
}

// NewRegistry creates a registry holding the given programs.
func NewRegistry(programs ...Program) (*Registry, error) {
	r := &Registry{programs: make(map[string]*Program)}
	for _, p := range programs {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a program. Names must be unique and the program must be
// able to bind.
func (r *Registry) Register(p Program) error {
	if p.Name == "" {
		return errors.New("kernel: program without name")
	}
	if p.Bind == nil {
		return fmt.Errorf("kernel: program %q has no Bind", p.Name)
	}
	if p.Inputs < 0 {
		return fmt.Errorf("kernel: program %q declares %d inputs", p.Name, p.Inputs)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.programs[p.Name]; dup {
		return fmt.Errorf("kernel: program %q already registered", p.Name)
	}
	r.programs[p.Name] = &p
	return nil
}

// Program implements Provider.
func (r *Registry) Program(name string) (*Program, error) {
	r.mu.RLock()
	p, ok := r.programs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPassUnavailable, name)
	}
	return p, nil
}

// Names returns the registered pass names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.programs))
	for n := range r.programs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewField implements grid.Allocator.
func (r *Registry) NewField(kind grid.Kind, w, h int) (*grid.Field, error) {
	f, err := grid.NewField(kind, w, h)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.live++
	r.mu.Unlock()
	return f, nil
}

// ReleaseField implements grid.Allocator.
func (r *Registry) ReleaseField(f *grid.Field) {
	if f == nil {
		return
	}
	grid.HeapAllocator{}.ReleaseField(f)
	r.mu.Lock()
	r.live--
	r.mu.Unlock()
}

// LiveFields returns the number of fields allocated and not yet released.
func (r *Registry) LiveFields() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live
}

// Link resolves every named pass up front, so a missing program fails at
// construction instead of mid-frame.
func Link(p Provider, names ...string) (map[string]*Program, error) {
	linked := make(map[string]*Program, len(names))
	var errs []error
	for _, n := range names {
		prog, err := p.Program(n)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		linked[n] = prog
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return linked, nil
}
