package modifier

import (
	"sort"
	"sync"
)

// Modifier transforms an interpolated value.
type Modifier interface {
	Transform(v any) any
}

// Func adapts an ordinary function to the Modifier interface.
type Func func(v any) any

// Transform calls f(v).
func (f Func) Transform(v any) any {
	return f(v)
}

// Descriptor describes a registered modifier.
type Descriptor struct {
	Name     string
	Modifier Modifier
	// Priority orders a pipe chain: the highest priority is applied last.
	Priority int
	// Escapes is false for modifiers that produce markup. A single
	// non-escaping modifier in a chain disables the default HTML escape.
	Escapes bool

	seq uint64
}

// Registry is the table of modifiers available to pipe chains.
// All methods are concurrent-safe.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Descriptor
	seq     uint64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Descriptor)}
}

// Add registers m under name, replacing any previous registration.
// A replaced modifier moves to the end of the registration order.
func (r *Registry) Add(name string, m Modifier, priority int, escapes bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.entries[name] = Descriptor{
		Name:     name,
		Modifier: m,
		Priority: priority,
		Escapes:  escapes,
		seq:      r.seq,
	}
}

// AddFunc is a shorthand for Add(name, Func(fn), priority, escapes).
func (r *Registry) AddFunc(name string, fn func(any) any, priority int, escapes bool) {
	r.Add(name, Func(fn), priority, escapes)
}

// Remove unregisters name. Removing an unknown name is a no-op.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.entries[name]
	return d, ok
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	descs := make([]Descriptor, 0, len(r.entries))
	for _, d := range r.entries {
		descs = append(descs, d)
	}
	r.mu.RUnlock()

	sort.Slice(descs, func(i, j int) bool { return descs[i].seq < descs[j].seq })
	names := make([]string, len(descs))
	for i, d := range descs {
		names[i] = d.Name
	}
	return names
}

// Resolve maps a pipe chain onto registered descriptors. Unknown names are
// dropped without error and repeated names collapse to one occurrence. The
// result is ordered by priority, highest first; equal priorities keep their
// registration order. The first element is the outermost transform.
// Duplicates collapse by name: Go funcs are not comparable, so two names
// registered with the same transform are both applied.
func (r *Registry) Resolve(names []string) []Descriptor {
	r.mu.RLock()
	seen := make(map[string]struct{}, len(names))
	descs := make([]Descriptor, 0, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		d, ok := r.entries[name]
		if !ok {
			continue
		}
		seen[name] = struct{}{}
		descs = append(descs, d)
	}
	r.mu.RUnlock()

	sort.SliceStable(descs, func(i, j int) bool {
		if descs[i].Priority != descs[j].Priority {
			return descs[i].Priority > descs[j].Priority
		}
		return descs[i].seq < descs[j].seq
	})
	return descs
}

// Apply runs v through descs as ordered by Resolve: the last descriptor is
// applied first and the first one wraps everything else.
func Apply(descs []Descriptor, v any) any {
	for i := len(descs) - 1; i >= 0; i-- {
		v = descs[i].Modifier.Transform(v)
	}
	return v
}

// Escapes reports whether output produced by descs still needs the default
// HTML escape, which is the case only when every descriptor escapes.
func Escapes(descs []Descriptor) bool {
	for _, d := range descs {
		if !d.Escapes {
			return false
		}
	}
	return true
}
