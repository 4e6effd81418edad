// Package scope holds the variables visible to an executing template.
//
// A Scope is one flat variable mapping shared by a template and everything
// it includes. Loops shadow their key, value and index variables: entering a
// loop snapshots them, and releasing the loop restores the snapshot, so the
// enclosing scope is left exactly as it was. A Scope also carries the stack
// of include resolvers that mirrors template nesting.
//
// A Scope belongs to a single render and is not safe for concurrent use.
package scope

import (
	"errors"
	"sort"
)

// IndexVar is the variable a loop publishes its 0-based index under.
const IndexVar = "loop_index"

// ErrNoResolver is returned by Include when neither a context nor a fallback
// resolver is available.
var ErrNoResolver = errors.New("no include resolver")

// Resolver renders an included template.
type Resolver interface {
	Include(layout, name string) (string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(layout, name string) (string, error)

// Include calls f(layout, name).
func (f ResolverFunc) Include(layout, name string) (string, error) {
	return f(layout, name)
}

type snapshot struct {
	name  string
	value any
	set   bool
}

type frame struct {
	id    string
	key   string
	value string
	index int
	saved []snapshot
}

// Scope is the variable environment of a render.
type Scope struct {
	vars     map[string]any
	frames   []*frame
	contexts []Resolver
	fallback Resolver
}

// New returns a Scope seeded with a copy of vars. fallback resolves includes
// when no context has been pushed; it may be nil.
func New(vars map[string]any, fallback Resolver) *Scope {
	s := &Scope{
		vars:     make(map[string]any, len(vars)),
		fallback: fallback,
	}
	for k, v := range vars {
		s.vars[k] = v
	}
	return s
}

// Get returns the value of name.
func (s *Scope) Get(name string) (any, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Set assigns name.
func (s *Scope) Set(name string, v any) {
	s.vars[name] = v
}

// SetAll assigns every entry of vars.
func (s *Scope) SetAll(vars map[string]any) {
	for k, v := range vars {
		s.vars[k] = v
	}
}

// Unset removes name.
func (s *Scope) Unset(name string) {
	delete(s.vars, name)
}

// Names returns the defined variable names in sorted order.
func (s *Scope) Names() []string {
	names := make([]string, 0, len(s.vars))
	for k := range s.vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Depth returns the number of loops currently entered.
func (s *Scope) Depth() int {
	return len(s.frames)
}

// Loop is the handle of an entered loop. Release must be called once the
// loop ends, on every exit path.
type Loop struct {
	scope *Scope
	frame *frame
}

// EnterLoop snapshots key, value and IndexVar and pushes a frame for the
// loop id. key may be empty for loops that bind only a value.
func (s *Scope) EnterLoop(id, key, value string) *Loop {
	f := &frame{id: id, key: key, value: value, index: -1}
	for _, name := range []string{key, value, IndexVar} {
		if name == "" || f.saves(name) {
			continue
		}
		v, ok := s.vars[name]
		f.saved = append(f.saved, snapshot{name: name, value: v, set: ok})
	}
	s.frames = append(s.frames, f)
	return &Loop{scope: s, frame: f}
}

func (f *frame) saves(name string) bool {
	for _, snap := range f.saved {
		if snap.name == name {
			return true
		}
	}
	return false
}

// ID returns the id the loop was entered with.
func (l *Loop) ID() string {
	return l.frame.id
}

// Index returns the index of the current iteration, or -1 before the first.
func (l *Loop) Index() int {
	return l.frame.index
}

// Iterate advances the loop and publishes its index and bindings.
func (l *Loop) Iterate(key, value any) {
	f := l.frame
	f.index++
	s := l.scope
	s.vars[IndexVar] = f.index
	if f.key != "" {
		s.vars[f.key] = key
	}
	s.vars[f.value] = value
}

// Release pops the loop's frame and restores the shadowed variables. Frames
// entered after this loop and never released are unwound first. Calling
// Release again is a no-op.
func (l *Loop) Release() {
	s := l.scope
	pos := -1
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i] == l.frame {
			pos = i
			break
		}
	}
	if pos < 0 {
		return
	}
	for i := len(s.frames) - 1; i >= pos; i-- {
		s.restore(s.frames[i])
		s.frames[i] = nil
	}
	s.frames = s.frames[:pos]
}

func (s *Scope) restore(f *frame) {
	for i := len(f.saved) - 1; i >= 0; i-- {
		snap := f.saved[i]
		if snap.set {
			s.vars[snap.name] = snap.value
		} else {
			delete(s.vars, snap.name)
		}
	}
}

// PushContext makes r the resolver for includes until the returned release
// function is called. Release is idempotent and also drops any contexts
// pushed after r.
func (s *Scope) PushContext(r Resolver) (release func()) {
	s.contexts = append(s.contexts, r)
	depth := len(s.contexts)
	released := false
	return func() {
		if released {
			return
		}
		released = true
		if len(s.contexts) >= depth {
			clear(s.contexts[depth-1:])
			s.contexts = s.contexts[:depth-1]
		}
	}
}

// Contexts returns the number of pushed include contexts.
func (s *Scope) Contexts() int {
	return len(s.contexts)
}

// Include renders layout/name through the innermost context, or through the
// fallback resolver when no context is active.
func (s *Scope) Include(layout, name string) (string, error) {
	r := s.fallback
	if n := len(s.contexts); n > 0 {
		r = s.contexts[n-1]
	}
	if r == nil {
		return "", ErrNoResolver
	}
	return r.Include(layout, name)
}
