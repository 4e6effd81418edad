package scope

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func vars(s *Scope) map[string]any {
	out := make(map[string]any)
	for _, name := range s.Names() {
		out[name], _ = s.Get(name)
	}
	return out
}

func TestLoop_RestoresShadowedVariables(t *testing.T) {
	s := New(map[string]any{"item": "original", IndexVar: 7}, nil)
	before := vars(s)

	loop := s.EnterLoop("item_0", "", "item")
	for _, v := range []any{1, 2} {
		loop.Iterate(nil, v)
	}
	if got, _ := s.Get("item"); got != 2 {
		t.Errorf("item inside loop = %v, want 2", got)
	}
	if got, _ := s.Get(IndexVar); got != 1 {
		t.Errorf("%s inside loop = %v, want 1", IndexVar, got)
	}
	loop.Release()

	if diff := cmp.Diff(before, vars(s)); diff != "" {
		t.Errorf("scope not restored (-want +got):\n%s", diff)
	}
}

func TestLoop_UnsetVariablesAreRemoved(t *testing.T) {
	s := New(nil, nil)
	loop := s.EnterLoop("k_v_0", "k", "v")
	loop.Iterate("a", 1)
	loop.Release()

	for _, name := range []string{"k", "v", IndexVar} {
		if _, ok := s.Get(name); ok {
			t.Errorf("%s should be unset after the loop", name)
		}
	}
}

func TestLoop_NestedSameNames(t *testing.T) {
	s := New(map[string]any{"x": "outer-start"}, nil)

	outer := s.EnterLoop("x_0", "", "x")
	outer.Iterate(nil, "a")

	inner := s.EnterLoop("x_1", "", "x")
	inner.Iterate(nil, "i1")
	inner.Iterate(nil, "i2")
	inner.Iterate(nil, "i3")
	inner.Release()

	if got, _ := s.Get("x"); got != "a" {
		t.Errorf("outer binding after inner loop = %v, want a", got)
	}
	if got, _ := s.Get(IndexVar); got != 0 {
		t.Errorf("outer index after inner loop = %v, want 0", got)
	}
	if outer.Index() != 0 {
		t.Errorf("outer.Index() = %d, want 0", outer.Index())
	}

	outer.Iterate(nil, "b")
	if got, _ := s.Get(IndexVar); got != 1 {
		t.Errorf("outer index on second pass = %v, want 1", got)
	}
	outer.Release()

	if got, _ := s.Get("x"); got != "outer-start" {
		t.Errorf("x after both loops = %v, want outer-start", got)
	}
	if s.Depth() != 0 {
		t.Errorf("Depth() = %d, want 0", s.Depth())
	}
}

func TestLoop_ReleaseUnwindsAbandonedFrames(t *testing.T) {
	s := New(map[string]any{"a": 1, "b": 2}, nil)
	outer := s.EnterLoop("a_0", "", "a")
	outer.Iterate(nil, 10)
	inner := s.EnterLoop("b_1", "", "b")
	inner.Iterate(nil, 20)

	// An error inside the inner loop skips its exit; the outer release must
	// still restore everything.
	outer.Release()
	if diff := cmp.Diff(map[string]any{"a": 1, "b": 2}, vars(s)); diff != "" {
		t.Errorf("scope not restored (-want +got):\n%s", diff)
	}

	inner.Release()
	outer.Release()
	if s.Depth() != 0 {
		t.Errorf("Depth() = %d after repeated releases, want 0", s.Depth())
	}
}

func TestLoop_SameKeyAndValueName(t *testing.T) {
	s := New(map[string]any{"x": "keep"}, nil)
	loop := s.EnterLoop("x_x_0", "x", "x")
	loop.Iterate("key", "value")
	if got, _ := s.Get("x"); got != "value" {
		t.Errorf("value binding should win, got %v", got)
	}
	loop.Release()
	if got, _ := s.Get("x"); got != "keep" {
		t.Errorf("x = %v after loop, want keep", got)
	}
}

func TestInclude_ContextStack(t *testing.T) {
	resolver := func(tag string) Resolver {
		return ResolverFunc(func(layout, name string) (string, error) {
			return tag + ":" + layout + "/" + name, nil
		})
	}
	s := New(nil, resolver("fallback"))

	got, err := s.Include("", "header")
	if err != nil || got != "fallback:/header" {
		t.Fatalf("Include() = %q, %v", got, err)
	}

	releaseOuter := s.PushContext(resolver("outer"))
	releaseInner := s.PushContext(resolver("inner"))
	if got, _ = s.Include("main", "x"); got != "inner:main/x" {
		t.Errorf("innermost context not used: %q", got)
	}
	releaseInner()
	if got, _ = s.Include("", "x"); got != "outer:/x" {
		t.Errorf("outer context not restored: %q", got)
	}

	// A stale release must not pop a context pushed later.
	releaseAgain := s.PushContext(resolver("again"))
	releaseInner()
	if got, _ = s.Include("", "x"); got != "again:/x" {
		t.Errorf("second release popped the wrong context: %q", got)
	}
	releaseAgain()
	releaseOuter()
	if s.Contexts() != 0 {
		t.Errorf("Contexts() = %d, want 0", s.Contexts())
	}
}

func TestInclude_NoResolver(t *testing.T) {
	s := New(nil, nil)
	if _, err := s.Include("", "x"); !errors.Is(err, ErrNoResolver) {
		t.Errorf("expected ErrNoResolver, got %v", err)
	}
}

func TestNew_CopiesVariables(t *testing.T) {
	src := map[string]any{"a": 1}
	s := New(src, nil)
	s.Set("a", 2)
	s.Set("b", 3)
	s.Unset("a")
	if diff := cmp.Diff(map[string]any{"a": 1}, src); diff != "" {
		t.Errorf("source map modified (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"b"}, s.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}
