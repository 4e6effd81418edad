package templating

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/CTAG07/Nepenthes/pkg/compiler"
	"github.com/CTAG07/Nepenthes/pkg/modifier"
	"github.com/CTAG07/Nepenthes/pkg/scope"
	"github.com/CTAG07/Nepenthes/pkg/value"
)

// renderCall is the state of one top-level render, shared by every template
// it includes.
type renderCall struct {
	r          *Renderer
	scope      *scope.Scope
	translator Translator
	funcs      FuncMap
	filters    []OutputFilter
	layout     string
	device     string
	depth      int
}

func (r *Renderer) newCall(vars map[string]any) *renderCall {
	r.mu.RLock()
	c := &renderCall{
		r:          r,
		translator: r.translator,
		funcs:      r.funcs,
		filters:    r.filters,
		layout:     r.layout,
	}
	device := r.device
	globals := r.vars
	r.mu.RUnlock()

	c.device = device.DeviceType()
	c.scope = scope.New(globals, scope.ResolverFunc(func(layout, name string) (string, error) {
		if layout == "" {
			layout = c.layout
		}
		return c.render(layout, name)
	}))
	c.scope.SetAll(vars)
	return c
}

// contextRef resolves includes made by a template. Includes without a layout
// inherit the layout of the including template.
type contextRef struct {
	call   *renderCall
	layout string
}

func (ref contextRef) Include(layout, name string) (string, error) {
	if layout == "" {
		layout = ref.layout
	}
	return ref.call.render(layout, name)
}

// render loads and executes layout/name inside the call's scope.
func (c *renderCall) render(layout, name string) (string, error) {
	if limit := c.r.config.MaxIncludeDepth; limit > 0 && c.depth >= limit {
		return "", fmt.Errorf("%w: %s nested %d levels deep", ErrIncludeDepth, qualified(layout, name), c.depth)
	}
	prog, err := c.r.load(layout, name, c.device)
	if err != nil {
		return "", err
	}

	c.depth++
	release := c.scope.PushContext(contextRef{call: c, layout: layout})
	defer func() {
		release()
		c.depth--
	}()

	var out strings.Builder
	if err = c.execute(qualified(layout, name), prog, &out); err != nil {
		return "", err
	}
	return out.String(), nil
}

type loopState struct {
	handle *scope.Loop
	pairs  []value.Pair
	pos    int
}

type executor struct {
	call  *renderCall
	name  string
	loops map[string]*loopState
}

// execute runs prog, appending its output to out. Loops still open when
// execution stops, on any path, are released before returning.
// A panic raised by host code (a modifier, a method reached through an
// accessor) is returned as a RenderError.
func (c *renderCall) execute(name string, prog *compiler.Program, out *strings.Builder) (err error) {
	ex := &executor{call: c, name: name, loops: make(map[string]*loopState)}
	defer ex.releaseLoops()

	line := 0
	defer func() {
		if p := recover(); p != nil {
			err = &RenderError{Template: name, Line: line, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	ops := prog.Ops
	for pc := 0; pc < len(ops); {
		op := &ops[pc]
		line = op.Line
		next, stepErr := ex.step(op, pc, out)
		if stepErr != nil {
			return &RenderError{Template: name, Line: op.Line, Err: stepErr}
		}
		pc = next
	}
	if len(ex.loops) > 0 {
		return &RenderError{Template: name, Err: errors.New("template ended inside a loop")}
	}
	return nil
}

func (ex *executor) step(op *compiler.Op, pc int, out *strings.Builder) (int, error) {
	switch op.Code {
	case compiler.OpText:
		out.WriteString(op.Text)

	case compiler.OpEcho:
		v, err := ex.eval(op.Expr)
		if err != nil {
			return 0, err
		}
		out.WriteString(ex.format(op, v))

	case compiler.OpJump:
		return op.Target, nil

	case compiler.OpJumpIfFalse:
		v, err := ex.eval(op.Expr)
		if err != nil {
			return 0, err
		}
		if !value.Truthy(v) {
			return op.Target, nil
		}

	case compiler.OpLoopEnter:
		if op.Loop == nil {
			return 0, errors.New("loop_enter without loop")
		}
		coll, err := ex.eval(op.Expr)
		if err != nil {
			return 0, err
		}
		pairs, ok := value.Pairs(coll)
		if !ok {
			ex.call.r.logger.Debug("Loop over a value that is not a collection",
				"template", ex.name, "line", op.Line, "type", fmt.Sprintf("%T", coll))
		}
		if prev := ex.loops[op.Loop.ID]; prev != nil {
			prev.handle.Release()
		}
		ex.loops[op.Loop.ID] = &loopState{
			handle: ex.call.scope.EnterLoop(op.Loop.ID, op.Loop.Key, op.Loop.Value),
			pairs:  pairs,
		}

	case compiler.OpLoopNext:
		st, err := ex.loop(op)
		if err != nil {
			return 0, err
		}
		if st.pos >= len(st.pairs) {
			return op.Target, nil
		}
		p := st.pairs[st.pos]
		st.pos++
		st.handle.Iterate(p.Key, p.Value)

	case compiler.OpLoopExit:
		st, err := ex.loop(op)
		if err != nil {
			return 0, err
		}
		st.handle.Release()
		delete(ex.loops, op.Loop.ID)

	case compiler.OpInclude:
		s, err := ex.call.scope.Include(op.Layout, op.Name)
		if err != nil {
			return 0, err
		}
		out.WriteString(s)

	default:
		return 0, fmt.Errorf("unknown instruction %q", op.Code)
	}
	return pc + 1, nil
}

func (ex *executor) loop(op *compiler.Op) (*loopState, error) {
	if op.Loop == nil {
		return nil, fmt.Errorf("%s without loop", op.Code)
	}
	st := ex.loops[op.Loop.ID]
	if st == nil {
		return nil, fmt.Errorf("%s for loop %s that was never entered", op.Code, op.Loop.ID)
	}
	return st, nil
}

func (ex *executor) releaseLoops() {
	for id, st := range ex.loops {
		st.handle.Release()
		delete(ex.loops, id)
	}
}

// format applies the modifier chain and the escape mode of an echo.
func (ex *executor) format(op *compiler.Op, v any) string {
	if len(op.Modifiers) > 0 {
		descs := make([]modifier.Descriptor, 0, len(op.Modifiers))
		for _, name := range op.Modifiers {
			if d, ok := ex.call.r.modifiers.Lookup(name); ok {
				descs = append(descs, d)
			}
		}
		v = modifier.Apply(descs, v)
	}
	s := value.String(v)
	switch op.Escape {
	case compiler.EscapeNone:
		return s
	case compiler.EscapeDouble:
		return modifier.Nl2br(html.EscapeString(html.EscapeString(s)))
	}
	return html.EscapeString(s)
}
