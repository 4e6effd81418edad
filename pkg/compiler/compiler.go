package compiler

import (
	"fmt"

	"github.com/CTAG07/Nepenthes/pkg/modifier"
)

// Compiler turns template source into Programs. Pipe chains are resolved
// against the modifier registry at compile time, so a Program depends on the
// source and on the registry contents, and on nothing else.
type Compiler struct {
	modifiers *modifier.Registry
}

// New returns a Compiler that resolves pipe chains against modifiers.
func New(modifiers *modifier.Registry) *Compiler {
	if modifiers == nil {
		modifiers = modifier.NewRegistry()
	}
	return &Compiler{modifiers: modifiers}
}

// Compile parses src and generates its Program.
func (c *Compiler) Compile(src string) (*Program, error) {
	nodes, err := Parse(src)
	if err != nil {
		return nil, err
	}
	g := &generator{modifiers: c.modifiers, barrier: -1}
	g.block(nodes)
	return &Program{Version: FormatVersion, Ops: g.ops}, nil
}

type generator struct {
	modifiers *modifier.Registry
	ops       []Op
	loops     int
	// barrier is the index of the last jump target; text is never merged
	// into an op that precedes a target.
	barrier int
}

func (g *generator) emit(op Op) int {
	g.ops = append(g.ops, op)
	return len(g.ops) - 1
}

// patch points the jump at index i to the next op to be emitted.
func (g *generator) patch(i int) {
	g.ops[i].Target = len(g.ops)
	g.barrier = len(g.ops)
}

func (g *generator) block(nodes []Node) {
	for _, n := range nodes {
		switch n := n.(type) {
		case *TextNode:
			g.text(n)
		case *EchoNode:
			g.echo(n)
		case *IfNode:
			g.ifBlock(n)
		case *ForeachNode:
			g.foreach(n)
		case *IncludeNode:
			g.emit(Op{Code: OpInclude, Line: n.Line, Layout: n.Layout, Name: n.Name})
		}
	}
}

func (g *generator) text(n *TextNode) {
	if last := len(g.ops) - 1; last >= 0 && last+1 != g.barrier && g.ops[last].Code == OpText {
		g.ops[last].Text += n.Text
		return
	}
	g.emit(Op{Code: OpText, Line: n.Line, Text: n.Text})
}

func (g *generator) echo(n *EchoNode) {
	descs := g.modifiers.Resolve(n.Modifiers)
	op := Op{Code: OpEcho, Line: n.Line, Expr: n.Expr, Escape: EscapeHTML}
	for _, d := range descs {
		op.Modifiers = append(op.Modifiers, d.Name)
	}
	switch {
	case n.Double:
		op.Escape = EscapeDouble
	case n.Raw || !modifier.Escapes(descs):
		op.Escape = EscapeNone
	}
	g.emit(op)
}

func (g *generator) ifBlock(n *IfNode) {
	var ends []int
	for i, b := range n.Branches {
		skip := g.emit(Op{Code: OpJumpIfFalse, Line: b.Line, Expr: b.Cond})
		g.block(b.Body)
		if i < len(n.Branches)-1 || n.Else != nil {
			ends = append(ends, g.emit(Op{Code: OpJump, Line: b.Line}))
		}
		g.patch(skip)
	}
	g.block(n.Else)
	for _, j := range ends {
		g.patch(j)
	}
}

func (g *generator) foreach(n *ForeachNode) {
	loop := &Loop{ID: g.loopID(n), Key: n.Key, Value: n.Value}
	g.emit(Op{Code: OpLoopEnter, Line: n.Line, Expr: n.Collection, Loop: loop})
	next := g.emit(Op{Code: OpLoopNext, Line: n.Line, Loop: loop})
	g.block(n.Body)
	g.emit(Op{Code: OpJump, Line: n.Line, Target: next})
	g.patch(next)
	g.emit(Op{Code: OpLoopExit, Line: n.Line, Loop: loop})
}

// loopID tags a loop with its bound names and its position in the template,
// which keeps ids unique within a Program and identical across compiles.
func (g *generator) loopID(n *ForeachNode) string {
	id := fmt.Sprintf("%s_%d", n.Value, g.loops)
	if n.Key != "" {
		id = n.Key + "_" + id
	}
	g.loops++
	return id
}
