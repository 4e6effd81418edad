package compiler

import (
	"encoding/json"
	"errors"
	"fmt"
)

// FormatVersion is bumped whenever the encoded Program layout changes, so
// that artifacts written by an older build are recompiled instead of
// misread.
const FormatVersion = 1

// ErrUnsupportedVersion is returned by Decode for artifacts written with a
// different FormatVersion.
var ErrUnsupportedVersion = errors.New("unsupported compiled template version")

// OpCode names an instruction.
type OpCode string

const (
	// OpText writes Text verbatim.
	OpText OpCode = "text"
	// OpEcho evaluates Expr, applies Modifiers and writes it with Escape.
	OpEcho OpCode = "echo"
	// OpJump continues at Target.
	OpJump OpCode = "jump"
	// OpJumpIfFalse continues at Target when Expr is falsy.
	OpJumpIfFalse OpCode = "jump_if_false"
	// OpLoopEnter evaluates the collection in Expr and opens the loop scope.
	OpLoopEnter OpCode = "loop_enter"
	// OpLoopNext binds the next element, or continues at Target when the
	// collection is exhausted.
	OpLoopNext OpCode = "loop_next"
	// OpLoopExit closes the innermost loop scope.
	OpLoopExit OpCode = "loop_exit"
	// OpInclude renders Layout/Name in place.
	OpInclude OpCode = "include"
)

// EscapeMode selects how an echoed value is escaped.
type EscapeMode string

const (
	EscapeHTML   EscapeMode = "html"
	EscapeNone   EscapeMode = "none"
	EscapeDouble EscapeMode = "double"
)

// Loop identifies a loop and the names it binds.
type Loop struct {
	ID    string `json:"id"`
	Key   string `json:"key,omitempty"`
	Value string `json:"value"`
}

// Op is a single instruction of a Program.
type Op struct {
	Code      OpCode     `json:"op"`
	Line      int        `json:"line,omitempty"`
	Text      string     `json:"text,omitempty"`
	Expr      *Expr      `json:"expr,omitempty"`
	Modifiers []string   `json:"modifiers,omitempty"`
	Escape    EscapeMode `json:"escape,omitempty"`
	Target    int        `json:"target,omitempty"`
	Loop      *Loop      `json:"loop,omitempty"`
	Layout    string     `json:"layout,omitempty"`
	Name      string     `json:"name,omitempty"`
}

// Program is a compiled template: a flat instruction list that the renderer
// executes from the first op to the last.
type Program struct {
	Version int  `json:"version"`
	Ops     []Op `json:"ops"`
}

// Encode serializes p. Encoding is deterministic.
func (p *Program) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// Decode parses an encoded Program and checks its jump targets.
func Decode(data []byte) (*Program, error) {
	var p Program
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode compiled template: %w", err)
	}
	if p.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, p.Version)
	}
	for i, op := range p.Ops {
		switch op.Code {
		case OpJump, OpJumpIfFalse, OpLoopNext:
			if op.Target < 0 || op.Target > len(p.Ops) {
				return nil, fmt.Errorf("compiled template op %d jumps out of range (%d)", i, op.Target)
			}
		}
	}
	return &p, nil
}
