package compiler

// LiteralType identifies the type of a literal expression.
type LiteralType string

const (
	LitString LiteralType = "string"
	LitInt    LiteralType = "int"
	LitFloat  LiteralType = "float"
	LitBool   LiteralType = "bool"
	LitNull   LiteralType = "null"
)

// ExprKind identifies the shape of an Expr.
type ExprKind string

const (
	ExprLiteral ExprKind = "lit"
	ExprVar     ExprKind = "var"
	ExprLang    ExprKind = "lang"
	ExprCall    ExprKind = "call"
	ExprUnary   ExprKind = "unary"
	ExprBinary  ExprKind = "binary"
)

// Expr is an expression tree. It is shared by the parser and the compiled
// Program, so every field is serializable.
type Expr struct {
	Kind ExprKind `json:"kind"`

	// Literal payload.
	Lit   LiteralType `json:"lit,omitempty"`
	Str   string      `json:"str,omitempty"`
	Int   int64       `json:"int,omitempty"`
	Float float64     `json:"float,omitempty"`
	Bool  bool        `json:"bool,omitempty"`

	// Name is the variable name, language key or function name.
	Name string     `json:"name,omitempty"`
	Path []Accessor `json:"path,omitempty"`
	Args []*Expr    `json:"args,omitempty"`

	// Op, X and Y describe operators; X is also the callee of a call on a
	// variable.
	Op string `json:"op,omitempty"`
	X  *Expr  `json:"x,omitempty"`
	Y  *Expr  `json:"y,omitempty"`
}

// Accessor is one step of a variable path: ".field" or "#key".
type Accessor struct {
	Field string `json:"field,omitempty"`
	Key   *Expr  `json:"key,omitempty"`
}

// Value returns the Go value of a literal expression.
func (e *Expr) Value() any {
	switch e.Lit {
	case LitString:
		return e.Str
	case LitInt:
		return e.Int
	case LitFloat:
		return e.Float
	case LitBool:
		return e.Bool
	}
	return nil
}

// Node is a statement in a parsed template.
type Node interface {
	node()
}

// TextNode is literal template text.
type TextNode struct {
	Line int
	Text string
}

// EchoNode is an interpolation.
type EchoNode struct {
	Line      int
	Expr      *Expr
	Modifiers []string
	Raw       bool
	Double    bool
}

// IfBranch is one "if" or "elseif" arm.
type IfBranch struct {
	Line int
	Cond *Expr
	Body []Node
}

// IfNode is a conditional block.
type IfNode struct {
	Line     int
	Branches []IfBranch
	Else     []Node
}

// ForeachNode is a loop block. Key is empty for the single-variable form.
type ForeachNode struct {
	Line       int
	Collection *Expr
	Key        string
	Value      string
	Body       []Node
}

// IncludeNode renders another template in place.
type IncludeNode struct {
	Line   int
	Layout string
	Name   string
}

func (*TextNode) node()    {}
func (*EchoNode) node()    {}
func (*IfNode) node()      {}
func (*ForeachNode) node() {}
func (*IncludeNode) node() {}
