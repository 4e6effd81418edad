package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// SyntaxError reports malformed template source. Line and Col are 1-based.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d:%d: %s", e.Line, e.Col, e.Msg)
}

type parser struct {
	toks []token
	pos  int
}

// Parse turns template source into its syntax tree. Unbalanced or misplaced
// control tags are reported here, before any artifact is produced.
func Parse(src string) ([]Node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	nodes, stop, err := p.parseBlock(nil)
	if err != nil {
		return nil, err
	}
	if stop.kind != tokEOF {
		return nil, p.errorAt(stop, "unexpected {%% %s %%}", stop.val)
	}
	return nodes, nil
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) peekAt(offset int) token {
	if p.pos+offset >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+offset]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorAt(t token, format string, args ...any) error {
	return &SyntaxError{Line: t.line, Col: t.col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, p.errorAt(t, "expected %s, found %s", kind, t)
	}
	return t, nil
}

func (p *parser) expectKeyword(word string) error {
	t := p.next()
	if t.kind != tokIdent || t.val != word {
		return p.errorAt(t, "expected %q, found %s", word, t)
	}
	return nil
}

// parseBlock collects nodes until EOF or a tag whose keyword is in stop.
// The returned token is the stop keyword (its tag opener already consumed)
// or the EOF token.
func (p *parser) parseBlock(stop []string) ([]Node, token, error) {
	var nodes []Node
	for {
		t := p.peek()
		switch t.kind {
		case tokEOF:
			return nodes, t, nil
		case tokText:
			p.next()
			nodes = append(nodes, &TextNode{Line: t.line, Text: t.val})
		case tokEchoOpen, tokDoubleOpen:
			n, err := p.parseEcho()
			if err != nil {
				return nil, t, err
			}
			nodes = append(nodes, n)
		case tokTagOpen:
			kw := p.peekAt(1)
			if kw.kind != tokIdent {
				return nil, t, p.errorAt(kw, "expected a tag keyword, found %s", kw)
			}
			for _, s := range stop {
				if kw.val == s {
					p.next()
					p.next()
					return nodes, kw, nil
				}
			}
			n, err := p.parseTag()
			if err != nil {
				return nil, t, err
			}
			nodes = append(nodes, n)
		default:
			return nil, t, p.errorAt(t, "unexpected %s", t)
		}
	}
}

func (p *parser) parseTag() (Node, error) {
	open := p.next()
	kw := p.next()
	switch kw.val {
	case "if":
		return p.parseIf(open)
	case "foreach":
		return p.parseForeach(open)
	case "include":
		return p.parseInclude(open)
	case "elseif", "elif", "else", "endif", "endforeach":
		return nil, p.errorAt(kw, "unexpected {%% %s %%} without a matching opening tag", kw.val)
	}
	return nil, p.errorAt(kw, "unknown tag %q", kw.val)
}

func (p *parser) parseIf(open token) (Node, error) {
	n := &IfNode{Line: open.line}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err = p.expect(tokTagClose); err != nil {
		return nil, err
	}
	branch := IfBranch{Line: open.line, Cond: cond}

	for {
		body, stop, err := p.parseBlock([]string{"elseif", "elif", "else", "endif"})
		if err != nil {
			return nil, err
		}
		branch.Body = body
		n.Branches = append(n.Branches, branch)

		switch stop.val {
		case "elseif", "elif":
			cond, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err = p.expect(tokTagClose); err != nil {
				return nil, err
			}
			branch = IfBranch{Line: stop.line, Cond: cond}
		case "else":
			if _, err = p.expect(tokTagClose); err != nil {
				return nil, err
			}
			elseBody, end, err := p.parseBlock([]string{"endif"})
			if err != nil {
				return nil, err
			}
			if end.kind == tokEOF {
				return nil, p.errorAt(open, "unclosed {%% if %%}: missing {%% endif %%}")
			}
			if _, err = p.expect(tokTagClose); err != nil {
				return nil, err
			}
			n.Else = elseBody
			return n, nil
		case "endif":
			if _, err = p.expect(tokTagClose); err != nil {
				return nil, err
			}
			return n, nil
		default:
			return nil, p.errorAt(open, "unclosed {%% if %%}: missing {%% endif %%}")
		}
	}
}

func (p *parser) parseForeach(open token) (Node, error) {
	coll, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err = p.expectKeyword("as"); err != nil {
		return nil, err
	}
	first, err := p.expect(tokVar)
	if err != nil {
		return nil, err
	}
	n := &ForeachNode{Line: open.line, Collection: coll, Value: first.val}
	if p.peek().kind == tokArrow {
		p.next()
		second, err := p.expect(tokVar)
		if err != nil {
			return nil, err
		}
		n.Key, n.Value = first.val, second.val
	}
	if _, err = p.expect(tokTagClose); err != nil {
		return nil, err
	}

	body, stop, err := p.parseBlock([]string{"endforeach"})
	if err != nil {
		return nil, err
	}
	if stop.kind == tokEOF {
		return nil, p.errorAt(open, "unclosed {%% foreach %%}: missing {%% endforeach %%}")
	}
	if _, err = p.expect(tokTagClose); err != nil {
		return nil, err
	}
	n.Body = body
	return n, nil
}

func (p *parser) parseInclude(open token) (Node, error) {
	arg, err := p.expect(tokString)
	if err != nil {
		return nil, err
	}
	if _, err = p.expect(tokTagClose); err != nil {
		return nil, err
	}
	layout, name := SplitName(arg.val)
	if name == "" {
		return nil, p.errorAt(arg, "include needs a template name")
	}
	return &IncludeNode{Line: open.line, Layout: layout, Name: name}, nil
}

// SplitName splits "layout/name" into its layout and template name. The last
// path segment is the name; everything before it is the layout.
func SplitName(ref string) (layout, name string) {
	ref = strings.Trim(strings.TrimSpace(ref), "/")
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return "", ref
}

func (p *parser) parseEcho() (Node, error) {
	open := p.next()
	closeKind := tokEchoClose
	if open.kind == tokDoubleOpen {
		closeKind = tokDoubleClose
	}

	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	n := &EchoNode{Line: open.line, Expr: expr, Double: open.kind == tokDoubleOpen}
	for p.peek().kind == tokPipe {
		p.next()
		name, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		if name.val == "raw" {
			n.Raw = true
			continue
		}
		n.Modifiers = append(n.Modifiers, name.val)
	}
	if _, err = p.expect(closeKind); err != nil {
		return nil, err
	}
	return n, nil
}

func binaryOp(t token) (string, int) {
	switch t.kind {
	case tokOp:
		switch t.val {
		case "||":
			return t.val, 1
		case "&&":
			return t.val, 2
		case "==", "!=":
			return t.val, 3
		case "<", "<=", ">", ">=":
			return t.val, 4
		case "+", "-":
			return t.val, 5
		case "*", "/", "%":
			return t.val, 6
		}
	case tokIdent:
		switch t.val {
		case "or":
			return "||", 1
		case "and":
			return "&&", 2
		}
	}
	return "", 0
}

func (p *parser) parseExpr() (*Expr, error) {
	return p.parseBinary(1)
}

func (p *parser) parseBinary(minPrec int) (*Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, prec := binaryOp(p.peek())
		if prec == 0 || prec < minPrec {
			return left, nil
		}
		p.next()
		right, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &Expr{Kind: ExprBinary, Op: op, X: left, Y: right}
	}
}

func (p *parser) parseUnary() (*Expr, error) {
	t := p.peek()
	if (t.kind == tokOp && (t.val == "!" || t.val == "-")) || (t.kind == tokIdent && t.val == "not") {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		op := t.val
		if op == "not" {
			op = "!"
		}
		return &Expr{Kind: ExprUnary, Op: op, X: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (*Expr, error) {
	t := p.next()
	switch t.kind {
	case tokVar:
		e := &Expr{Kind: ExprVar, Name: t.val}
		if err := p.parsePath(e); err != nil {
			return nil, err
		}
		if p.peek().kind == tokLParen {
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			return &Expr{Kind: ExprCall, X: e, Args: args}, nil
		}
		return e, nil
	case tokIdent:
		switch t.val {
		case "true", "false":
			return &Expr{Kind: ExprLiteral, Lit: LitBool, Bool: t.val == "true"}, nil
		case "null", "nil":
			return &Expr{Kind: ExprLiteral, Lit: LitNull}, nil
		}
		if p.peek().kind == tokLParen {
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			return &Expr{Kind: ExprCall, Name: t.val, Args: args}, nil
		}
		key := t.val
		for p.peek().kind == tokDot && p.peekAt(1).kind == tokIdent {
			p.next()
			key += "." + p.next().val
		}
		return &Expr{Kind: ExprLang, Name: key}, nil
	case tokString:
		return &Expr{Kind: ExprLiteral, Lit: LitString, Str: t.val}, nil
	case tokInt:
		return intLiteral(p, t)
	case tokFloat:
		f, err := strconv.ParseFloat(t.val, 64)
		if err != nil {
			return nil, p.errorAt(t, "invalid number %q", t.val)
		}
		return &Expr{Kind: ExprLiteral, Lit: LitFloat, Float: f}, nil
	case tokLParen:
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err = p.expect(tokRParen); err != nil {
			return nil, err
		}
		return e, nil
	}
	return nil, p.errorAt(t, "unexpected %s in expression", t)
}

func intLiteral(p *parser, t token) (*Expr, error) {
	i, err := strconv.ParseInt(t.val, 10, 64)
	if err != nil {
		return nil, p.errorAt(t, "invalid integer %q", t.val)
	}
	return &Expr{Kind: ExprLiteral, Lit: LitInt, Int: i}, nil
}

// parsePath reads the ".field" and "#key" accessors following a variable.
func (p *parser) parsePath(e *Expr) error {
	for {
		switch p.peek().kind {
		case tokDot:
			p.next()
			t := p.next()
			switch t.kind {
			case tokIdent:
				e.Path = append(e.Path, Accessor{Field: t.val})
			case tokInt:
				key, err := intLiteral(p, t)
				if err != nil {
					return err
				}
				e.Path = append(e.Path, Accessor{Key: key})
			default:
				return p.errorAt(t, "expected a field name after '.', found %s", t)
			}
		case tokHash:
			p.next()
			t := p.next()
			var key *Expr
			switch t.kind {
			case tokIdent, tokString:
				key = &Expr{Kind: ExprLiteral, Lit: LitString, Str: t.val}
			case tokInt:
				var err error
				if key, err = intLiteral(p, t); err != nil {
					return err
				}
			case tokVar:
				key = &Expr{Kind: ExprVar, Name: t.val}
			default:
				return p.errorAt(t, "expected a key after '#', found %s", t)
			}
			e.Path = append(e.Path, Accessor{Key: key})
		default:
			return nil
		}
	}
}

func (p *parser) parseArgs() ([]*Expr, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	var args []*Expr
	if p.peek().kind == tokRParen {
		p.next()
		return args, nil
	}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		t := p.next()
		switch t.kind {
		case tokComma:
			continue
		case tokRParen:
			return args, nil
		}
		return nil, p.errorAt(t, "expected ',' or ')' in argument list, found %s", t)
	}
}
