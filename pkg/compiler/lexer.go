package compiler

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokText
	tokEchoOpen    // {{
	tokEchoClose   // }}
	tokDoubleOpen  // {{{
	tokDoubleClose // }}}
	tokTagOpen     // {%
	tokTagClose    // %}
	tokVar         // $name
	tokIdent
	tokString
	tokInt
	tokFloat
	tokDot
	tokHash
	tokPipe
	tokLParen
	tokRParen
	tokComma
	tokArrow // =>
	tokOp
)

var tokenNames = map[tokenKind]string{
	tokEOF:         "end of template",
	tokText:        "text",
	tokEchoOpen:    "{{",
	tokEchoClose:   "}}",
	tokDoubleOpen:  "{{{",
	tokDoubleClose: "}}}",
	tokTagOpen:     "{%",
	tokTagClose:    "%}",
	tokVar:         "variable",
	tokIdent:       "identifier",
	tokString:      "string",
	tokInt:         "integer",
	tokFloat:       "number",
	tokDot:         ".",
	tokHash:        "#",
	tokPipe:        "|",
	tokLParen:      "(",
	tokRParen:      ")",
	tokComma:       ",",
	tokArrow:       "=>",
	tokOp:          "operator",
}

func (k tokenKind) String() string {
	if s, ok := tokenNames[k]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(k))
}

type token struct {
	kind tokenKind
	val  string
	line int
	col  int
}

func (t token) String() string {
	switch t.kind {
	case tokVar:
		return "$" + t.val
	case tokIdent, tokInt, tokFloat, tokOp:
		return fmt.Sprintf("%q", t.val)
	case tokString:
		return fmt.Sprintf("string %q", t.val)
	}
	return t.kind.String()
}

// lexer splits template source into text runs and the tokens of each tag.
// String literals are consumed whole, so delimiters, dots and pipes inside
// quotes never leak out as syntax.
type lexer struct {
	src    string
	pos    int
	line   int
	col    int
	tokens []token
}

func lex(src string) ([]token, error) {
	l := &lexer{src: src, line: 1, col: 1}
	if err := l.run(); err != nil {
		return nil, err
	}
	return l.tokens, nil
}

func (l *lexer) errorf(line, col int, format string, args ...any) error {
	return &SyntaxError{Line: line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) emit(kind tokenKind, val string, line, col int) {
	l.tokens = append(l.tokens, token{kind: kind, val: val, line: line, col: col})
}

// advance moves the cursor n bytes forward, tracking line and column.
func (l *lexer) advance(n int) {
	for i := 0; i < n && l.pos < len(l.src); i++ {
		if l.src[l.pos] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.pos++
	}
}

func (l *lexer) run() error {
	for l.pos < len(l.src) {
		next := l.nextOpener()
		if next > l.pos {
			line, col := l.line, l.col
			text := l.src[l.pos:next]
			l.advance(len(text))
			l.emit(tokText, text, line, col)
		}
		if l.pos >= len(l.src) {
			break
		}

		line, col := l.line, l.col
		rest := l.src[l.pos:]
		var err error
		switch {
		case strings.HasPrefix(rest, "{#"):
			end := strings.Index(rest[2:], "#}")
			if end < 0 {
				return l.errorf(line, col, "unclosed comment")
			}
			l.advance(end + 4)
		case strings.HasPrefix(rest, "{{{"):
			l.advance(3)
			l.emit(tokDoubleOpen, "{{{", line, col)
			err = l.lexInside("}}}", tokDoubleClose, line, col)
		case strings.HasPrefix(rest, "{{"):
			l.advance(2)
			l.emit(tokEchoOpen, "{{", line, col)
			err = l.lexInside("}}", tokEchoClose, line, col)
		default:
			l.advance(2)
			l.emit(tokTagOpen, "{%", line, col)
			err = l.lexInside("%}", tokTagClose, line, col)
		}
		if err != nil {
			return err
		}
	}
	l.emit(tokEOF, "", l.line, l.col)
	return nil
}

// nextOpener returns the offset of the next "{{", "{%" or "{#", or len(src).
func (l *lexer) nextOpener() int {
	for i := l.pos; i < len(l.src)-1; i++ {
		if l.src[i] != '{' {
			continue
		}
		switch l.src[i+1] {
		case '{', '%', '#':
			return i
		}
	}
	return len(l.src)
}

func (l *lexer) lexInside(closer string, closeKind tokenKind, openLine, openCol int) error {
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			return l.errorf(openLine, openCol, "unclosed %s", tokenNames[closeKind-1])
		}
		line, col := l.line, l.col
		rest := l.src[l.pos:]
		if strings.HasPrefix(rest, closer) {
			l.advance(len(closer))
			l.emit(closeKind, closer, line, col)
			return nil
		}

		c := rest[0]
		switch {
		case c == '$':
			name := scanIdent(rest[1:])
			if name == "" {
				return l.errorf(line, col, "expected a variable name after $")
			}
			l.advance(1 + len(name))
			l.emit(tokVar, name, line, col)
		case isIdentStart(c):
			name := scanIdent(rest)
			l.advance(len(name))
			l.emit(tokIdent, name, line, col)
		case isDigit(c):
			if err := l.lexNumber(line, col); err != nil {
				return err
			}
		case c == '"' || c == '\'':
			if err := l.lexString(c, line, col); err != nil {
				return err
			}
		default:
			if err := l.lexPunct(rest, line, col); err != nil {
				return err
			}
		}
	}
}

func (l *lexer) lexPunct(rest string, line, col int) error {
	two := ""
	if len(rest) >= 2 {
		two = rest[:2]
	}
	switch two {
	case "||", "&&", "==", "!=", "<=", ">=":
		l.advance(2)
		l.emit(tokOp, two, line, col)
		return nil
	case "=>":
		l.advance(2)
		l.emit(tokArrow, two, line, col)
		return nil
	}

	c := rest[0]
	simple := map[byte]tokenKind{
		'.': tokDot, '#': tokHash, '|': tokPipe,
		'(': tokLParen, ')': tokRParen, ',': tokComma,
	}
	if kind, ok := simple[c]; ok {
		l.advance(1)
		l.emit(kind, string(c), line, col)
		return nil
	}
	switch c {
	case '!', '<', '>', '+', '-', '*', '/', '%':
		l.advance(1)
		l.emit(tokOp, string(c), line, col)
		return nil
	}
	return l.errorf(line, col, "unexpected character %q", c)
}

func (l *lexer) lexNumber(line, col int) error {
	rest := l.src[l.pos:]
	i := 0
	for i < len(rest) && isDigit(rest[i]) {
		i++
	}
	kind := tokInt
	// "1.5" is a float, "1.name" is an integer followed by an accessor.
	if i+1 < len(rest) && rest[i] == '.' && isDigit(rest[i+1]) {
		i++
		for i < len(rest) && isDigit(rest[i]) {
			i++
		}
		kind = tokFloat
	}
	if i < len(rest) && isIdentStart(rest[i]) {
		return l.errorf(line, col, "malformed number %q", rest[:i+1])
	}
	l.advance(i)
	l.emit(kind, rest[:i], line, col)
	return nil
}

func (l *lexer) lexString(quote byte, line, col int) error {
	var sb strings.Builder
	i := 1
	rest := l.src[l.pos:]
	for {
		if i >= len(rest) {
			return l.errorf(line, col, "unterminated string literal")
		}
		c := rest[i]
		if c == quote {
			i++
			break
		}
		if c == '\\' && i+1 < len(rest) {
			i++
			switch rest[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				sb.WriteByte(rest[i])
			}
			i++
			continue
		}
		sb.WriteByte(c)
		i++
	}
	l.advance(i)
	l.emit(tokString, sb.String(), line, col)
	return nil
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.advance(1)
		default:
			return
		}
	}
}

func scanIdent(s string) string {
	i := 0
	for i < len(s) && (isIdentStart(s[i]) || (i > 0 && isDigit(s[i]))) {
		i++
	}
	return s[:i]
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
