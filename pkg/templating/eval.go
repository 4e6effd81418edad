package templating

import (
	"fmt"

	"github.com/CTAG07/Nepenthes/pkg/compiler"
	"github.com/CTAG07/Nepenthes/pkg/value"
)

func (ex *executor) eval(e *compiler.Expr) (any, error) {
	if e == nil {
		return nil, nil
	}
	switch e.Kind {
	case compiler.ExprLiteral:
		return e.Value(), nil

	case compiler.ExprVar:
		v, _ := ex.call.scope.Get(e.Name)
		return ex.walk(v, e.Path)

	case compiler.ExprLang:
		return ex.call.translate(e.Name), nil

	case compiler.ExprCall:
		return ex.evalCall(e)

	case compiler.ExprUnary:
		x, err := ex.eval(e.X)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case "!":
			return !value.Truthy(x), nil
		case "-":
			return value.Negate(x)
		}
		return nil, fmt.Errorf("unknown operator %q", e.Op)

	case compiler.ExprBinary:
		return ex.evalBinary(e)
	}
	return nil, fmt.Errorf("unknown expression kind %q", e.Kind)
}

// walk applies a variable's accessor path. Missing members resolve to nil.
func (ex *executor) walk(v any, path []compiler.Accessor) (any, error) {
	for _, acc := range path {
		if acc.Key == nil {
			v = value.Field(v, acc.Field)
			continue
		}
		key, err := ex.eval(acc.Key)
		if err != nil {
			return nil, err
		}
		v = value.Index(v, key)
	}
	return v, nil
}

func (ex *executor) evalCall(e *compiler.Expr) (any, error) {
	args := make([]any, len(e.Args))
	for i, a := range e.Args {
		v, err := ex.eval(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	if e.X != nil {
		fn, err := ex.eval(e.X)
		if err != nil {
			return nil, err
		}
		return callFunc("$"+e.X.Name, fn, args)
	}
	fn, ok := ex.call.funcs[e.Name]
	if !ok {
		return nil, fmt.Errorf("unknown function %q", e.Name)
	}
	return callFunc(e.Name, fn, args)
}

func (ex *executor) evalBinary(e *compiler.Expr) (any, error) {
	x, err := ex.eval(e.X)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "||":
		if value.Truthy(x) {
			return true, nil
		}
		y, err := ex.eval(e.Y)
		return value.Truthy(y), err
	case "&&":
		if !value.Truthy(x) {
			return false, nil
		}
		y, err := ex.eval(e.Y)
		return value.Truthy(y), err
	}

	y, err := ex.eval(e.Y)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "==":
		return value.Equal(x, y), nil
	case "!=":
		return !value.Equal(x, y), nil
	case "<":
		return value.Compare(x, y) < 0, nil
	case "<=":
		return value.Compare(x, y) <= 0, nil
	case ">":
		return value.Compare(x, y) > 0, nil
	case ">=":
		return value.Compare(x, y) >= 0, nil
	}
	return value.Arith(e.Op, x, y)
}

// translate resolves a language key. Unknown keys render as themselves.
func (c *renderCall) translate(key string) string {
	if c.translator == nil {
		return key
	}
	if s, ok := c.translator.Translate(key); ok {
		return s
	}
	return key
}
