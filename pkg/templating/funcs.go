package templating

import (
	"fmt"
	"reflect"

	"github.com/CTAG07/Nepenthes/pkg/value"
)

// FuncMap maps function names to Go functions callable from templates.
// A function may return a single value, or a value and an error.
type FuncMap map[string]any

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func defaultFuncs() FuncMap {
	return FuncMap{
		// Logic & Control (from funcs_logic.go)
		"repeat":       repeat,
		"list":         list,
		"default":      fallback,
		"count":        count,
		"join":         join,
		"randomChoice": randomChoice,
		"randomInt":    randomInt,

		// Simple (from funcs_simple.go)
		"add":   add,
		"sub":   sub,
		"div":   div,
		"mult":  mult,
		"max":   max,
		"min":   min,
		"mod":   mod,
		"inc":   inc,
		"dec":   dec,
		"and":   and,
		"or":    or,
		"not":   not,
		"isSet": isSet,
	}
}

// callFunc invokes fn with args converted to its parameter types.
func callFunc(name string, fn any, args []any) (result any, err error) {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, fmt.Errorf("%s is not a function", name)
	}
	rt := rv.Type()
	numIn := rt.NumIn()
	if rt.IsVariadic() {
		if len(args) < numIn-1 {
			return nil, fmt.Errorf("%s expects at least %d arguments, got %d", name, numIn-1, len(args))
		}
	} else if len(args) != numIn {
		return nil, fmt.Errorf("%s expects %d arguments, got %d", name, numIn, len(args))
	}
	if rt.NumOut() == 0 || rt.NumOut() > 2 || (rt.NumOut() == 2 && rt.Out(1) != errorType) {
		return nil, fmt.Errorf("%s must return a value and an optional error", name)
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var t reflect.Type
		if rt.IsVariadic() && i >= numIn-1 {
			t = rt.In(numIn - 1).Elem()
		} else {
			t = rt.In(i)
		}
		if in[i], err = coerce(arg, t); err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", name, i+1, err)
		}
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s panicked: %v", name, p)
		}
	}()
	out := rv.Call(in)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, fmt.Errorf("%s: %w", name, out[1].Interface().(error))
	}
	return out[0].Interface(), nil
}

// coerce converts a template value to t using the same loose rules as
// template expressions.
func coerce(arg any, t reflect.Type) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(t), nil
	}
	av := reflect.ValueOf(arg)
	if av.Type().AssignableTo(t) {
		return av, nil
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if _, ok := value.Number(arg); !ok {
			return reflect.Value{}, fmt.Errorf("cannot use %T as %s", arg, t)
		}
		return reflect.ValueOf(value.Int(arg)).Convert(t), nil
	case reflect.Float32, reflect.Float64:
		if _, ok := value.Number(arg); !ok {
			return reflect.Value{}, fmt.Errorf("cannot use %T as %s", arg, t)
		}
		return reflect.ValueOf(value.Float(arg)).Convert(t), nil
	case reflect.Bool:
		return reflect.ValueOf(value.Truthy(arg)).Convert(t), nil
	case reflect.String:
		return reflect.ValueOf(value.String(arg)).Convert(t), nil
	}
	if av.Type().ConvertibleTo(t) {
		return av.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", av.Type(), t)
}
