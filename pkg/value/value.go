// Package value implements the loose value semantics shared by the compiler
// runtime and the modifier library: stringification, truthiness, comparison,
// arithmetic and accessor lookups over arbitrary Go values.
package value

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// String converts v into the text that an interpolation would emit.
// nil renders as "", booleans as "1" and "", numbers in base 10.
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		if t {
			return "1"
		}
		return ""
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return formatFloat(t)
	case float32:
		return formatFloat(float64(t))
	case fmt.Stringer:
		return t.String()
	case error:
		return t.Error()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return formatFloat(rv.Float())
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return String(rv.Bool())
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return ""
		}
		return String(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Truthy reports whether v counts as true in a condition. nil, false, numeric
// zero, "", "0" and empty collections are false; everything else is true.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "0"
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.String:
		return Truthy(rv.String())
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return false
		}
		return Truthy(rv.Elem().Interface())
	case reflect.Func, reflect.Chan:
		return !rv.IsNil()
	}
	return true
}

// Number converts v to a numeric value. The returned value is either an int64
// or a float64; ok is false when v has no numeric reading.
func Number(v any) (n any, ok bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case int64:
		return t, true
	case float64:
		return t, true
	case int:
		return int64(t), true
	case bool:
		if t {
			return int64(1), true
		}
		return int64(0), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, false
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
		return nil, false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return int64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.String:
		return Number(rv.String())
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, false
		}
		return Number(rv.Elem().Interface())
	}
	return nil, false
}

// Int returns the integer reading of v, or 0.
func Int(v any) int64 {
	n, ok := Number(v)
	if !ok {
		return 0
	}
	switch t := n.(type) {
	case int64:
		return t
	case float64:
		return int64(t)
	}
	return 0
}

// Float returns the floating point reading of v, or 0.
func Float(v any) float64 {
	n, ok := Number(v)
	if !ok {
		return 0
	}
	switch t := n.(type) {
	case int64:
		return float64(t)
	case float64:
		return t
	}
	return 0
}

// Equal compares two values loosely: numerically when both sides have a
// numeric reading, by their string form otherwise.
func Equal(a, b any) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil:
		return !Truthy(b)
	case b == nil:
		return !Truthy(a)
	}
	if _, isStr := a.(string); isStr {
		if _, isStr = b.(string); isStr {
			return a.(string) == b.(string)
		}
	}
	na, okA := Number(a)
	nb, okB := Number(b)
	if okA && okB {
		return compareNumbers(na, nb) == 0
	}
	return String(a) == String(b)
}

// Compare orders a and b, returning -1, 0 or 1. Numbers compare numerically,
// anything else by its string form.
func Compare(a, b any) int {
	na, okA := Number(a)
	nb, okB := Number(b)
	if okA && okB {
		return compareNumbers(na, nb)
	}
	return strings.Compare(String(a), String(b))
}

func compareNumbers(a, b any) int {
	ia, intA := a.(int64)
	ib, intB := b.(int64)
	if intA && intB {
		switch {
		case ia < ib:
			return -1
		case ia > ib:
			return 1
		}
		return 0
	}
	fa, fb := Float(a), Float(b)
	switch {
	case fa < fb:
		return -1
	case fa > fb:
		return 1
	}
	return 0
}

// Arith applies a binary arithmetic operator. "+" concatenates when either
// operand has no numeric reading.
func Arith(op string, a, b any) (any, error) {
	na, okA := Number(a)
	nb, okB := Number(b)
	if !okA || !okB {
		if op == "+" {
			return String(a) + String(b), nil
		}
		return nil, fmt.Errorf("operator %s needs numeric operands, got %T and %T", op, a, b)
	}

	ia, intA := na.(int64)
	ib, intB := nb.(int64)
	if intA && intB {
		switch op {
		case "+":
			return ia + ib, nil
		case "-":
			return ia - ib, nil
		case "*":
			return ia * ib, nil
		case "/":
			if ib == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			if ia%ib == 0 {
				return ia / ib, nil
			}
			return float64(ia) / float64(ib), nil
		case "%":
			if ib == 0 {
				return nil, fmt.Errorf("modulo by zero")
			}
			return ia % ib, nil
		}
		return nil, fmt.Errorf("unknown operator %q", op)
	}

	fa, fb := Float(na), Float(nb)
	switch op {
	case "+":
		return fa + fb, nil
	case "-":
		return fa - fb, nil
	case "*":
		return fa * fb, nil
	case "/":
		if fb == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return fa / fb, nil
	case "%":
		if int64(fb) == 0 {
			return nil, fmt.Errorf("modulo by zero")
		}
		return int64(fa) % int64(fb), nil
	}
	return nil, fmt.Errorf("unknown operator %q", op)
}

// Negate returns -v.
func Negate(v any) (any, error) {
	n, ok := Number(v)
	if !ok {
		return nil, fmt.Errorf("cannot negate %T", v)
	}
	switch t := n.(type) {
	case int64:
		return -t, nil
	case float64:
		return -t, nil
	}
	return nil, fmt.Errorf("cannot negate %T", v)
}

// Len returns the length of strings and collections, 0 for anything else.
func Len(v any) int {
	if v == nil {
		return 0
	}
	rv := reflect.Indirect(reflect.ValueOf(v))
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		return rv.Len()
	}
	return 0
}

// Field resolves a dotted accessor. Maps are indexed by name, structs expose
// exported fields (an initial lowercase letter is matched against its
// exported form) and zero-argument methods. Missing members and nil
// pointers yield nil.
func Field(v any, name string) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	method := exported(name)
	for {
		indirect := rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface
		if indirect && rv.IsNil() {
			return nil
		}
		if m := rv.MethodByName(method); m.IsValid() && m.Type().NumIn() == 0 && m.Type().NumOut() >= 1 {
			return m.Call(nil)[0].Interface()
		}
		if !indirect {
			break
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		return mapIndex(rv, name)
	case reflect.Struct:
		if f := rv.FieldByName(name); f.IsValid() && f.CanInterface() {
			return f.Interface()
		}
		if f := rv.FieldByName(exported(name)); f.IsValid() && f.CanInterface() {
			return f.Interface()
		}
	}
	return nil
}

// Index resolves a "#key" accessor against maps, slices, arrays and strings.
// Strings are indexed by rune, not by byte.
func Index(v any, key any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		return mapIndex(rv, key)
	case reflect.Slice, reflect.Array, reflect.String:
		n, ok := Number(key)
		if !ok {
			return nil
		}
		i := int(Int(n))
		if rv.Kind() == reflect.String {
			runes := []rune(rv.String())
			if i < 0 || i >= len(runes) {
				return nil
			}
			return string(runes[i])
		}
		if i < 0 || i >= rv.Len() {
			return nil
		}
		return rv.Index(i).Interface()
	case reflect.Struct:
		return Field(rv.Interface(), String(key))
	}
	return nil
}

func mapIndex(rv reflect.Value, key any) any {
	kt := rv.Type().Key()
	var kv reflect.Value
	switch {
	case key == nil:
		return nil
	case reflect.TypeOf(key).AssignableTo(kt):
		kv = reflect.ValueOf(key)
	case kt.Kind() == reflect.String:
		kv = reflect.ValueOf(String(key)).Convert(kt)
	default:
		n, ok := Number(key)
		if !ok || !reflect.TypeOf(n).ConvertibleTo(kt) {
			return nil
		}
		kv = reflect.ValueOf(n).Convert(kt)
	}
	got := rv.MapIndex(kv)
	if !got.IsValid() {
		return nil
	}
	return got.Interface()
}

func exported(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// Pair is one step of an iteration: the key and the value bound to it.
type Pair struct {
	Key   any
	Value any
}

// Pairs expands a collection into its iteration steps. Slices and arrays are
// keyed by position, maps are visited in sorted key order so that output is
// stable. ok is false when v cannot be iterated; nil iterates zero times.
func Pairs(v any) (pairs []Pair, ok bool) {
	if v == nil {
		return nil, true
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, true
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		pairs = make([]Pair, rv.Len())
		for i := range pairs {
			pairs[i] = Pair{Key: i, Value: rv.Index(i).Interface()}
		}
		return pairs, true
	case reflect.Map:
		keys := rv.MapKeys()
		sort.SliceStable(keys, func(i, j int) bool {
			return Compare(keys[i].Interface(), keys[j].Interface()) < 0
		})
		pairs = make([]Pair, len(keys))
		for i, k := range keys {
			pairs[i] = Pair{Key: k.Interface(), Value: rv.MapIndex(k).Interface()}
		}
		return pairs, true
	}
	return nil, false
}
