package templating

import "github.com/CTAG07/Nepenthes/pkg/value"

// add returns a + b. Non-numeric operands are concatenated.
func add(a, b any) (any, error) {
	return value.Arith("+", a, b)
}

// sub returns a - b.
func sub(a, b any) (any, error) {
	return value.Arith("-", a, b)
}

// mult returns a * b.
func mult(a, b any) (any, error) {
	return value.Arith("*", a, b)
}

// div returns a / b. Returns 0 if b is 0.
func div(a, b any) (any, error) {
	if value.Float(b) == 0 {
		return int64(0), nil
	}
	return value.Arith("/", a, b)
}

// mod returns a % b. Returns 0 if b is 0.
func mod(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	return a % b
}

// max returns the largest of its arguments.
//
//goland:noinspection GoReservedWordUsedAsName
func max(first any, rest ...any) any {
	for _, v := range rest {
		if value.Compare(v, first) > 0 {
			first = v
		}
	}
	return first
}

// min returns the smallest of its arguments.
//
//goland:noinspection GoReservedWordUsedAsName
func min(first any, rest ...any) any {
	for _, v := range rest {
		if value.Compare(v, first) < 0 {
			first = v
		}
	}
	return first
}

// inc returns i + 1.
func inc(i any) (any, error) {
	return value.Arith("+", i, int64(1))
}

// dec returns i - 1.
func dec(i any) (any, error) {
	return value.Arith("-", i, int64(1))
}

// and returns true only if every argument is truthy.
func and(args ...any) bool {
	for _, arg := range args {
		if !value.Truthy(arg) {
			return false
		}
	}
	return true
}

// or returns true if any argument is truthy.
func or(args ...any) bool {
	for _, arg := range args {
		if value.Truthy(arg) {
			return true
		}
	}
	return false
}

// not returns the boolean opposite of its argument.
func not(arg any) bool {
	return !value.Truthy(arg)
}

// isSet returns true if a value is not empty. Unlike truthiness, the
// string "0" counts as set.
func isSet(val any) bool {
	if s, ok := val.(string); ok {
		return s != ""
	}
	return value.Truthy(val)
}
