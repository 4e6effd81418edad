package templating

import (
	"math/rand"
	"strings"

	"github.com/CTAG07/Nepenthes/pkg/value"
)

// repeat returns a slice of integers from 0 to count-1.
func repeat(count int) []int {
	if count < 0 {
		return []int{}
	}
	s := make([]int, count)
	for i := 0; i < count; i++ {
		s[i] = i
	}
	return s
}

// list returns a slice containing all the arguments passed to it.
func list(args ...any) []any {
	return args
}

// fallback returns def when val is falsy, val otherwise.
func fallback(val, def any) any {
	if !value.Truthy(val) {
		return def
	}
	return val
}

// count returns the length of a string or collection.
func count(val any) int {
	return value.Len(val)
}

// join concatenates the elements of a collection with sep.
func join(val any, sep string) string {
	pairs, ok := value.Pairs(val)
	if !ok {
		return value.String(val)
	}
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = value.String(p.Value)
	}
	return strings.Join(parts, sep)
}

// randomChoice selects and returns a single random element from a
// collection, or nil when it is empty.
func randomChoice(val any) any {
	pairs, ok := value.Pairs(val)
	if !ok || len(pairs) == 0 {
		return nil
	}
	return pairs[rand.Intn(len(pairs))].Value
}

// randomInt returns a random integer within the range [min, max).
func randomInt(min, max int) int {
	if min >= max {
		return min
	}
	return rand.Intn(max-min) + min
}
