package templating

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestTemplateFunctions validates the behavior of each category of template functions.
func TestTemplateFunctions(t *testing.T) {
	t.Run("LogicFuncs", func(t *testing.T) {
		if len(repeat(5)) != 5 || len(repeat(-1)) != 0 {
			t.Error("repeat failed")
		}
		choice := randomChoice([]string{"a", "b", "c"}).(string)
		if choice != "a" && choice != "b" && choice != "c" {
			t.Error("randomChoice failed")
		}
		if randomChoice([]string{}) != nil {
			t.Error("randomChoice of an empty slice should be nil")
		}
		if randomInt(10, 11) != 10 {
			t.Error("randomInt failed")
		}
		if fallback("", "x") != "x" || fallback("y", "x") != "y" {
			t.Error("default failed")
		}
		if count("abc") != 3 || count([]int{1, 2}) != 2 || count(nil) != 0 {
			t.Error("count failed")
		}
		if join([]int{1, 2, 3}, ", ") != "1, 2, 3" {
			t.Error("join failed")
		}
	})

	t.Run("SimpleFuncs", func(t *testing.T) {
		if got, err := add(int64(2), "3"); err != nil || got != int64(5) {
			t.Errorf("add = %v, %v", got, err)
		}
		if got, _ := add("a", int64(1)); got != "a1" {
			t.Errorf("add of a string should concatenate, got %v", got)
		}
		if got, _ := div(int64(7), int64(0)); got != int64(0) {
			t.Errorf("div by zero should return 0, got %v", got)
		}
		if got, _ := div(int64(7), int64(2)); got != 3.5 {
			t.Errorf("div = %v, want 3.5", got)
		}
		if min(int64(2), int64(3), 1.5) != 1.5 || max("b", "a", "c") != "c" {
			t.Error("min/max failed")
		}
		if mod(10, 3) != 1 || mod(1, 0) != 0 {
			t.Error("mod failed")
		}
		if got, _ := inc("41"); got != int64(42) {
			t.Errorf("inc = %v", got)
		}
		if !and(true, 1, "x") || and(true, "0") || !or(nil, "y") || not([]int{1}) {
			t.Error("logic funcs failed")
		}
		if isSet(0) || isSet(nil) || isSet("") || !isSet("0") || !isSet("x") {
			t.Error("isSet failed")
		}
	})
}

func TestCallFunc(t *testing.T) {
	errBoom := errors.New("boom")
	tests := []struct {
		name    string
		fn      any
		args    []any
		want    any
		wantErr string
	}{
		{"coerces numeric strings", func(a, b int) int { return a + b }, []any{int64(2), "3"}, 5, ""},
		{"coerces to bool", func(bs ...bool) bool { return bs[0] && bs[1] && !bs[2] }, []any{1, "x", ""}, true, ""},
		{"coerces to string", strings.ToUpper, []any{int64(7)}, "7", ""},
		{"passes variadic args", list, []any{1, "a"}, []any{1, "a"}, ""},
		{"rejects non-numeric ints", mod, []any{"a", 1}, nil, "argument 1"},
		{"checks arity", mod, []any{1}, nil, "expects 2 arguments"},
		{"passes template values through", add, []any{int64(2), 0.5}, 2.5, ""},
		{"returns errors", func() (string, error) { return "", errBoom }, nil, nil, "boom"},
		{"recovers panics", func(s []int) int { return s[3] }, []any{[]int{1}}, nil, "panicked"},
		{"rejects non-functions", 42, nil, nil, "not a function"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := callFunc("f", tt.fn, tt.args)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("callFunc() error = %v, want it to mention %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("callFunc() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("callFunc() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
