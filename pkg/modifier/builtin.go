package modifier

import (
	"encoding/json"
	"html"
	"net/url"
	"strings"
	"sync"

	"github.com/CTAG07/Nepenthes/pkg/value"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Priorities of the built-in modifiers. Plain text transforms sit low so they
// run first; transforms that emit markup sit high so they run last.
const (
	PriorityTrim      = 5
	PriorityCase      = 20
	PriorityLength    = 30
	PriorityJSON      = 40
	PriorityURLEncode = 60
	PriorityEscape    = 80
	PrioritySanitize  = 90
	PriorityNl2br     = 100
)

var (
	sanitizeOnce   sync.Once
	sanitizePolicy *bluemonday.Policy
)

// NewDefaultRegistry returns a registry preloaded with the built-in modifiers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterBuiltins(r)
	return r
}

// RegisterBuiltins adds the built-in modifiers to r.
func RegisterBuiltins(r *Registry) {
	r.AddFunc("trim", trim, PriorityTrim, true)
	r.AddFunc("upper", upper, PriorityCase, true)
	r.AddFunc("lower", lower, PriorityCase, true)
	r.AddFunc("title", title, PriorityCase, true)
	r.AddFunc("length", length, PriorityLength, true)
	r.AddFunc("json", toJSON, PriorityJSON, true)
	r.AddFunc("urlencode", urlencode, PriorityURLEncode, true)
	r.AddFunc("escape", escape, PriorityEscape, false)
	r.AddFunc("sanitize", sanitize, PrioritySanitize, false)
	r.AddFunc("nl2br", nl2br, PriorityNl2br, false)
}

func trim(v any) any {
	return strings.TrimSpace(value.String(v))
}

// cases.Caser keeps internal state, so each call gets its own.
func upper(v any) any {
	return cases.Upper(language.Und).String(value.String(v))
}

func lower(v any) any {
	return cases.Lower(language.Und).String(value.String(v))
}

func title(v any) any {
	return cases.Title(language.English).String(value.String(v))
}

func length(v any) any {
	if s, ok := v.(string); ok {
		return len([]rune(s))
	}
	return value.Len(v)
}

func toJSON(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func urlencode(v any) any {
	return url.QueryEscape(value.String(v))
}

func escape(v any) any {
	return html.EscapeString(value.String(v))
}

// Nl2br inserts an HTML line break before every newline in s.
func Nl2br(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "<br />\n")
}

func nl2br(v any) any {
	return Nl2br(html.EscapeString(value.String(v)))
}

func sanitize(v any) any {
	sanitizeOnce.Do(func() {
		sanitizePolicy = bluemonday.UGCPolicy()
	})
	return sanitizePolicy.Sanitize(value.String(v))
}
