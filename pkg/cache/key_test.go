package cache

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestComputeKey(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{"all parts", Key{"default", "main", "index", "desktop", "3f9a", DefaultTag}, "default-main-index-desktop-3f9a-compiled.tplc"},
		{"empty parts dropped", Key{Theme: "default", Template: "index", Tag: DefaultTag}, "default-index-compiled.tplc"},
		{"separators cleaned", Key{Theme: "../evil", Layout: "a/b", Template: "c.d", Tag: DefaultTag}, "evil-a-b-c-d-compiled.tplc"},
		{"backslashes cleaned", Key{Template: `..\..\x`, Tag: DefaultTag}, "x-compiled.tplc"},
		{"trailing dot cleaned away", Key{Template: "index", Device: "mobile.", Tag: DefaultTag}, "index-mobile-compiled.tplc"},
		{"trailing slash cleaned away", Key{Layout: "a/", Template: "index", Tag: DefaultTag}, "a-index-compiled.tplc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := tt.key
			got := ComputeKey(k.Theme, k.Layout, k.Template, k.Device, k.Fingerprint, k.Tag)
			if got != tt.want {
				t.Errorf("ComputeKey() = %q, want %q", got, tt.want)
			}
			if got != k.String() {
				t.Errorf("ComputeKey() and Key.String() disagree: %q vs %q", got, k.String())
			}
		})
	}
}

func TestKeyProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	part := gen.RegexMatch(`^[a-z0-9]{1,8}$`)
	device := gen.RegexMatch(`^[a-z0-9./\\-]{0,8}$`)

	properties.Property("same parts give the same key", prop.ForAll(
		func(theme, layout, tmpl, device, fp string) bool {
			return ComputeKey(theme, layout, tmpl, device, fp, DefaultTag) ==
				ComputeKey(theme, layout, tmpl, device, fp, DefaultTag)
		},
		part, part, part, part, part,
	))

	properties.Property("devices that clean differently give different keys", prop.ForAll(
		func(tmpl, a, b string) bool {
			if Clean(a) == Clean(b) {
				return ComputeKey("default", "main", tmpl, a, "fp", DefaultTag) ==
					ComputeKey("default", "main", tmpl, b, "fp", DefaultTag)
			}
			return ComputeKey("default", "main", tmpl, a, "fp", DefaultTag) !=
				ComputeKey("default", "main", tmpl, b, "fp", DefaultTag)
		},
		part, device, device,
	))

	properties.Property("a different fingerprint gives a different key", prop.ForAll(
		func(tmpl, a, b string) bool {
			if a == b {
				return true
			}
			return ComputeKey("default", "main", tmpl, "desktop", a, DefaultTag) !=
				ComputeKey("default", "main", tmpl, "desktop", b, DefaultTag)
		},
		part, part, part,
	))

	properties.Property("keys never leave the cache directory", prop.ForAll(
		func(theme, tmpl string) bool {
			name := ComputeKey(theme, "", tmpl, "", "", DefaultTag)
			return !strings.ContainsAny(name, `/\`) && filepath.Base(name) == name && !strings.HasPrefix(name, ".")
		},
		gen.AnyString(), gen.AnyString(),
	))

	properties.TestingRun(t)
}
