package cache

import "strings"

const (
	// Delimiter joins the parts of a key.
	Delimiter = "-"
	// Extension is appended to every artifact name.
	Extension = ".tplc"
	// DefaultTag is the fixed last part of renderer artifact keys.
	DefaultTag = "compiled"
)

// Key identifies one compiled artifact. Keys are kept structured so their
// composition can be tested without touching storage; String produces the
// artifact file name.
type Key struct {
	Theme       string
	Layout      string
	Template    string
	Device      string
	Fingerprint string
	Tag         string
}

// ComputeKey builds the artifact name for the given parts.
func ComputeKey(theme, layout, template, device, fingerprint, tag string) string {
	return Key{
		Theme:       theme,
		Layout:      layout,
		Template:    template,
		Device:      device,
		Fingerprint: fingerprint,
		Tag:         tag,
	}.String()
}

// Parts returns the cleaned, non-empty parts of k in order.
func (k Key) Parts() []string {
	raw := []string{k.Theme, k.Layout, k.Template, k.Device, k.Fingerprint, k.Tag}
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = Clean(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// String joins the parts with Delimiter and appends Extension.
func (k Key) String() string {
	return strings.Join(k.Parts(), Delimiter) + Extension
}

// Clean replaces path separators and dots with Delimiter and trims it from
// both ends, so a part can never escape the cache directory.
func Clean(part string) string {
	part = strings.NewReplacer("/", Delimiter, "\\", Delimiter, ".", Delimiter).Replace(strings.TrimSpace(part))
	return strings.Trim(part, Delimiter)
}
