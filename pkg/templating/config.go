package templating

// TemplateConfig holds all configuration options for the renderer.
type TemplateConfig struct {
	// TemplateDir is the root directory template sources are read from.
	TemplateDir string `json:"template_dir"`

	// CacheDir is where compiled templates are stored.
	CacheDir string `json:"cache_dir"`

	// Extension is appended to template names to find their source files.
	Extension string `json:"extension"`

	// Theme selects a subdirectory of TemplateDir and is the first part of
	// every cache key. Empty means templates live directly in TemplateDir.
	Theme string `json:"theme"`

	// Layout is the layout used by Render when a template name has no
	// layout prefix.
	Layout string `json:"layout"`

	// DevelopmentMode recompiles every template on every render.
	DevelopmentMode bool `json:"development_mode"`

	// ConfigFingerprint namespaces compiled templates per deployment.
	// Changing it makes every previously compiled template unreachable.
	ConfigFingerprint string `json:"config_fingerprint"`

	// CheckModTime recompiles a template whose source is newer than its
	// compiled form. When false, a compiled template is reused until it is
	// removed, even if the source changes.
	CheckModTime bool `json:"check_mod_time"`

	// MaxIncludeDepth limits how deeply includes may nest. 0 disables the
	// limit.
	MaxIncludeDepth int `json:"max_include_depth"`
}

// DefaultConfig returns a TemplateConfig with safe default values.
func DefaultConfig() TemplateConfig {
	return TemplateConfig{
		TemplateDir:     "templates",
		CacheDir:        "cache",
		Extension:       ".tpl",
		Layout:          "",
		DevelopmentMode: false,
		CheckModTime:    false,
		MaxIncludeDepth: 32,
	}
}
