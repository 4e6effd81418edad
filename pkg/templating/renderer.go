package templating

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/CTAG07/Nepenthes/pkg/cache"
	"github.com/CTAG07/Nepenthes/pkg/compiler"
	"github.com/CTAG07/Nepenthes/pkg/modifier"
)

// Translator resolves language-string keys used as bare identifiers in
// templates.
type Translator interface {
	Translate(key string) (string, bool)
}

// MapTranslator is a Translator backed by a map.
type MapTranslator map[string]string

// Translate returns the string stored under key.
func (m MapTranslator) Translate(key string) (string, bool) {
	s, ok := m[key]
	return s, ok
}

// DeviceClassifier reports the device class output is rendered for. Each
// device class gets its own compiled templates.
type DeviceClassifier interface {
	DeviceType() string
}

// StaticDevice is a DeviceClassifier that always reports the same class.
type StaticDevice string

// DeviceType returns d.
func (d StaticDevice) DeviceType() string {
	return string(d)
}

// OutputFilter post-processes the output of a top-level render.
type OutputFilter func(name, output string) string

// Option configures a Renderer.
type Option func(*Renderer)

// WithStorage sets the storage templates and compiled templates are read
// from and written to. The default is the local filesystem.
func WithStorage(s cache.Storage) Option {
	return func(r *Renderer) { r.storage = s }
}

// WithTranslator sets the language-string table.
func WithTranslator(t Translator) Option {
	return func(r *Renderer) { r.translator = t }
}

// WithDeviceClassifier sets the device classifier.
func WithDeviceClassifier(d DeviceClassifier) Option {
	return func(r *Renderer) { r.device = d }
}

// WithModifiers sets the modifier registry. The default registry holds the
// built-in modifiers.
func WithModifiers(reg *modifier.Registry) Option {
	return func(r *Renderer) { r.modifiers = reg }
}

// Renderer compiles templates on demand, caches the compiled form and
// executes it. It is the entry point of the package.
// All methods are concurrent-safe. Each render runs in its own scope seeded
// from the variables added with AddVar and AddVars.
type Renderer struct {
	logger    *slog.Logger
	config    TemplateConfig
	storage   cache.Storage
	modifiers *modifier.Registry
	compiler  *compiler.Compiler
	cache     *cache.Manager

	// The maps and slices below are replaced, never modified in place, so a
	// render can keep using the ones it started with without holding mu.
	mu         sync.RWMutex
	translator Translator
	device     DeviceClassifier
	layout     string
	funcs      FuncMap
	filters    []OutputFilter
	vars       map[string]any
}

// NewRenderer creates a Renderer for the given configuration.
func NewRenderer(logger *slog.Logger, config TemplateConfig, opts ...Option) (*Renderer, error) {
	if config.TemplateDir == "" {
		return nil, errors.New("template directory is not set")
	}
	if config.MaxIncludeDepth < 0 {
		return nil, fmt.Errorf("invalid max include depth %d", config.MaxIncludeDepth)
	}

	r := &Renderer{
		logger: logger,
		config: config,
		device: StaticDevice(""),
		layout: config.Layout,
		funcs:  defaultFuncs(),
		vars:   map[string]any{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.modifiers == nil {
		r.modifiers = modifier.NewDefaultRegistry()
	}
	r.compiler = compiler.New(r.modifiers)
	r.cache = cache.NewManager(logger, r.storage, r.compiler, cache.Options{
		Dir:          config.CacheDir,
		Development:  config.DevelopmentMode,
		CheckModTime: config.CheckModTime,
	})

	logger.Info("Template renderer initialized",
		"template_dir", config.TemplateDir,
		"cache_dir", config.CacheDir,
		"development", config.DevelopmentMode)
	return r, nil
}

// Render renders the template name with vars added to the shared variables
// and runs the output filters over the result. name may carry a layout
// prefix ("layout/name"); without one the current layout is used.
// vars are visible to name and its includes only; a later RenderSubtemplate
// call from the host does not see them.
func (r *Renderer) Render(name string, vars map[string]any) (string, error) {
	start := time.Now()
	call := r.newCall(vars)
	layout, tmpl := splitRef(name, call.layout)
	out, err := call.render(layout, tmpl)
	if err != nil {
		return "", err
	}
	for _, filter := range call.filters {
		out = filter(name, out)
	}
	r.logger.Debug("Rendered template", "template", name, "bytes", len(out), "duration", time.Since(start))
	return out, nil
}

// RenderSubtemplate renders name with only the shared variables and without
// output filters, the way an include inside another template does.
func (r *Renderer) RenderSubtemplate(name string) (string, error) {
	call := r.newCall(nil)
	layout, tmpl := splitRef(name, call.layout)
	return call.render(layout, tmpl)
}

// RenderString compiles and executes src without caching it. Includes are
// resolved against the template directory as usual.
func (r *Renderer) RenderString(src string, vars map[string]any) (string, error) {
	prog, err := r.compiler.Compile(src)
	if err != nil {
		return "", fmt.Errorf("failed to compile template string: %w", err)
	}
	call := r.newCall(vars)
	release := call.scope.PushContext(contextRef{call: call, layout: call.layout})
	defer release()

	var out strings.Builder
	if err = call.execute("(string)", prog, &out); err != nil {
		return "", err
	}
	return out.String(), nil
}

// AddVar sets a shared variable visible to every render.
func (r *Renderer) AddVar(name string, v any) {
	r.AddVars(map[string]any{name: v})
}

// AddVars sets several shared variables.
func (r *Renderer) AddVars(vars map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make(map[string]any, len(r.vars)+len(vars))
	for k, v := range r.vars {
		next[k] = v
	}
	for k, v := range vars {
		next[k] = v
	}
	r.vars = next
}

// UnsetVar removes a shared variable.
func (r *Renderer) UnsetVar(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make(map[string]any, len(r.vars))
	for k, v := range r.vars {
		if k != name {
			next[k] = v
		}
	}
	r.vars = next
}

// AddSupportedModifier registers a modifier for use in pipe chains.
// Compiled templates keep the chains they were compiled with, so templates
// already compiled to disk pick up the change only once they are recompiled.
func (r *Renderer) AddSupportedModifier(name string, m modifier.Modifier, priority int, escapes bool) {
	r.modifiers.Add(name, m, priority, escapes)
	r.cache.Forget()
}

// RemoveSupportedModifier unregisters a modifier. Compiled templates that
// still name it skip it when rendering.
func (r *Renderer) RemoveSupportedModifier(name string) {
	r.modifiers.Remove(name)
	r.cache.Forget()
}

// AddFunction makes fn callable from templates as name(...). fn must be a
// function returning one value, or a value and an error.
func (r *Renderer) AddFunction(name string, fn any) error {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		return fmt.Errorf("function %s: %T is not a function", name, fn)
	}
	if t.NumOut() == 0 || t.NumOut() > 2 || (t.NumOut() == 2 && t.Out(1) != errorType) {
		return fmt.Errorf("function %s must return a value and an optional error", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make(FuncMap, len(r.funcs)+1)
	for k, v := range r.funcs {
		next[k] = v
	}
	next[name] = fn
	r.funcs = next
	return nil
}

// AddOutputFilter appends a filter run over the output of every Render.
// Filters run in the order they were added.
func (r *Renderer) AddOutputFilter(f OutputFilter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make([]OutputFilter, len(r.filters), len(r.filters)+1)
	copy(next, r.filters)
	r.filters = append(next, f)
}

// SetLayout changes the layout used for names without a layout prefix.
func (r *Renderer) SetLayout(layout string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layout = layout
}

// GetConfig returns a copy of the configuration.
func (r *Renderer) GetConfig() TemplateConfig {
	return r.config
}

// Cache returns the compiled template cache.
func (r *Renderer) Cache() *cache.Manager {
	return r.cache
}

// Modifiers returns the modifier registry.
func (r *Renderer) Modifiers() *modifier.Registry {
	return r.modifiers
}

// Compile compiles the template name into the cache regardless of its
// staleness and returns the artifact path.
func (r *Renderer) Compile(name string) (string, error) {
	r.mu.RLock()
	layout, tmpl := splitRef(name, r.layout)
	device := r.device
	r.mu.RUnlock()

	src, err := r.sourcePath(layout, tmpl)
	if err != nil {
		return "", err
	}
	cachePath := r.cache.Path(r.key(layout, tmpl, device.DeviceType()))
	if _, err = r.cache.CompileAndStore(src, cachePath); err != nil {
		return "", notFound(layout, tmpl, err)
	}
	return cachePath, nil
}

func (r *Renderer) key(layout, name, device string) cache.Key {
	return cache.Key{
		Theme:       r.config.Theme,
		Layout:      layout,
		Template:    name,
		Device:      device,
		Fingerprint: r.config.ConfigFingerprint,
		Tag:         cache.DefaultTag,
	}
}

func (r *Renderer) sourcePath(layout, name string) (string, error) {
	rel := filepath.Join(layout, name+r.config.Extension)
	if name == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: invalid template name %q", ErrTemplateNotFound, qualified(layout, name))
	}
	return filepath.Join(r.config.TemplateDir, r.config.Theme, rel), nil
}

func (r *Renderer) load(layout, name, device string) (*compiler.Program, error) {
	src, err := r.sourcePath(layout, name)
	if err != nil {
		return nil, err
	}
	prog, err := r.cache.Load(src, r.cache.Path(r.key(layout, name, device)))
	if err != nil {
		return nil, notFound(layout, name, err)
	}
	return prog, nil
}

func notFound(layout, name string, err error) error {
	if !errors.Is(err, cache.ErrPersist) && errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s: %w", ErrTemplateNotFound, qualified(layout, name), err)
	}
	return err
}

func splitRef(ref, defaultLayout string) (layout, name string) {
	layout, name = compiler.SplitName(ref)
	if layout == "" {
		layout = defaultLayout
	}
	return layout, name
}

func qualified(layout, name string) string {
	if layout == "" {
		return name
	}
	return layout + "/" + name
}
