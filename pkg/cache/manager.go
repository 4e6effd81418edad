package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/CTAG07/Nepenthes/pkg/compiler"
)

// ErrPersist is returned when a compiled artifact cannot be written.
var ErrPersist = errors.New("unable to persist compiled template")

// Options configures a Manager.
type Options struct {
	// Dir is the directory artifacts are stored in.
	Dir string
	// Development forces a recompile on every load.
	Development bool
	// CheckModTime also recompiles when the source is newer than its
	// artifact. Without it an existing artifact is trusted until it is
	// removed or Development is set.
	CheckModTime bool
}

// Artifact describes a stored compiled template.
type Artifact struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Manager decides when templates need compiling and keeps the compiled
// artifacts. Several processes may share one cache directory: there is no
// locking around check, compile and write, which is safe because compiling
// is deterministic and Storage writes are atomic.
// All methods are concurrent-safe.
type Manager struct {
	logger       *slog.Logger
	storage      Storage
	compiler     *compiler.Compiler
	dir          string
	development  bool
	checkModTime bool

	mu       sync.RWMutex
	programs map[string]*compiler.Program
}

// NewManager creates a Manager. A nil storage means DiskStorage.
func NewManager(logger *slog.Logger, storage Storage, comp *compiler.Compiler, opts Options) *Manager {
	if storage == nil {
		storage = DiskStorage{}
	}
	return &Manager{
		logger:       logger,
		storage:      storage,
		compiler:     comp,
		dir:          opts.Dir,
		development:  opts.Development,
		checkModTime: opts.CheckModTime,
		programs:     make(map[string]*compiler.Program),
	}
}

// Dir returns the artifact directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Path returns the storage location of the artifact for k.
func (m *Manager) Path(k Key) string {
	return filepath.Join(m.dir, k.String())
}

// IsStale reports whether the artifact at cachePath must be rebuilt: always
// in development mode, otherwise only when it does not exist.
func (m *Manager) IsStale(cachePath string) bool {
	return m.development || !m.storage.Exists(cachePath)
}

// NeedsCompile is IsStale extended with the optional modification time
// check against sourcePath.
func (m *Manager) NeedsCompile(sourcePath, cachePath string) bool {
	if m.IsStale(cachePath) {
		return true
	}
	if !m.checkModTime {
		return false
	}
	srcTime, err := m.storage.ModTime(sourcePath)
	if err != nil {
		return true
	}
	artTime, err := m.storage.ModTime(cachePath)
	if err != nil {
		return true
	}
	return srcTime.After(artTime)
}

// CompileAndStore reads the source at sourcePath, compiles it and persists
// the artifact at cachePath.
func (m *Manager) CompileAndStore(sourcePath, cachePath string) (*compiler.Program, error) {
	src, err := m.storage.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read template source %s: %w", sourcePath, err)
	}

	start := time.Now()
	prog, err := m.compiler.Compile(string(src))
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", sourcePath, err)
	}
	data, err := prog.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", sourcePath, err)
	}
	if err = m.storage.WriteFile(cachePath, data); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrPersist, cachePath, err)
	}

	m.mu.Lock()
	m.programs[cachePath] = prog
	m.mu.Unlock()

	m.logger.Debug("Compiled template",
		"source", sourcePath,
		"artifact", filepath.Base(cachePath),
		"ops", len(prog.Ops),
		"duration", time.Since(start))
	return prog, nil
}

// Load returns the Program for sourcePath, compiling it first when the
// artifact at cachePath is stale. Artifacts that cannot be decoded, such as
// ones written by an older format version, are rebuilt.
func (m *Manager) Load(sourcePath, cachePath string) (*compiler.Program, error) {
	if m.NeedsCompile(sourcePath, cachePath) {
		return m.CompileAndStore(sourcePath, cachePath)
	}

	m.mu.RLock()
	prog, ok := m.programs[cachePath]
	m.mu.RUnlock()
	if ok {
		return prog, nil
	}

	data, err := m.storage.ReadFile(cachePath)
	if err != nil {
		// Removed between the staleness check and the read.
		return m.CompileAndStore(sourcePath, cachePath)
	}
	prog, err = compiler.Decode(data)
	if err != nil {
		m.logger.Warn("Discarding unreadable compiled template", "artifact", cachePath, "error", err)
		return m.CompileAndStore(sourcePath, cachePath)
	}

	m.mu.Lock()
	m.programs[cachePath] = prog
	m.mu.Unlock()
	return prog, nil
}

// Forget drops every Program held in memory. Stored artifacts are kept.
func (m *Manager) Forget() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.programs = make(map[string]*compiler.Program)
}

// Invalidate removes the artifact at cachePath.
func (m *Manager) Invalidate(cachePath string) error {
	m.mu.Lock()
	delete(m.programs, cachePath)
	m.mu.Unlock()
	return m.storage.Remove(cachePath)
}

// List returns the stored artifacts sorted by name.
func (m *Manager) List() ([]Artifact, error) {
	infos, err := m.storage.List(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list compiled templates: %w", err)
	}
	var artifacts []Artifact
	for _, info := range infos {
		if !strings.HasSuffix(info.Name(), Extension) {
			continue
		}
		artifacts = append(artifacts, Artifact{
			Name:    info.Name(),
			Path:    filepath.Join(m.dir, info.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Name < artifacts[j].Name })
	return artifacts, nil
}

// Clear removes every stored artifact and returns how many were removed.
func (m *Manager) Clear() (int, error) {
	artifacts, err := m.List()
	if err != nil {
		return 0, err
	}
	m.Forget()
	removed := 0
	for _, a := range artifacts {
		if err = m.storage.Remove(a.Path); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", a.Name, err)
		}
		removed++
	}
	m.logger.Info("Cleared compiled templates", "count", removed, "dir", m.dir)
	return removed, nil
}
