package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CTAG07/Nepenthes/pkg/cache"
	"github.com/CTAG07/Nepenthes/pkg/compiler"
	"github.com/google/go-cmp/cmp"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// startWatcher runs a Watcher over a fresh directory and returns the
// directory and the channel batches are delivered on.
func startWatcher(t *testing.T, filter Filter) (string, <-chan []string) {
	t.Helper()
	dir := t.TempDir()
	batches := make(chan []string, 16)
	w, err := New(testLogger, 50*time.Millisecond, filter, func(paths []string) { batches <- paths })
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err = w.AddRecursive(dir); err != nil {
		t.Fatalf("AddRecursive() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return dir, batches
}

func waitFor(t *testing.T, batches <-chan []string, want string) []string {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case paths := <-batches:
			for _, p := range paths {
				if p == want {
					return paths
				}
			}
		case <-deadline:
			t.Fatalf("no change reported for %s", want)
			return nil
		}
	}
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir, batches := startWatcher(t, ExtensionFilter(".tpl"))
	path := filepath.Join(dir, "index.tpl")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte{byte('a' + i)}, 0644); err != nil {
			t.Fatal(err)
		}
	}
	paths := waitFor(t, batches, path)
	if diff := cmp.Diff([]string{path}, paths); diff != "" {
		t.Errorf("batch mismatch (-want +got):\n%s", diff)
	}
}

func TestWatcher_FiltersPaths(t *testing.T) {
	dir, batches := startWatcher(t, ExtensionFilter(".tpl"))
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "page.tpl")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	for _, p := range waitFor(t, batches, path) {
		if filepath.Ext(p) != ".tpl" {
			t.Errorf("filtered path %s was reported", p)
		}
	}
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	dir, batches := startWatcher(t, ExtensionFilter(".tpl"))
	sub := filepath.Join(dir, "main")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher a moment to register the new directory.
	time.Sleep(100 * time.Millisecond)
	path := filepath.Join(sub, "header.tpl")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, batches, path)
}

func TestClearCache(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "index.tpl")
	if err := os.WriteFile(src, []byte("hi"), 0644); err != nil {
		t.Fatal(err)
	}
	m := cache.NewManager(testLogger, nil, compiler.New(nil), cache.Options{Dir: filepath.Join(root, "cache")})
	cachePath := m.Path(cache.Key{Template: "index", Tag: cache.DefaultTag})
	if _, err := m.Load(src, cachePath); err != nil {
		t.Fatal(err)
	}

	ClearCache(testLogger, m)([]string{src})
	if !m.IsStale(cachePath) {
		t.Error("compiled template should be gone after ClearCache")
	}
}
