package lang

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	_ "modernc.org/sqlite"
)

// setupTestStore creates a Store over a fresh in-memory database.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")))
	if err != nil {
		t.Fatalf("failed to open in-memory db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err = SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}
	if err = SetupSchema(db); err != nil {
		t.Fatalf("SetupSchema() is not idempotent: %v", err)
	}
	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestStore_PutGetDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "en", "core.title", "Welcome"); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "en", "core.title", "Hello"); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "en", "core.title")
	if err != nil || got != "Hello" {
		t.Errorf("Get() = %q, %v; want Hello", got, err)
	}
	if _, err = s.Get(ctx, "de", "core.title"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() from another pack: expected ErrNotFound, got %v", err)
	}

	if err = s.Delete(ctx, "en", "core.title"); err != nil {
		t.Fatal(err)
	}
	if _, err = s.Get(ctx, "en", "core.title"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after Delete, got %v", err)
	}
	if err = s.Delete(ctx, "en", "never.there"); err != nil {
		t.Errorf("deleting a missing key should not fail: %v", err)
	}
}

func TestStore_ImportExport(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	const pack = `
core:
  welcome_title: Welcome
  count: 3
  nav:
    home: "Home: start"
footer: ~
`
	n, err := s.Import(ctx, "en", strings.NewReader(pack))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if n != 4 {
		t.Errorf("Import() stored %d strings, want 4", n)
	}

	keys, err := s.Keys(ctx, "en")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"core.count", "core.nav.home", "core.welcome_title", "footer"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}

	var buf bytes.Buffer
	if err = s.Export(ctx, "en", &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if _, err = s.Import(ctx, "copy", &buf); err != nil {
		t.Fatalf("re-Import() error = %v", err)
	}
	orig, _ := s.Table(ctx, "en")
	copied, _ := s.Table(ctx, "copy")
	if diff := cmp.Diff(orig, copied); diff != "" {
		t.Errorf("exported pack does not round trip (-want +got):\n%s", diff)
	}

	packs, err := s.Packs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"copy", "en"}, packs); diff != "" {
		t.Errorf("Packs() mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_ImportRejectsLists(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	_, err := s.Import(ctx, "en", strings.NewReader("ok: yes\nbad: [1, 2]\n"))
	if err == nil {
		t.Fatal("expected an error for list values")
	}
	if keys, _ := s.Keys(ctx, "en"); len(keys) != 0 {
		t.Errorf("a failed import must not store anything, got %v", keys)
	}
}

func TestStore_TableOverrides(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	for _, kv := range [][3]string{
		{"en", "color", "color"},
		{"en", "hello", "Hello"},
		{"en-GB", "color", "colour"},
	} {
		if err := s.Put(ctx, kv[0], kv[1], kv[2]); err != nil {
			t.Fatal(err)
		}
	}

	table, err := s.Table(ctx, "en", "en-GB")
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := table.Translate("color"); got != "colour" {
		t.Errorf("regional pack should override the base pack, got %q", got)
	}
	if got, ok := table.Translate("hello"); !ok || got != "Hello" {
		t.Errorf("base pack string missing: %q", got)
	}
	if _, ok := table.Translate("missing"); ok {
		t.Error("missing keys must report false")
	}
	if diff := cmp.Diff([]string{"color", "hello"}, table.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
}
