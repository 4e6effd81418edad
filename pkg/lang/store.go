package lang

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned by Get for keys that are not in the pack.
var ErrNotFound = errors.New("language string not found")

// SetupSchema creates the language string table. It is idempotent and safe
// to call on an already-initialized database.
func SetupSchema(db *sql.DB) error {
	const schemaStrings = `
CREATE TABLE IF NOT EXISTS lang_strings (
    pack TEXT NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (pack, key)
);
`
	if _, err := db.Exec(schemaStrings); err != nil {
		return fmt.Errorf("could not create schema: %w", err)
	}
	return nil
}

// Store reads and writes language strings. It holds prepared statements and
// must be closed when no longer needed.
type Store struct {
	db         *sql.DB
	stmtGet    *sql.Stmt
	stmtPut    *sql.Stmt
	stmtDelete *sql.Stmt
	stmtKeys   *sql.Stmt
	stmtPack   *sql.Stmt
	stmtPacks  *sql.Stmt
	logger     *slog.Logger
}

// NewStore prepares the statements used by a Store. SetupSchema must have
// been called on db.
func NewStore(db *sql.DB) (*Store, error) {
	stmtGet, err := db.Prepare(`SELECT value FROM lang_strings WHERE pack = ? AND key = ?;`)
	if err != nil {
		return nil, err
	}

	stmtPut, err := db.Prepare(`INSERT INTO lang_strings (pack, key, value) VALUES (?, ?, ?) ON CONFLICT(pack, key) DO UPDATE SET value = excluded.value;`)
	if err != nil {
		return nil, err
	}

	stmtDelete, err := db.Prepare(`DELETE FROM lang_strings WHERE pack = ? AND key = ?;`)
	if err != nil {
		return nil, err
	}

	stmtKeys, err := db.Prepare(`SELECT key FROM lang_strings WHERE pack = ? ORDER BY key;`)
	if err != nil {
		return nil, err
	}

	stmtPack, err := db.Prepare(`SELECT key, value FROM lang_strings WHERE pack = ?;`)
	if err != nil {
		return nil, err
	}

	stmtPacks, err := db.Prepare(`SELECT DISTINCT pack FROM lang_strings ORDER BY pack;`)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:         db,
		stmtGet:    stmtGet,
		stmtPut:    stmtPut,
		stmtDelete: stmtDelete,
		stmtKeys:   stmtKeys,
		stmtPack:   stmtPack,
		stmtPacks:  stmtPacks,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases the prepared statements held by the Store.
func (s *Store) Close() {
	_ = s.stmtGet.Close()
	_ = s.stmtPut.Close()
	_ = s.stmtDelete.Close()
	_ = s.stmtKeys.Close()
	_ = s.stmtPack.Close()
	_ = s.stmtPacks.Close()
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Get returns the string stored under key in pack.
func (s *Store) Get(ctx context.Context, pack, key string) (string, error) {
	var value string
	err := s.stmtGet.QueryRowContext(ctx, pack, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s/%s", ErrNotFound, pack, key)
	}
	return value, err
}

// Put stores value under key in pack, replacing any previous value.
func (s *Store) Put(ctx context.Context, pack, key, value string) error {
	_, err := s.stmtPut.ExecContext(ctx, pack, key, value)
	return err
}

// Delete removes key from pack. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, pack, key string) error {
	_, err := s.stmtDelete.ExecContext(ctx, pack, key)
	return err
}

// Keys returns the keys of pack in sorted order.
func (s *Store) Keys(ctx context.Context, pack string) ([]string, error) {
	return queryStrings(ctx, s.stmtKeys, pack)
}

// Packs returns the names of all packs holding at least one string.
func (s *Store) Packs(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, s.stmtPacks)
}

func queryStrings(ctx context.Context, stmt *sql.Stmt, args ...any) ([]string, error) {
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var out []string
	for rows.Next() {
		var s string
		if err = rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Import reads a YAML document and stores its strings in pack, returning how
// many were stored. Nested mappings become dotted keys. The import is
// transactional: on error nothing is stored.
func (s *Store) Import(ctx context.Context, pack string, r io.Reader) (int, error) {
	var doc map[string]any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to decode language pack: %w", err)
	}
	strs := make(map[string]string)
	if err := flatten("", doc, strs); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("could not begin transaction for import: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	stmtPut := tx.StmtContext(ctx, s.stmtPut)
	for key, value := range strs {
		if _, err = stmtPut.ExecContext(ctx, pack, key, value); err != nil {
			return 0, fmt.Errorf("failed to store %s: %w", key, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("could not commit import: %w", err)
	}

	s.logger.InfoContext(ctx, "Language pack imported",
		slog.String("pack", pack),
		slog.Int("strings", len(strs)),
	)
	return len(strs), nil
}

func flatten(prefix string, node map[string]any, out map[string]string) error {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch t := v.(type) {
		case map[string]any:
			if err := flatten(key, t, out); err != nil {
				return err
			}
		case map[any]any:
			m := make(map[string]any, len(t))
			for mk, mv := range t {
				m[fmt.Sprint(mk)] = mv
			}
			if err := flatten(key, m, out); err != nil {
				return err
			}
		case []any:
			return fmt.Errorf("language key %s: lists are not supported", key)
		case nil:
			out[key] = ""
		default:
			out[key] = fmt.Sprint(t)
		}
	}
	return nil
}

// Export writes pack as a flat YAML mapping of dotted keys, sorted by key.
func (s *Store) Export(ctx context.Context, pack string, w io.Writer) error {
	table, err := s.Table(ctx, pack)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err = enc.Encode(map[string]string(table)); err != nil {
		return fmt.Errorf("failed to encode language pack: %w", err)
	}
	return enc.Close()
}

// Table loads packs into memory. Later packs override earlier ones, so a
// base language can be listed first and a regional variant after it.
func (s *Store) Table(ctx context.Context, packs ...string) (Table, error) {
	table := make(Table)
	for _, pack := range packs {
		rows, err := s.stmtPack.QueryContext(ctx, pack)
		if err != nil {
			return nil, fmt.Errorf("failed to load pack %s: %w", pack, err)
		}
		for rows.Next() {
			var key, value string
			if err = rows.Scan(&key, &value); err != nil {
				_ = rows.Close()
				return nil, err
			}
			table[key] = value
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return table, nil
}

// Table is an in-memory snapshot of language strings.
type Table map[string]string

// Translate returns the string stored under key.
func (t Table) Translate(key string) (string, bool) {
	s, ok := t[key]
	return s, ok
}

// Keys returns the keys of t in sorted order.
func (t Table) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
