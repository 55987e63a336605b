package store

import (
	"database/sql"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/mattn/go-sqlite3"

	"promptforge/internal/instruction"
	"promptforge/internal/logging"
)

const defaultCacheSize = 256

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS templates (
		template_id TEXT PRIMARY KEY,
		version INTEGER NOT NULL DEFAULT 1,
		document TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
`

// SQLiteStore serves templates from a SQLite database fronted by an LRU
// cache. Lookups hit the cache first; a database miss is "not found" and is
// cached as such implicitly by the selector simply not asking again within
// a request. The store never blocks a request on anything but a single
// indexed query.
type SQLiteStore struct {
	db    *sql.DB
	cache *lru.Cache[string, instruction.Template]
}

// OpenSQLite opens (and initializes) a template database at path.
func OpenSQLite(path string, cacheSize int) (*SQLiteStore, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open template db %s: %w", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure template schema: %w", err)
	}

	cache, err := lru.New[string, instruction.Template](cacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create template cache: %w", err)
	}

	return &SQLiteStore{db: db, cache: cache}, nil
}

// Lookup returns the template for an identifier, serving repeat lookups
// from the cache.
func (s *SQLiteStore) Lookup(id string) (instruction.Template, bool) {
	if t, ok := s.cache.Get(id); ok {
		return t, true
	}

	var version int
	var doc string
	err := s.db.QueryRow(
		"SELECT version, document FROM templates WHERE template_id = ?", id,
	).Scan(&version, &doc)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logging.Get(logging.CategoryStore).Warnf("template lookup %q failed: %v", id, err)
		}
		return instruction.Template{}, false
	}

	t, err := instruction.UnmarshalTemplate([]byte(doc))
	if err != nil {
		logging.Get(logging.CategoryStore).Warnf("template %q is malformed: %v", id, err)
		return instruction.Template{}, false
	}
	t.ID = id
	t.Version = version

	s.cache.Add(id, t)
	return t, true
}

// Put inserts or replaces a template. Writes happen out-of-band of the
// request path (seeding, sync jobs); the cache entry is invalidated so the
// next lookup sees the new version.
func (s *SQLiteStore) Put(t instruction.Template) error {
	data, err := instruction.MarshalTemplate(t)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO templates (template_id, version, document, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(template_id) DO UPDATE SET
			version = excluded.version,
			document = excluded.document,
			updated_at = CURRENT_TIMESTAMP`,
		t.ID, t.Version, string(data))
	if err != nil {
		return fmt.Errorf("store template %q: %w", t.ID, err)
	}

	s.cache.Remove(t.ID)
	return nil
}

// IDs returns all template identifiers, sorted.
func (s *SQLiteStore) IDs() ([]string, error) {
	rows, err := s.db.Query("SELECT template_id FROM templates ORDER BY template_id")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
