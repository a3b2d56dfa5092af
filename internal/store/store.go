// Package store is the shared persisted key/value store every surface
// renders from. It is the system of record for pipeline output: writers
// publish whole results in one transaction, readers subscribe to the keys
// they care about.
package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pierrec/lz4/v4"
	_ "modernc.org/sqlite"
)

// Values larger than this are stored lz4-compressed. Cooked post HTML for
// a long thread can run to hundreds of kilobytes.
const compressThreshold = 4 << 10

// Compressed value framing: magic + 4-byte LE uncompressed size + lz4 block.
var lz4Magic = []byte("fhlz4\x00")

// migration is a numbered schema change. Migrations are applied in order
// and tracked in the schema_migrations table so each runs exactly once.
type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "key/value table",
		SQL: `
CREATE TABLE IF NOT EXISTS kv (
    key         TEXT PRIMARY KEY,
    value       BLOB NOT NULL,
    updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);`,
	},
}

// Store is a SQLite-backed kv store with change notification. Safe for
// concurrent use.
type Store struct {
	db *sql.DB

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// Open opens (or creates) the store at the given path, creating parent
// directories and running pending migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, subs: make(map[*Subscription]struct{})}, nil
}

func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if exists > 0 {
			continue
		}
		if _, err := db.Exec(m.SQL); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := db.Exec(
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// DefaultPath returns the default database file path:
// ~/.local/share/forumhilfe/forumhilfe.db
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "forumhilfe", "forumhilfe.db"), nil
}

// Close closes all subscriptions and the database.
func (s *Store) Close() error {
	s.mu.Lock()
	for sub := range s.subs {
		close(sub.ch)
	}
	s.subs = make(map[*Subscription]struct{})
	s.mu.Unlock()
	return s.db.Close()
}

// Get returns the value for key. The second result is false if the key is
// absent.
func (s *Store) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	value, err = decode(value)
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Set writes one key and notifies subscribers.
func (s *Store) Set(key string, value []byte) error {
	return s.SetMulti(map[string][]byte{key: value})
}

// SetMulti writes all keys in a single transaction — readers observe
// either none or all of them — then notifies subscribers once with the
// full changed key set.
func (s *Store) SetMulti(values map[string][]byte) error {
	if len(values) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for key, value := range values {
		_, err := tx.Exec(
			`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
			key, encode(value),
		)
		if err != nil {
			return fmt.Errorf("set %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	s.notify(keys)
	return nil
}

// Delete removes the given keys and notifies subscribers.
func (s *Store) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, key := range keys {
		if _, err := tx.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
			return fmt.Errorf("delete %q: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	s.notify(keys)
	return nil
}

// DeleteByPrefix removes every key starting with prefix. Used to clear
// session-scoped entries at startup. Subscribers are not notified — this
// runs before any view exists.
func (s *Store) DeleteByPrefix(prefix string) error {
	_, err := s.db.Exec("DELETE FROM kv WHERE key LIKE ? || '%'", prefix)
	if err != nil {
		return fmt.Errorf("delete prefix %q: %w", prefix, err)
	}
	return nil
}

func encode(value []byte) []byte {
	if len(value) < compressThreshold {
		return value
	}
	var c lz4.Compressor
	buf := make([]byte, lz4.CompressBlockBound(len(value)))
	n, err := c.CompressBlock(value, buf)
	if err != nil || n == 0 || n >= len(value) {
		// Incompressible — store raw.
		return value
	}
	out := make([]byte, 0, len(lz4Magic)+4+n)
	out = append(out, lz4Magic...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(value)))
	return append(out, buf[:n]...)
}

func decode(stored []byte) ([]byte, error) {
	const headerSize = 10 // 6 magic + 4 size
	if len(stored) < headerSize || string(stored[:len(lz4Magic)]) != string(lz4Magic) {
		return stored, nil
	}
	size := binary.LittleEndian.Uint32(stored[len(lz4Magic):headerSize])
	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(stored[headerSize:], dst)
	if err != nil {
		return nil, fmt.Errorf("decompress value: %w", err)
	}
	return dst[:n], nil
}
