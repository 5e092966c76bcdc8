// Package sqlite provides a persistent cache.Storage backed by SQLite.
//
// Partitions survive process restarts the same way browser cache storage
// survives page loads. Response bodies are stored snappy-compressed.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/snappy"
	_ "modernc.org/sqlite"

	"github.com/jonwraymond/shellcache/cache"
)

const schema = `
CREATE TABLE IF NOT EXISTS partitions (
	name       TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	partition   TEXT NOT NULL REFERENCES partitions(name) ON DELETE CASCADE,
	key         TEXT NOT NULL,
	status      INTEGER NOT NULL,
	header_json TEXT NOT NULL,
	body        BLOB,
	url         TEXT NOT NULL,
	stored_at   INTEGER NOT NULL,
	PRIMARY KEY (partition, key)
);`

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Storage is a SQLite-backed cache.Storage.
type Storage struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens (or creates) a storage database at path.
// The special path ":memory:" opens a private in-memory database.
func Open(path string) (*Storage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path)
	}
	dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a distinct database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Storage{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Storage) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Open returns the named partition, creating it on first use.
func (s *Storage) Open(ctx context.Context, name string) (cache.Partition, error) {
	if err := cache.ValidatePartitionName(name); err != nil {
		return nil, err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO partitions (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, toMillis(s.now()))
	if err != nil {
		return nil, fmt.Errorf("create partition %q: %w", name, err)
	}
	return &partition{name: name, storage: s}, nil
}

// Has reports whether the named partition exists.
func (s *Storage) Has(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM partitions WHERE name = ?`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup partition %q: %w", name, err)
	}
	return true, nil
}

// Delete removes the named partition and its entries.
func (s *Storage) Delete(ctx context.Context, name string) (bool, error) {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM partitions WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete partition %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete partition %q: %w", name, err)
	}
	return n > 0, nil
}

// Names returns the partition names in sorted order.
func (s *Storage) Names(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT name FROM partitions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan partition: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

type partition struct {
	name    string
	storage *Storage
}

func (p *partition) Name() string {
	return p.name
}

func (p *partition) Match(ctx context.Context, key string) (*cache.Response, bool) {
	var (
		status     int
		headerJSON string
		body       []byte
		url        string
		storedAt   int64
	)
	err := p.storage.sqlDB.QueryRowContext(ctx,
		`SELECT status, header_json, body, url, stored_at FROM entries WHERE partition = ? AND key = ?`,
		p.name, key).Scan(&status, &headerJSON, &body, &url, &storedAt)
	if err != nil {
		return nil, false
	}

	header, err := decodeHeader(headerJSON)
	if err != nil {
		return nil, false
	}
	decoded, err := decodeBody(body)
	if err != nil {
		return nil, false
	}

	return &cache.Response{
		Status:   status,
		Header:   header,
		Body:     decoded,
		URL:      url,
		StoredAt: fromMillis(storedAt),
	}, true
}

func (p *partition) Put(ctx context.Context, key string, resp *cache.Response) error {
	if resp == nil {
		return cache.ErrNilResponse
	}
	if err := cache.ValidateKey(key); err != nil {
		return err
	}

	headerJSON, err := encodeHeader(resp.Header)
	if err != nil {
		return err
	}
	storedAt := resp.StoredAt
	if storedAt.IsZero() {
		storedAt = p.storage.now()
	}

	// The partition row must still exist; a handle kept across Storage.Delete
	// fails the foreign key check instead of resurrecting the partition.
	_, err = p.storage.sqlDB.ExecContext(ctx,
		`INSERT INTO entries (partition, key, status, header_json, body, url, stored_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(partition, key) DO UPDATE SET
		   status = excluded.status,
		   header_json = excluded.header_json,
		   body = excluded.body,
		   url = excluded.url,
		   stored_at = excluded.stored_at`,
		p.name, key, resp.Status, headerJSON, snappy.Encode(nil, resp.Body), resp.URL, toMillis(storedAt))
	if err != nil {
		return fmt.Errorf("put %q in %q: %w", key, p.name, err)
	}
	return nil
}

func (p *partition) Delete(ctx context.Context, key string) error {
	_, err := p.storage.sqlDB.ExecContext(ctx,
		`DELETE FROM entries WHERE partition = ? AND key = ?`, p.name, key)
	if err != nil {
		return fmt.Errorf("delete %q from %q: %w", key, p.name, err)
	}
	return nil
}

func (p *partition) Keys(ctx context.Context) ([]string, error) {
	rows, err := p.storage.sqlDB.QueryContext(ctx,
		`SELECT key FROM entries WHERE partition = ? ORDER BY key`, p.name)
	if err != nil {
		return nil, fmt.Errorf("list keys of %q: %w", p.name, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func encodeHeader(h http.Header) (string, error) {
	if len(h) == 0 {
		return "{}", nil
	}
	encoded, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("marshal header: %w", err)
	}
	return string(encoded), nil
}

func decodeHeader(value string) (http.Header, error) {
	h := http.Header{}
	if strings.TrimSpace(value) == "" {
		return h, nil
	}
	if err := json.Unmarshal([]byte(value), &h); err != nil {
		return nil, fmt.Errorf("unmarshal header: %w", err)
	}
	return h, nil
}

func decodeBody(value []byte) ([]byte, error) {
	if len(value) == 0 {
		return nil, nil
	}
	decoded, err := snappy.Decode(nil, value)
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return decoded, nil
}

var _ cache.Storage = (*Storage)(nil)
