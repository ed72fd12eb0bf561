package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is a fixed-width UTC layout so stored timestamps sort lexically
// in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

// pragmas applied to every connection: WAL so readers never block the
// writer, a 5s busy timeout, relaxed fsync, foreign keys and a 64MB cache.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
	"cache_size(-64000)",
}

const maxReaders = 4

// DB holds separate reader and writer pools over one database file. The
// writer pool is capped at a single connection so run upserts serialize in
// SQLite instead of failing with "database is locked".
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
	path   string
}

func dsn(dbPath string) string {
	params := make([]string, 0, len(pragmas))
	for _, p := range pragmas {
		params = append(params, "_pragma="+p)
	}
	return "file:" + dbPath + "?" + strings.Join(params, "&")
}

func openPool(ctx context.Context, dsn, role string, maxConns int) (*sql.DB, error) {
	pool, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", role, err)
	}
	pool.SetMaxOpenConns(maxConns)
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping %s: %w", role, err)
	}
	return pool, nil
}

// NewDB opens the writer and reader pools for the database at dbPath.
func NewDB(ctx context.Context, dbPath string) (*DB, error) {
	source := dsn(dbPath)

	writer, err := openPool(ctx, source, "writer", 1)
	if err != nil {
		return nil, err
	}
	reader, err := openPool(ctx, source, "reader", maxReaders)
	if err != nil {
		_ = writer.Close()
		return nil, err
	}

	return &DB{Writer: writer, Reader: reader, path: dbPath}, nil
}

// Path returns the database file path the DB was opened with.
func (db *DB) Path() string {
	return db.path
}

// Close closes both pools.
func (db *DB) Close() error {
	var errs []error
	if err := db.Reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close reader: %w", err))
	}
	if err := db.Writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close writer: %w", err))
	}
	return errors.Join(errs...)
}
