package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteSchema mirrors the PostgreSQL migrations. UUIDs and timestamps are TEXT;
// timestamps are RFC 3339 in UTC and dates are YYYY-MM-DD.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS facilities (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    address_one  TEXT,
    address_two  TEXT,
    city         TEXT,
    state        TEXT,
    zip          TEXT,
    phone_one    TEXT,
    phone_two    TEXT,
    email        TEXT,
    contact_name TEXT,
    created_at   TEXT NOT NULL,
    updated_at   TEXT NOT NULL,
    deleted_at   TEXT
);
CREATE INDEX IF NOT EXISTS idx_facilities_name ON facilities (name);

CREATE TABLE IF NOT EXISTS patients (
    id                TEXT PRIMARY KEY,
    facility_id       TEXT NOT NULL REFERENCES facilities (id) ON DELETE RESTRICT,
    name              TEXT NOT NULL,
    date_of_birth     TEXT,
    room_number       TEXT,
    type_of_consent   TEXT,
    primary_insurance TEXT,
    date_last_seen    TEXT,
    status            TEXT,
    created_at        TEXT NOT NULL,
    updated_at        TEXT NOT NULL,
    deleted_at        TEXT
);
CREATE INDEX IF NOT EXISTS idx_patients_facility_id ON patients (facility_id);
CREATE INDEX IF NOT EXISTS idx_patients_name ON patients (name);
`

// OpenSQLite opens (creating if needed) the database at path with foreign keys
// enforced, and applies SQLiteSchema.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; also keeps a :memory: database on a single connection.
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := conn.ExecContext(ctx, SQLiteSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return conn, nil
}

// FormatTime encodes t the way SQLite rows store timestamps.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime decodes a timestamp written by FormatTime.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// ParseNullTime decodes a nullable timestamp column.
func ParseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := ParseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// IsSQLiteForeignKeyViolation reports whether err is an SQLite FK constraint failure.
func IsSQLiteForeignKeyViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY ||
		strings.Contains(se.Error(), "FOREIGN KEY constraint failed")
}
