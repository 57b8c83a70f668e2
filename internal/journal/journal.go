package journal

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stamped into user_version by schema.sql.
const schemaVersion = 1

// connParams are applied by the driver to every connection it opens.
const connParams = "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"

// ErrNewerJournal is returned by Open for a journal stamped with a schema
// version this build does not know.
var ErrNewerJournal = errors.New("journal was written by a newer navqueue")

// Journal stores router events in SQLite.
type Journal struct {
	db *sql.DB
}

// Open creates the journal at path, or reopens an existing one.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?"+connParams)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := prepare(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	return &Journal{db: db}, nil
}

// prepare refuses journals from newer builds and creates missing tables.
func prepare(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("%w: schema version %d, supported %d", ErrNewerJournal, version, schemaVersion)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}
