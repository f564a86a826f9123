// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const createStateTableSQL = `
CREATE TABLE IF NOT EXISTS state (
    slot TEXT PRIMARY KEY,
    version INTEGER NOT NULL,
    record BLOB NOT NULL,
    updated_at TEXT NOT NULL
);`

// SQLiteStore keeps records in a SQLite table
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens or creates the database file
func OpenSQLiteStore(ctx context.Context, fileName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", fileName)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fileName, err)
	}
	if _, err := db.ExecContext(ctx, createStateTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create state table in %s: %w", fileName, err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load implements Store
func (q *SQLiteStore) Load(ctx context.Context, slot string) (State, bool, error) {
	var data []byte
	err := q.db.QueryRowContext(ctx, "SELECT record FROM state WHERE slot = ?", slot).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("select state: %w", err)
	}
	s, err := Decode(data)
	return s, true, err
}

// Save implements Store
func (q *SQLiteStore) Save(ctx context.Context, slot string, s State) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO state(slot, version, record, updated_at) VALUES(?, ?, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET version = excluded.version, record = excluded.record, updated_at = excluded.updated_at`,
		slot, s.Version, data, time.Now().UTC().Format("2006-01-02 15:04:05.000"))
	if err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}
	return nil
}

// Close closes the database
func (q *SQLiteStore) Close() error {
	return q.db.Close()
}
