// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package store persists decoded S.Port telemetry events in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/Thermoquad/sportscope/pkg/sport"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database holding recording sessions and events
type Store struct {
	db *sql.DB
}

// Session is one recording run
type Session struct {
	ID        string
	Source    string
	StartedAt time.Time
}

// KindSummary aggregates the values recorded for one telemetry kind
type KindSummary struct {
	Kind   sport.TelemetryKind
	Count  int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	Last   int32
}

// Open opens (or creates) the database at path and applies migrations
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// StartSession creates a new session for events read from source
func (s *Store) StartSession(source string) (Session, error) {
	session := Session{
		ID:        uuid.New().String(),
		Source:    source,
		StartedAt: time.Now(),
	}

	_, err := s.db.Exec(
		`INSERT INTO sessions (session_id, source, started_at) VALUES (?, ?, ?)`,
		session.ID, session.Source, session.StartedAt.UnixMilli(),
	)
	if err != nil {
		return Session{}, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// Sessions returns all sessions, oldest first
func (s *Store) Sessions() ([]Session, error) {
	rows, err := s.db.Query(`SELECT session_id, source, started_at FROM sessions ORDER BY started_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var session Session
		var startedAt int64
		if err := rows.Scan(&session.ID, &session.Source, &startedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		session.StartedAt = time.UnixMilli(startedAt)
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// Insert records an event in the given session
func (s *Store) Insert(sessionID string, rec sport.EventRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO events (session_id, kind, kind_name, value, ts_ms) VALUES (?, ?, ?, ?, ?)`,
		sessionID, int(rec.Kind), sport.FormatKind(rec.Kind), rec.Value, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// InsertBatch records several events of a session in one transaction
func (s *Store) InsertBatch(sessionID string, records []sport.EventRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO events (session_id, kind, kind_name, value, ts_ms) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.Exec(sessionID, int(rec.Kind), sport.FormatKind(rec.Kind), rec.Value, rec.Timestamp); err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}
	return nil
}

// Events returns the events of a session in insertion order
func (s *Store) Events(sessionID string) ([]sport.EventRecord, error) {
	rows, err := s.db.Query(
		`SELECT kind, value, ts_ms FROM events WHERE session_id = ? ORDER BY event_id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var records []sport.EventRecord
	for rows.Next() {
		var kind int
		var rec sport.EventRecord
		if err := rows.Scan(&kind, &rec.Value, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		rec.Kind = sport.TelemetryKind(kind)
		rec.KindName = sport.FormatKind(rec.Kind)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Summary returns per-kind statistics for a session, ordered by kind
func (s *Store) Summary(sessionID string) ([]KindSummary, error) {
	records, err := s.Events(sessionID)
	if err != nil {
		return nil, err
	}

	values := make(map[sport.TelemetryKind][]float64)
	last := make(map[sport.TelemetryKind]int32)
	for _, rec := range records {
		values[rec.Kind] = append(values[rec.Kind], float64(rec.Value))
		last[rec.Kind] = rec.Value
	}

	summaries := make([]KindSummary, 0, len(values))
	for kind, x := range values {
		summary := KindSummary{
			Kind:  kind,
			Count: len(x),
			Min:   floats.Min(x),
			Max:   floats.Max(x),
			Last:  last[kind],
		}
		if len(x) > 1 {
			summary.Mean, summary.StdDev = stat.MeanStdDev(x, nil)
		} else {
			summary.Mean = x[0]
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Kind < summaries[j].Kind
	})
	return summaries, nil
}
