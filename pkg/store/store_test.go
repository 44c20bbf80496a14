// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Thermoquad/sportscope/pkg/sport"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_AppliesMigrations(t *testing.T) {
	s := openTestStore(t)

	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// running again is a no-op
	require.NoError(t, s.MigrateUp())
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.db")

	s, err := Open(path)
	require.NoError(t, err)
	session, err := s.StartSession("serial:/dev/ttyUSB0")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	sessions, err := s.Sessions()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, session.ID, sessions[0].ID)
	assert.Equal(t, "serial:/dev/ttyUSB0", sessions[0].Source)
}

func TestStartSession_UniqueIDs(t *testing.T) {
	s := openTestStore(t)

	a, err := s.StartSession("a")
	require.NoError(t, err)
	b, err := s.StartSession("b")
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)

	sessions, err := s.Sessions()
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "a", sessions[0].Source)
	assert.Equal(t, "b", sessions[1].Source)
}

func TestInsertAndEvents(t *testing.T) {
	s := openTestStore(t)
	session, err := s.StartSession("test")
	require.NoError(t, err)
	other, err := s.StartSession("other")
	require.NoError(t, err)

	ts := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	want := []sport.EventRecord{
		sport.NewEventRecord(sport.Event{Kind: sport.KindVBAT, Value: 1650}, ts),
		sport.NewEventRecord(sport.Event{Kind: sport.KindRSSI, Value: 97}, ts.Add(time.Second)),
		sport.NewEventRecord(sport.Event{Kind: sport.KindRoll, Value: -300}, ts.Add(2*time.Second)),
	}
	for _, rec := range want {
		require.NoError(t, s.Insert(session.ID, rec))
	}
	require.NoError(t, s.Insert(other.ID, want[0]))

	got, err := s.Events(session.ID)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Events mismatch (-want +got):\n%s", diff)
	}
}

func TestInsertBatch(t *testing.T) {
	s := openTestStore(t)
	session, err := s.StartSession("batch")
	require.NoError(t, err)

	require.NoError(t, s.InsertBatch(session.ID, nil))

	ts := time.UnixMilli(1700000000000)
	var want []sport.EventRecord
	for i, kind := range sport.Kinds() {
		want = append(want, sport.NewEventRecord(sport.Event{Kind: kind, Value: int32(i * 10)}, ts))
	}
	require.NoError(t, s.InsertBatch(session.ID, want))

	got, err := s.Events(session.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Events mismatch (-want +got):\n%s", diff)
	}
}

func TestEvents_UnknownSession(t *testing.T) {
	s := openTestStore(t)

	got, err := s.Events("does-not-exist")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSummary(t *testing.T) {
	s := openTestStore(t)
	session, err := s.StartSession("test")
	require.NoError(t, err)

	now := time.Now()
	for _, v := range []int32{2, 4, 4, 4, 5, 5, 7, 9} {
		require.NoError(t, s.Insert(session.ID, sport.NewEventRecord(sport.Event{Kind: sport.KindAltitude, Value: v}, now)))
	}
	require.NoError(t, s.Insert(session.ID, sport.NewEventRecord(sport.Event{Kind: sport.KindFuel, Value: 80}, now)))

	got, err := s.Summary(session.ID)
	require.NoError(t, err)

	want := []KindSummary{
		{Kind: sport.KindFuel, Count: 1, Mean: 80, StdDev: 0, Min: 80, Max: 80, Last: 80},
		{Kind: sport.KindAltitude, Count: 8, Mean: 5, StdDev: 2.138089935, Min: 2, Max: 9, Last: 9},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("Summary mismatch (-want +got):\n%s", diff)
	}
}
