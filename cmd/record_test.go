// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/Thermoquad/sportscope/pkg/sport"
	"github.com/Thermoquad/sportscope/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock replaces timeNow for the duration of a test
type fakeClock struct {
	now time.Time
}

func newFakeClock(t *testing.T) *fakeClock {
	t.Helper()
	c := &fakeClock{now: time.UnixMilli(1700000000000)}
	timeNow = func() time.Time { return c.now }
	t.Cleanup(func() { timeNow = time.Now })
	return c
}

func (c *fakeClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func openRecordStore(t *testing.T) (*store.Store, store.Session) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "record.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	session, err := db.StartSession("test")
	require.NoError(t, err)
	return db, session
}

func TestSessionRecorder_BatchSize(t *testing.T) {
	newFakeClock(t)
	db, session := openRecordStore(t)

	r := newSessionRecorder(db, session.ID, 3, time.Hour)
	p := sport.NewProcessor(r)

	for i := int32(0); i < 7; i++ {
		p.Write(sport.MustEncodeEvent(sport.Event{Kind: sport.KindAltitude, Value: i}))
	}

	events, err := db.Events(session.ID)
	require.NoError(t, err)
	assert.Len(t, events, 6)
	assert.Equal(t, 6, r.total)
	assert.Len(t, r.pending, 1)

	require.NoError(t, r.flush())
	events, err = db.Events(session.ID)
	require.NoError(t, err)
	require.Len(t, events, 7)
	for i, e := range events {
		assert.Equal(t, int32(i), e.Value)
	}
}

func TestSessionRecorder_FlushInterval(t *testing.T) {
	clock := newFakeClock(t)
	db, session := openRecordStore(t)

	r := newSessionRecorder(db, session.ID, 1000, time.Second)
	r.OnEvent(sport.Event{Kind: sport.KindRSSI, Value: 95})

	r.tick()
	events, err := db.Events(session.ID)
	require.NoError(t, err)
	assert.Empty(t, events)

	clock.advance(time.Second)
	r.tick()
	events, err = db.Events(session.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, sport.KindRSSI, events[0].Kind)
	assert.Equal(t, int64(1700000000000), events[0].Timestamp)
}

func TestSessionRecorder_FailedWritesBoundBacklog(t *testing.T) {
	clock := newFakeClock(t)
	db, session := openRecordStore(t)
	require.NoError(t, db.Close())

	r := newSessionRecorder(db, session.ID, 4, time.Second)
	limit := 4 * maxPendingBatches

	for i := int32(0); i < 500; i++ {
		r.OnEvent(sport.Event{Kind: sport.KindAltitude, Value: i})
		if i%50 == 0 {
			clock.advance(time.Second)
			r.tick()
		}
		require.LessOrEqual(t, len(r.pending), limit)
	}

	assert.True(t, r.failing)
	assert.Equal(t, 0, r.total)
	assert.Equal(t, 500-limit, r.dropped)
	require.Len(t, r.pending, limit)
	assert.Equal(t, int32(500-limit), r.pending[0].Value)
	assert.Equal(t, int32(499), r.pending[limit-1].Value)
}

func TestSessionRecorder_RecoversAfterFailedWrites(t *testing.T) {
	clock := newFakeClock(t)
	broken, session := openRecordStore(t)
	require.NoError(t, broken.Close())

	r := newSessionRecorder(broken, session.ID, 2, time.Second)
	for i := int32(0); i < 5; i++ {
		r.OnEvent(sport.Event{Kind: sport.KindFuel, Value: i})
	}
	require.True(t, r.failing)

	db, session := openRecordStore(t)
	r.store = db
	r.sessionID = session.ID

	clock.advance(time.Second)
	r.tick()

	assert.False(t, r.failing)
	assert.Empty(t, r.pending)
	assert.Equal(t, 5, r.total)
	assert.Zero(t, r.dropped)

	events, err := db.Events(session.ID)
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, []store.KindSummary{
		{Kind: sport.KindVBAT, Count: 4, Mean: 1650.5, StdDev: 1.29, Min: 1649, Max: 1652, Last: 1650},
	})

	out := buf.String()
	assert.Contains(t, out, "Kind")
	assert.Contains(t, out, "VBAT")
	assert.Contains(t, out, "1650.50")
	assert.Contains(t, out, "16.50 V")
}

func TestPrintSummary_Empty(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, nil)
	assert.Equal(t, "No events recorded\n", buf.String())
}
