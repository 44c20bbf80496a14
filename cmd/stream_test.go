// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/sportscope/pkg/sport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeConnection returns a Connection reading from one end of an in-memory
// pipe and the other end for the test to write to
func pipeConnection(t *testing.T) (Connection, net.Conn) {
	t.Helper()
	local, remote := net.Pipe()
	t.Cleanup(func() {
		local.Close()
		remote.Close()
	})
	return &TCPConnection{conn: local}, remote
}

// writeCaptureFile writes data to a capture file and returns its path
func writeCaptureFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// writeCapture writes a capture file and returns a connection replaying it
func writeCapture(t *testing.T, data []byte) Connection {
	t.Helper()
	conn, err := OpenFileConnection(writeCaptureFile(t, data))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// ============================================================
// streamDecoder
// ============================================================

func TestStreamDecoder_ReportsEveryFrame(t *testing.T) {
	var stream []byte
	stream = append(stream, 0x00, 0x11, 0x22)
	stream = append(stream, sport.MustEncodeEvent(sport.Event{Kind: sport.KindVBAT, Value: 1650})...)
	stream = append(stream, sport.EncodeFrame(sport.NewFrame(0x98, sport.FrameTypeData, sport.DataTypeVFAS, 5))...)
	stream = append(stream, sport.EncodeFrame(sport.NewDataFrame(0x5100, 7))...)

	var results []frameResult
	d := newStreamDecoder()
	d.decode(stream, func(r frameResult) {
		results = append(results, r)
	})

	require.Len(t, results, 3)
	assert.Equal(t, sport.OutcomeEvent, results[0].outcome)
	assert.Equal(t, sport.Event{Kind: sport.KindVBAT, Value: 1650}, results[0].event)
	assert.Equal(t, sport.OutcomeRejected, results[1].outcome)
	assert.Equal(t, sport.OutcomeUnknown, results[2].outcome)
	assert.Equal(t, uint16(0x5100), results[2].frame.DataTypeID())
	assert.Equal(t, uint64(len(stream)), d.bytesRead)
}

func TestStreamDecoder_SplitChunks(t *testing.T) {
	wire := sport.MustEncodeEvent(sport.Event{Kind: sport.KindRSSI, Value: 0x7E})

	var events []sport.Event
	d := newStreamDecoder()
	for _, b := range wire {
		d.decode([]byte{b}, func(r frameResult) {
			events = append(events, r.event)
		})
	}

	assert.Equal(t, []sport.Event{{Kind: sport.KindRSSI, Value: 0x7E}}, events)
}

// ============================================================
// readLoop
// ============================================================

func TestReadLoop_FileReplay(t *testing.T) {
	var stream []byte
	for i := int32(0); i < 100; i++ {
		stream = append(stream, sport.MustEncodeEvent(sport.Event{Kind: sport.KindAltitude, Value: i})...)
	}
	conn := writeCapture(t, stream)

	var got bytes.Buffer
	err := readLoop(context.Background(), conn, func(data []byte) {
		got.Write(data)
	})

	require.NoError(t, err)
	assert.Equal(t, stream, got.Bytes())
}

func TestReadLoop_CancelUnblocksRead(t *testing.T) {
	conn, _ := pipeConnection(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- readLoop(ctx, conn, func([]byte) {})
	}()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("readLoop did not return after cancel")
	}
}

func TestReadLoop_RemoteClose(t *testing.T) {
	conn, remote := pipeConnection(t)

	done := make(chan error, 1)
	var received bytes.Buffer
	go func() {
		done <- readLoop(context.Background(), conn, func(data []byte) {
			received.Write(data)
		})
	}()

	_, err := remote.Write([]byte{0x7E, 0x1B})
	require.NoError(t, err)
	remote.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("readLoop did not return after remote close")
	}
	assert.Equal(t, []byte{0x7E, 0x1B}, received.Bytes())
}

// ============================================================
// packet_test
// ============================================================

func TestWaitForEvent_SkipsDiscardedFrames(t *testing.T) {
	var stream []byte
	stream = append(stream, sport.EncodeFrame(sport.NewFrame(0x98, sport.FrameTypeData, sport.DataTypeVFAS, 5))...)
	stream = append(stream, sport.EncodeFrame(sport.NewDataFrame(0x5100, 7))...)
	stream = append(stream, sport.MustEncodeEvent(sport.Event{Kind: sport.KindFuel, Value: 80})...)
	conn := writeCapture(t, stream)

	result, err := waitForEvent(context.Background(), conn, 5*time.Second)

	require.NoError(t, err)
	assert.Equal(t, sport.Event{Kind: sport.KindFuel, Value: 80}, result.event)
	assert.Equal(t, 2, result.discarded)
	assert.Equal(t, sport.DataTypeFuel, result.frame.DataTypeID())
}

func TestWaitForEvent_Timeout(t *testing.T) {
	conn, _ := pipeConnection(t)

	start := time.Now()
	_, err := waitForEvent(context.Background(), conn, 100*time.Millisecond)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no telemetry event")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestWaitForEvent_SourceExhausted(t *testing.T) {
	conn := writeCapture(t, sport.EncodeFrame(sport.NewDataFrame(0x5100, 7)))

	_, err := waitForEvent(context.Background(), conn, 5*time.Second)

	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "connection closed"), err.Error())
}
