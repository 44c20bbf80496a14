// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/Thermoquad/sportscope/pkg/sport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dispatched(frame *sport.Frame) frameResult {
	event, outcome := sport.Dispatch(frame)
	return frameResult{frame: frame, outcome: outcome, event: event, timestamp: time.Now()}
}

// frameWithTrailer returns a flight controller frame with an explicit trailer
func frameWithTrailer(id uint16, value int32, trailer byte) *sport.Frame {
	raw := [sport.PacketSize]byte{
		sport.SensorFlightController, sport.FrameTypeData,
		byte(id), byte(id >> 8),
		byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24),
		trailer,
	}
	return sport.FrameFromBytes(raw)
}

func TestAnalyzeFrame_Clean(t *testing.T) {
	r := analyzeFrame(dispatched(sport.NewDataFrame(sport.DataTypeVFAS, 1650)))

	assert.Equal(t, sport.OutcomeEvent, r.outcome)
	assert.Empty(t, r.validationErrors)
}

func TestAnalyzeFrame_TrailerMismatchStillDispatched(t *testing.T) {
	r := analyzeFrame(dispatched(frameWithTrailer(sport.DataTypeVFAS, 408, 0x00)))

	assert.Equal(t, sport.OutcomeEvent, r.outcome)
	assert.Equal(t, sport.Event{Kind: sport.KindVBAT, Value: 408}, r.event)
	require.Len(t, r.validationErrors, 1)
	assert.Equal(t, sport.AnomalyTrailerMismatch, r.validationErrors[0].Type)
}

func TestAnalyzeFrame_OutOfRange(t *testing.T) {
	r := analyzeFrame(dispatched(sport.NewDataFrame(sport.DataTypeRSSI, 150)))

	require.Len(t, r.validationErrors, 1)
	assert.Equal(t, sport.AnomalyOutOfRange, r.validationErrors[0].Type)
}

func TestAnalyzeFrame_DiscardedFrameSkipsEventChecks(t *testing.T) {
	r := analyzeFrame(dispatched(sport.NewFrame(0x98, sport.FrameTypeData, sport.DataTypeRSSI, 150)))

	assert.Equal(t, sport.OutcomeRejected, r.outcome)
	assert.Empty(t, r.validationErrors)
}

func TestRunAnalyze_RejectsStatsInterval(t *testing.T) {
	saved := statsInterval
	t.Cleanup(func() { statsInterval = saved })

	for _, interval := range []int{0, -5} {
		statsInterval = interval
		err := runAnalyze(analyzeCmd, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--stats-interval must be positive")
	}
}

func TestPrintAnalyzeResult(t *testing.T) {
	tests := []struct {
		name     string
		frame    *sport.Frame
		all      bool
		contains []string
		empty    bool
	}{
		{
			name:  "clean event hidden",
			frame: sport.NewDataFrame(sport.DataTypeVFAS, 1650),
			empty: true,
		},
		{
			name:     "clean event with show-all",
			frame:    sport.NewDataFrame(sport.DataTypeVFAS, 1650),
			all:      true,
			contains: []string{"VBAT", "16.50 V"},
		},
		{
			name:     "anomaly",
			frame:    frameWithTrailer(sport.DataTypeVFAS, 1650, 0x00),
			contains: []string{"ANOMALY", "Trailer mismatch", "Frame:"},
		},
		{
			name:     "rejected",
			frame:    sport.NewFrame(0x98, sport.FrameTypeData, sport.DataTypeVFAS, 1),
			contains: []string{"REJECTED", "sensor=0x98"},
		},
		{
			name:     "unknown id",
			frame:    sport.NewDataFrame(0x5100, 1),
			contains: []string{"UNKNOWN ID", "id=0x5100"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printAnalyzeResult(&buf, analyzeFrame(dispatched(tt.frame)), tt.all)

			if tt.empty {
				assert.Empty(t, buf.String())
			}
			for _, s := range tt.contains {
				assert.Contains(t, buf.String(), s)
			}
		})
	}
}

func TestModel_TracksLatestReading(t *testing.T) {
	m := initialModel("test", false)

	for _, v := range []int32{1650, 1648, 1645} {
		next, _ := m.Update(frameMsg(analyzeFrame(dispatched(sport.NewDataFrame(sport.DataTypeVFAS, v)))))
		m = next.(model)
	}
	next, _ := m.Update(frameMsg(analyzeFrame(dispatched(sport.NewDataFrame(0x5100, 1)))))
	m = next.(model)

	require.Contains(t, m.latest, sport.KindVBAT)
	assert.Equal(t, int32(1645), m.latest[sport.KindVBAT].event.Value)
	assert.Equal(t, uint64(3), m.latest[sport.KindVBAT].count)
	assert.True(t, m.synchronized)

	assert.Equal(t, uint64(4), m.stats.TotalFrames)
	assert.Equal(t, uint64(3), m.stats.Events)
	assert.Equal(t, uint64(1), m.stats.UnknownIDs)

	rows := m.readings.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "VBAT", rows[0][0])
	assert.Equal(t, "16.45 V", rows[0][2])

	view := m.View()
	assert.Contains(t, view, "SPORTSCOPE")
	assert.Contains(t, view, "Unknown data type id 0x5100")
}

func TestModel_LogsAnomalies(t *testing.T) {
	m := initialModel("test", false)

	next, _ := m.Update(frameMsg(analyzeFrame(dispatched(frameWithTrailer(sport.DataTypeRSSI, 50, 0x00)))))
	m = next.(model)

	require.NotEmpty(t, m.eventLog)
	last := m.eventLog[len(m.eventLog)-1]
	assert.True(t, last.isError)
	assert.Contains(t, last.message, "Trailer mismatch")
	assert.Equal(t, uint64(1), m.stats.TrailerMismatch)
}

func TestFormatAge(t *testing.T) {
	assert.Equal(t, "now", formatAge(200*time.Millisecond))
	assert.Equal(t, "12s", formatAge(12*time.Second))
	assert.Equal(t, "3m", formatAge(3*time.Minute+10*time.Second))
}
