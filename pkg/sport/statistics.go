// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sport

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Statistics tracks frame statistics and discard rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames      uint64
	Events           uint64
	RejectedFrames   uint64
	UnknownIDs       uint64
	TrailerMismatch  uint64
	OutOfRange       uint64
	EventsByKind     map[TelemetryKind]uint64
	UnknownIDsByType map[uint16]uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	EventRate float64 // events/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:        now,
		LastUpdateTime:   now,
		EventsByKind:     make(map[TelemetryKind]uint64),
		UnknownIDsByType: make(map[uint16]uint64),
	}
}

// Update updates statistics for a dispatched frame and its anomalies
func (s *Statistics) Update(frame *Frame, outcome Outcome, event Event, validationErrors []ValidationError) {
	s.TotalFrames++

	switch outcome {
	case OutcomeEvent:
		s.Events++
		s.EventsByKind[event.Kind]++
	case OutcomeRejected:
		s.RejectedFrames++
	case OutcomeUnknown:
		s.UnknownIDs++
		if frame != nil {
			s.UnknownIDsByType[frame.DataTypeID()]++
		}
	}

	for _, err := range validationErrors {
		switch err.Type {
		case AnomalyTrailerMismatch:
			s.TrailerMismatch++
		case AnomalyOutOfRange:
			s.OutOfRange++
		}
	}

	s.LastUpdateTime = time.Now()
}

// CalculateRates calculates frame and event rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.EventRate = float64(s.Events) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var eventPercent, rejectedPercent, unknownPercent float64
	if s.TotalFrames > 0 {
		eventPercent = float64(s.Events) * 100.0 / float64(s.TotalFrames)
		rejectedPercent = float64(s.RejectedFrames) * 100.0 / float64(s.TotalFrames)
		unknownPercent = float64(s.UnknownIDs) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	var b strings.Builder
	fmt.Fprintf(&b, "=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	fmt.Fprintf(&b, "Total Frames:    %8d\n", s.TotalFrames)
	fmt.Fprintf(&b, "Events:          %8d (%.1f%%)\n", s.Events, eventPercent)

	if s.RejectedFrames > 0 {
		fmt.Fprintf(&b, "Rejected:        %8d (%.1f%%)\n", s.RejectedFrames, rejectedPercent)
	}
	if s.UnknownIDs > 0 {
		fmt.Fprintf(&b, "Unknown IDs:     %8d (%.1f%%)\n", s.UnknownIDs, unknownPercent)
		for _, id := range slices.Sorted(maps.Keys(s.UnknownIDsByType)) {
			fmt.Fprintf(&b, "  0x%04X:          %5d\n", id, s.UnknownIDsByType[id])
		}
	}
	if s.TrailerMismatch > 0 {
		fmt.Fprintf(&b, "Trailer Mismatch:%8d\n", s.TrailerMismatch)
	}
	if s.OutOfRange > 0 {
		fmt.Fprintf(&b, "Out of Range:    %8d\n", s.OutOfRange)
	}

	for _, k := range Kinds() {
		if n := s.EventsByKind[k]; n > 0 {
			fmt.Fprintf(&b, "  %-14s %5d\n", FormatKind(k)+":", n)
		}
	}

	fmt.Fprintf(&b, "Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	fmt.Fprintf(&b, "Event Rate:      %8.1f events/sec\n", s.EventRate)
	b.WriteString("================================\n")

	return b.String()
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	now := time.Now()
	s.StartTime = now
	s.LastUpdateTime = now
	s.TotalFrames = 0
	s.Events = 0
	s.RejectedFrames = 0
	s.UnknownIDs = 0
	s.TrailerMismatch = 0
	s.OutOfRange = 0
	s.EventsByKind = make(map[TelemetryKind]uint64)
	s.UnknownIDsByType = make(map[uint16]uint64)
	s.FrameRate = 0
	s.EventRate = 0
}
