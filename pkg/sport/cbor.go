// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sport

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// EventRecord is a timestamped event as exchanged with bridge clients and
// persisted by recorders. In CBOR it is encoded as an integer-keyed map:
// {0: kind, 1: value, 2: unix milliseconds}.
type EventRecord struct {
	Kind      TelemetryKind `cbor:"0,keyasint" json:"-"`
	Value     int32         `cbor:"1,keyasint" json:"value"`
	Timestamp int64         `cbor:"2,keyasint" json:"ts_ms"`
	KindName  string        `cbor:"-" json:"kind"`
}

// NewEventRecord stamps an event with the given time
func NewEventRecord(e Event, t time.Time) EventRecord {
	return EventRecord{
		Kind:      e.Kind,
		Value:     e.Value,
		Timestamp: t.UnixMilli(),
		KindName:  FormatKind(e.Kind),
	}
}

// Event returns the event carried by the record
func (r EventRecord) Event() Event {
	return Event{Kind: r.Kind, Value: r.Value}
}

// Time returns the record timestamp
func (r EventRecord) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// MarshalEvent encodes a record to CBOR
func MarshalEvent(r EventRecord) ([]byte, error) {
	data, err := cbor.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR: %w", err)
	}
	return data, nil
}

// UnmarshalEvent decodes a CBOR record produced by MarshalEvent
func UnmarshalEvent(data []byte) (EventRecord, error) {
	var r EventRecord
	if len(data) == 0 {
		return r, fmt.Errorf("empty CBOR payload")
	}
	if err := cbor.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	if r.Kind < KindFuel || r.Kind > KindGAlt {
		return r, fmt.Errorf("telemetry kind out of range: %d", int(r.Kind))
	}
	r.KindName = FormatKind(r.Kind)
	return r, nil
}
