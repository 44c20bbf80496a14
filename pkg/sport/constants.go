// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sport decodes the FrSky S.Port telemetry stream.
//
// S.Port frames start with a START byte followed by nine byte-stuffed data
// bytes: physical sensor id, frame type, 16-bit data type id, 32-bit value
// and a trailing checksum byte. This package provides the byte-at-a-time
// frame decoder, the sensor dispatcher that turns frames into typed
// telemetry events, a frame encoder for generating streams, and helpers
// for formatting and collecting statistics.
//
// The decoder trusts framing: the trailing checksum is carried through
// unexamined and a START byte inside a frame is treated as data.
package sport

// Protocol framing bytes
const (
	StartByte = 0x7E
	EscByte   = 0x7D
	EscXor    = 0x20
)

// PacketSize is the de-stuffed length of a frame, START byte excluded
const PacketSize = 9

// Header values accepted by the dispatcher
const (
	SensorFlightController = 0x1B // flight controller sensor bus id
	FrameTypeData          = 0x10 // ordinary data frame
)

// Data type ids (little-endian on the wire)
const (
	DataTypeAltitude uint16 = 0x0100
	DataTypeVSpeed   uint16 = 0x0110
	DataTypeCurrent  uint16 = 0x0200
	DataTypeVFAS     uint16 = 0x0210
	DataTypeFlyMode  uint16 = 0x0400
	DataTypeGPSState uint16 = 0x0410
	DataTypeDistance uint16 = 0x0420
	DataTypePitch    uint16 = 0x0430
	DataTypeRoll     uint16 = 0x0440
	DataTypeFuel     uint16 = 0x0600
	DataTypeGPS      uint16 = 0x0800
	DataTypeGPSAlt   uint16 = 0x0820
	DataTypeGPSSpeed uint16 = 0x0830
	DataTypeHeading  uint16 = 0x0840
	DataTypeCells    uint16 = 0x0910
	DataTypeRSSI     uint16 = 0xF101
)

// State is the frame decoder state
type State int

// Decoder states
const (
	StateIdle State = iota
	StatePayload
	StateEscape
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StatePayload:
		return "PAYLOAD"
	case StateEscape:
		return "ESCAPE"
	default:
		return "UNKNOWN"
	}
}
