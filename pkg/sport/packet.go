// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sport

import "encoding/binary"

// Frame is a complete de-stuffed S.Port frame
type Frame struct {
	raw [PacketSize]byte
}

// FrameFromBytes wraps nine de-stuffed bytes as a frame
func FrameFromBytes(raw [PacketSize]byte) *Frame {
	return &Frame{raw: raw}
}

// NewFrame builds a frame from its fields. The trailer is filled with the
// frame checksum.
func NewFrame(deviceID, frameType uint8, dataTypeID uint16, value int32) *Frame {
	f := &Frame{}
	f.raw[0] = deviceID
	f.raw[1] = frameType
	binary.LittleEndian.PutUint16(f.raw[2:4], dataTypeID)
	binary.LittleEndian.PutUint32(f.raw[4:8], uint32(value))
	f.raw[8] = Checksum(f.raw[1:8])
	return f
}

// NewDataFrame builds a flight controller data frame
func NewDataFrame(dataTypeID uint16, value int32) *Frame {
	return NewFrame(SensorFlightController, FrameTypeData, dataTypeID, value)
}

// DeviceID returns the physical sensor id (byte 0)
func (f *Frame) DeviceID() uint8 {
	return f.raw[0]
}

// FrameType returns the frame type (byte 1)
func (f *Frame) FrameType() uint8 {
	return f.raw[1]
}

// DataTypeID returns the 16-bit data type id (bytes 2-3)
func (f *Frame) DataTypeID() uint16 {
	return binary.LittleEndian.Uint16(f.raw[2:4])
}

// Value returns the signed 32-bit value (bytes 4-7)
func (f *Frame) Value() int32 {
	return int32(binary.LittleEndian.Uint32(f.raw[4:8]))
}

// Trailer returns the trailing checksum byte as received
func (f *Frame) Trailer() uint8 {
	return f.raw[8]
}

// Bytes returns a copy of the de-stuffed frame bytes
func (f *Frame) Bytes() []byte {
	b := make([]byte, PacketSize)
	copy(b, f.raw[:])
	return b
}

// IsTelemetry returns true if the header passes the dispatcher filter
func (f *Frame) IsTelemetry() bool {
	return f.raw[0] == SensorFlightController && f.raw[1] == FrameTypeData
}
