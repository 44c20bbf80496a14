// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sport

// Decoder implements the S.Port frame decoder state machine.
// It is not safe for concurrent use.
type Decoder struct {
	state       State
	buffer      [PacketSize]byte
	bufferIndex int
}

// NewDecoder creates a new frame decoder in the idle state
func NewDecoder() *Decoder {
	return &Decoder{state: StateIdle}
}

// Reset resets the decoder state to idle
func (d *Decoder) Reset() {
	d.state = StateIdle
	d.bufferIndex = 0
}

// State returns the current decoder state
func (d *Decoder) State() State {
	return d.state
}

// Buffered returns the number of de-stuffed bytes collected for the
// frame in progress
func (d *Decoder) Buffered() int {
	if d.state == StateIdle {
		return 0
	}
	return d.bufferIndex
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns the completed frame, or nil if the frame is incomplete.
//
// A START byte only begins a frame while idle. Inside a frame it is
// stored as data; there is no mid-frame resynchronization.
func (d *Decoder) DecodeByte(b byte) *Frame {
	switch d.state {
	case StateIdle:
		if b == StartByte {
			d.bufferIndex = 0
			d.state = StatePayload
		}
		return nil

	case StatePayload:
		if b == EscByte {
			d.state = StateEscape
			return nil
		}
		d.buffer[d.bufferIndex] = b
		d.bufferIndex++

	case StateEscape:
		d.buffer[d.bufferIndex] = b ^ EscXor
		d.bufferIndex++
		d.state = StatePayload

	default:
		d.Reset()
		return nil
	}

	if d.bufferIndex == PacketSize {
		d.state = StateIdle
		return FrameFromBytes(d.buffer)
	}
	return nil
}
