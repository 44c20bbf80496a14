// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sport

import "fmt"

// EncodeFrame returns the wire bytes for a frame: START followed by the
// byte-stuffed frame data.
func EncodeFrame(f *Frame) []byte {
	stuffed := stuffBytes(f.raw[:])

	packet := make([]byte, 0, len(stuffed)+1)
	packet = append(packet, StartByte)
	packet = append(packet, stuffed...)
	return packet
}

// EncodeEvent returns the wire bytes of a flight controller data frame
// carrying the event
func EncodeEvent(e Event) ([]byte, error) {
	id, ok := DataTypeID(e.Kind)
	if !ok {
		return nil, fmt.Errorf("no data type id for telemetry kind %d", int(e.Kind))
	}
	return EncodeFrame(NewDataFrame(id, e.Value)), nil
}

// MustEncodeEvent is like EncodeEvent but panics on error
func MustEncodeEvent(e Event) []byte {
	data, err := EncodeEvent(e)
	if err != nil {
		panic(fmt.Sprintf("sport: encode error: %v", err))
	}
	return data
}

// stuffBytes applies byte stuffing to escape special bytes.
// START and ESC are replaced with ESC + (byte XOR EscXor).
func stuffBytes(data []byte) []byte {
	result := make([]byte, 0, len(data)*2)

	for _, b := range data {
		if b == StartByte || b == EscByte {
			result = append(result, EscByte, b^EscXor)
		} else {
			result = append(result, b)
		}
	}

	return result
}

// UnstuffBytes removes byte stuffing from escaped data.
// This is the inverse of stuffBytes.
func UnstuffBytes(data []byte) ([]byte, error) {
	result := make([]byte, 0, len(data))
	escapeNext := false

	for _, b := range data {
		if escapeNext {
			result = append(result, b^EscXor)
			escapeNext = false
		} else if b == EscByte {
			escapeNext = true
		} else {
			result = append(result, b)
		}
	}

	if escapeNext {
		return nil, fmt.Errorf("incomplete escape sequence at end of data")
	}

	return result, nil
}
