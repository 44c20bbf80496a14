// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sport

// Checksum computes the S.Port frame checksum: bytes are summed with the
// carry folded back in, and the result is complemented. It covers frame
// bytes 1..7 (frame type through value).
func Checksum(data []byte) byte {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
		sum += sum >> 8
		sum &= 0xFF
	}
	return byte(0xFF - sum)
}

// TrailerValid reports whether the frame trailer matches its checksum.
// The decoder never calls this; it exists for diagnostics.
func TrailerValid(f *Frame) bool {
	return Checksum(f.raw[1:8]) == f.raw[8]
}
