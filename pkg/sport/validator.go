// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sport

import "fmt"

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	AnomalyTrailerMismatch AnomalyType = iota
	AnomalyOutOfRange
)

// ValidationError describes a suspicious frame or event. Validation is
// informational: it never changes what the dispatcher emits.
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateFrame checks a frame's trailer against its checksum
func ValidateFrame(f *Frame) []ValidationError {
	errors := []ValidationError{}

	if !TrailerValid(f) {
		expected := Checksum(f.raw[1:8])
		errors = append(errors, ValidationError{
			Type:    AnomalyTrailerMismatch,
			Message: fmt.Sprintf("Trailer mismatch: expected 0x%02X, got 0x%02X", expected, f.Trailer()),
			Details: map[string]interface{}{"expected": expected, "received": f.Trailer()},
		})
	}

	return errors
}

// ValidateEvent checks an event value for implausible readings
func ValidateEvent(e Event) []ValidationError {
	errors := []ValidationError{}

	switch e.Kind {
	case KindRSSI:
		if e.Value < 0 || e.Value > 100 {
			errors = append(errors, ValidationError{
				Type:    AnomalyOutOfRange,
				Message: fmt.Sprintf("RSSI out of range (%d, valid: 0-100)", e.Value),
				Details: map[string]interface{}{"value": e.Value, "min": 0, "max": 100},
			})
		}
	case KindVBAT, KindCellVoltage:
		if e.Value < 0 {
			errors = append(errors, ValidationError{
				Type:    AnomalyOutOfRange,
				Message: fmt.Sprintf("Negative %s (%d)", FormatKind(e.Kind), e.Value),
				Details: map[string]interface{}{"value": e.Value, "min": 0},
			})
		}
	}

	return errors
}
