// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sport

import (
	"fmt"
	"strings"
)

// FormatKind returns the human-readable name for a telemetry kind
func FormatKind(k TelemetryKind) string {
	switch k {
	case KindFuel:
		return "FUEL"
	case KindGPS:
		return "GPS"
	case KindVBAT:
		return "VBAT"
	case KindCellVoltage:
		return "CELL_VOLTAGE"
	case KindCurrent:
		return "CURRENT"
	case KindHeading:
		return "HEADING"
	case KindRSSI:
		return "RSSI"
	case KindFlyMode:
		return "FLYMODE"
	case KindGPSState:
		return "GPS_STATE"
	case KindVSpeed:
		return "VSPEED"
	case KindAltitude:
		return "ALTITUDE"
	case KindGSpeed:
		return "GSPEED"
	case KindDistance:
		return "DISTANCE"
	case KindRoll:
		return "ROLL"
	case KindPitch:
		return "PITCH"
	case KindGAlt:
		return "GALT"
	default:
		return fmt.Sprintf("UNKNOWN_%d", int(k))
	}
}

// ParseKind returns the kind with the given name (case-insensitive)
func ParseKind(name string) (TelemetryKind, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for _, k := range Kinds() {
		if FormatKind(k) == name {
			return k, true
		}
	}
	return 0, false
}

// DecodeGPS decodes a GPS event value. Bit 31 marks a longitude, bit 30 a
// negative coordinate, and the low 30 bits hold minutes x 10000.
func DecodeGPS(value int32) (degrees float64, isLongitude bool) {
	raw := uint32(value)
	isLongitude = raw&(1<<31) != 0
	degrees = float64(raw&0x3FFFFFFF) / 600000.0
	if raw&(1<<30) != 0 {
		degrees = -degrees
	}
	return degrees, isLongitude
}

// EncodeGPS is the inverse of DecodeGPS
func EncodeGPS(degrees float64, isLongitude bool) int32 {
	var raw uint32
	if degrees < 0 {
		raw |= 1 << 30
		degrees = -degrees
	}
	raw |= uint32(degrees*600000.0+0.5) & 0x3FFFFFFF
	if isLongitude {
		raw |= 1 << 31
	}
	return int32(raw)
}

// FormatValue returns a display hint for an event value in the units the
// flight controller firmware commonly uses. The event itself is never
// scaled.
func FormatValue(e Event) string {
	v := e.Value
	switch e.Kind {
	case KindVBAT, KindCellVoltage:
		return fmt.Sprintf("%.2f V", float64(v)/100.0)
	case KindCurrent:
		return fmt.Sprintf("%.1f A", float64(v)/10.0)
	case KindHeading:
		return fmt.Sprintf("%.2f°", float64(v)/100.0)
	case KindAltitude, KindGAlt:
		return fmt.Sprintf("%.2f m", float64(v)/100.0)
	case KindVSpeed:
		return fmt.Sprintf("%.2f m/s", float64(v)/100.0)
	case KindRSSI:
		return fmt.Sprintf("%d%%", v)
	case KindDistance:
		return fmt.Sprintf("%d m", v)
	case KindGPS:
		deg, lon := DecodeGPS(v)
		if lon {
			return fmt.Sprintf("lon %.6f", deg)
		}
		return fmt.Sprintf("lat %.6f", deg)
	default:
		return fmt.Sprintf("%d", v)
	}
}

// FormatEvent formats an event into a single human-readable line
func FormatEvent(e Event) string {
	return fmt.Sprintf("%-12s raw=%-11d %s", FormatKind(e.Kind), e.Value, FormatValue(e))
}

// FormatFrame formats a frame header and raw bytes
func FormatFrame(f *Frame) string {
	trailer := "OK"
	if !TrailerValid(f) {
		trailer = "MISMATCH"
	}
	return fmt.Sprintf("sensor=0x%02X type=0x%02X id=0x%04X value=%d trailer=0x%02X (%s) [% X]",
		f.DeviceID(), f.FrameType(), f.DataTypeID(), f.Value(), f.Trailer(), trailer, f.raw[:])
}
