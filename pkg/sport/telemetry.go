// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sport

// TelemetryKind identifies the physical quantity carried by an event
type TelemetryKind int

// Telemetry kinds
const (
	KindFuel TelemetryKind = iota
	KindGPS
	KindVBAT
	KindCellVoltage
	KindCurrent
	KindHeading
	KindRSSI
	KindFlyMode
	KindGPSState
	KindVSpeed
	KindAltitude
	KindGSpeed
	KindDistance
	KindRoll
	KindPitch
	KindGAlt
)

// Event is a decoded telemetry reading. Value is the raw 32-bit field of
// the frame; scaling into physical units is left to the consumer.
type Event struct {
	Kind  TelemetryKind
	Value int32
}

// Sink receives events from a Processor
type Sink interface {
	OnEvent(Event)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(Event)

// OnEvent calls f(e)
func (f SinkFunc) OnEvent(e Event) {
	f(e)
}

// sensorTable maps data type ids to telemetry kinds. Read-only.
var sensorTable = map[uint16]TelemetryKind{
	DataTypeFuel:     KindFuel,
	DataTypeGPS:      KindGPS,
	DataTypeVFAS:     KindVBAT,
	DataTypeCells:    KindCellVoltage,
	DataTypeCurrent:  KindCurrent,
	DataTypeHeading:  KindHeading,
	DataTypeRSSI:     KindRSSI,
	DataTypeFlyMode:  KindFlyMode,
	DataTypeGPSState: KindGPSState,
	DataTypeVSpeed:   KindVSpeed,
	DataTypeAltitude: KindAltitude,
	DataTypeGPSAlt:   KindGAlt,
	DataTypeGPSSpeed: KindGSpeed,
	DataTypeDistance: KindDistance,
	DataTypePitch:    KindPitch,
	DataTypeRoll:     KindRoll,
}

// LookupKind returns the telemetry kind for a data type id.
// ok is false for ids the dispatcher does not handle.
func LookupKind(dataTypeID uint16) (kind TelemetryKind, ok bool) {
	kind, ok = sensorTable[dataTypeID]
	return kind, ok
}

// DataTypeID returns the wire data type id for a kind
func DataTypeID(kind TelemetryKind) (uint16, bool) {
	for id, k := range sensorTable {
		if k == kind {
			return id, true
		}
	}
	return 0, false
}

// Kinds returns all telemetry kinds in declaration order
func Kinds() []TelemetryKind {
	kinds := make([]TelemetryKind, 0, int(KindGAlt)+1)
	for k := KindFuel; k <= KindGAlt; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// String returns the kind name
func (k TelemetryKind) String() string {
	return FormatKind(k)
}
