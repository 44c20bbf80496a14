// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sport

// Outcome describes what the dispatcher did with a frame
type Outcome int

// Dispatch outcomes
const (
	OutcomeEvent    Outcome = iota // frame produced an event
	OutcomeRejected                // wrong sensor id or frame type
	OutcomeUnknown                 // data type id not in the sensor table
)

// String returns the outcome name
func (o Outcome) String() string {
	switch o {
	case OutcomeEvent:
		return "EVENT"
	case OutcomeRejected:
		return "REJECTED"
	case OutcomeUnknown:
		return "UNKNOWN"
	default:
		return "INVALID"
	}
}

// Dispatch interprets a completed frame. Only flight controller data
// frames whose data type id is in the sensor table produce an event; the
// value is passed through unchanged and the trailer is not examined.
func Dispatch(f *Frame) (Event, Outcome) {
	if !f.IsTelemetry() {
		return Event{}, OutcomeRejected
	}
	kind, ok := LookupKind(f.DataTypeID())
	if !ok {
		return Event{}, OutcomeUnknown
	}
	return Event{Kind: kind, Value: f.Value()}, OutcomeEvent
}

// Processor feeds bytes through a Decoder and delivers events to a Sink
// synchronously, on the calling goroutine. It is not safe for concurrent
// use.
type Processor struct {
	decoder *Decoder
	sink    Sink
}

// NewProcessor creates a processor delivering events to sink
func NewProcessor(sink Sink) *Processor {
	return &Processor{
		decoder: NewDecoder(),
		sink:    sink,
	}
}

// Process consumes one byte from the stream
func (p *Processor) Process(b byte) {
	frame := p.decoder.DecodeByte(b)
	if frame == nil {
		return
	}
	if event, outcome := Dispatch(frame); outcome == OutcomeEvent && p.sink != nil {
		p.sink.OnEvent(event)
	}
}

// Write implements io.Writer. All bytes are consumed; it never fails.
func (p *Processor) Write(data []byte) (int, error) {
	for _, b := range data {
		p.Process(b)
	}
	return len(data), nil
}

// State returns the underlying decoder state
func (p *Processor) State() State {
	return p.decoder.State()
}
