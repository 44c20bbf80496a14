// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/Thermoquad/sportscope/pkg/sport"
	"github.com/golang/glog"
)

var timeNow = time.Now

// frameResult is a dispatched frame as seen by the commands
type frameResult struct {
	frame     *sport.Frame
	outcome   sport.Outcome
	event     sport.Event
	timestamp time.Time
}

// streamDecoder feeds raw chunks through the frame decoder and dispatcher
// and reports every completed frame, including discarded ones
type streamDecoder struct {
	decoder   *sport.Decoder
	bytesRead uint64
}

func newStreamDecoder() *streamDecoder {
	return &streamDecoder{decoder: sport.NewDecoder()}
}

// decode processes a chunk and calls fn for each completed frame
func (s *streamDecoder) decode(data []byte, fn func(frameResult)) {
	s.bytesRead += uint64(len(data))
	if glog.V(2) {
		glog.Infof("read %d bytes: % X", len(data), data)
	}

	for _, b := range data {
		frame := s.decoder.DecodeByte(b)
		if frame == nil {
			continue
		}

		event, outcome := sport.Dispatch(frame)
		switch outcome {
		case sport.OutcomeRejected:
			glog.V(1).Infof("Discarded frame from sensor 0x%02X type 0x%02X", frame.DeviceID(), frame.FrameType())
		case sport.OutcomeUnknown:
			glog.V(1).Infof("Unknown packet %s", sport.FormatFrame(frame))
		}

		fn(frameResult{
			frame:     frame,
			outcome:   outcome,
			event:     event,
			timestamp: timeNow(),
		})
	}
}

// readLoop reads from conn until the connection closes or ctx is done,
// handing each chunk to handle. Transient read errors are logged and
// retried. Cancelling ctx closes conn to unblock the pending read.
func readLoop(ctx context.Context, conn Connection, handle func([]byte)) error {
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	buf := make([]byte, 128)
	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := conn.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			handle(data)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, ErrConnectionClosed) {
				glog.Infof("Connection closed")
				return nil
			}
			glog.Errorf("Read error: %v", err)
			time.Sleep(100 * time.Millisecond)
		}
	}
}
