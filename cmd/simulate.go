// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/Thermoquad/sportscope/pkg/sport"
	"github.com/golang/glog"
	"github.com/spf13/cobra"
)

var (
	simulateOut   string
	simulateRate  int
	simulateCount int
	simulateNoise float64
	simulateSeed  int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Generate a synthetic S.Port telemetry stream",
	Long: `Write a synthetic flight as a raw S.Port byte stream.

Every known telemetry kind is cycled through with slowly varying values
(battery drain, climbing and turning, GPS position). Frames carry the
standard S.Port checksum as trailer.

Output goes to --out if given, otherwise to the configured --port, --url or
--tcp connection, otherwise to stdout. Use --rate 0 to write as fast as
possible.

With --noise, the given fraction of frames comes from another sensor or
carries an unknown data type id, which the decoder discards.

Examples:
  sportscope simulate --count 1000 --out flight.bin
  sportscope simulate --count 500 --rate 0 | sportscope raw_log --file /dev/stdin
  sportscope simulate --port /dev/ttyUSB1 --rate 50`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVarP(&simulateOut, "out", "o", "", "Write the stream to this file")
	simulateCmd.Flags().IntVar(&simulateRate, "rate", 50, "Frames per second (0 for unthrottled)")
	simulateCmd.Flags().IntVarP(&simulateCount, "count", "n", 0, "Number of frames to write (0 for unlimited)")
	simulateCmd.Flags().Float64Var(&simulateNoise, "noise", 0, "Fraction of frames that the decoder should discard (0-1)")
	simulateCmd.Flags().Int64Var(&simulateSeed, "seed", 1, "Random seed")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if simulateNoise < 0 || simulateNoise > 1 {
		return fmt.Errorf("--noise must be between 0 and 1, got %g", simulateNoise)
	}

	var w io.Writer
	switch {
	case simulateOut != "":
		f, err := os.Create(simulateOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", simulateOut, err)
		}
		defer f.Close()
		w = f
	case portName != "" || wsURL != "" || tcpAddr != "":
		conn, connInfo, err := OpenConnection()
		if err != nil {
			return err
		}
		defer conn.Close()
		fmt.Fprintf(os.Stderr, "Simulating to %s\n", connInfo)
		w = conn
	default:
		w = cmd.OutOrStdout()
	}

	sim := newFlightSimulator(simulateSeed, simulateNoise)

	var ticker *time.Ticker
	if simulateRate > 0 {
		ticker = time.NewTicker(time.Second / time.Duration(simulateRate))
		defer ticker.Stop()
	}

	ctx := cmd.Context()
	for i := 0; simulateCount == 0 || i < simulateCount; i++ {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		frame := sim.nextFrame()
		if _, err := w.Write(sport.EncodeFrame(frame)); err != nil {
			return fmt.Errorf("write failed: %w", err)
		}
		glog.V(2).Infof("simulated %s", sport.FormatFrame(frame))
	}

	return nil
}

// flightSimulator produces a deterministic synthetic flight, one frame at a
// time, cycling through every known telemetry kind
type flightSimulator struct {
	rng   *rand.Rand
	noise float64
	kinds []sport.TelemetryKind
	next  int
	tick  int
	lon   bool
}

func newFlightSimulator(seed int64, noise float64) *flightSimulator {
	return &flightSimulator{
		rng:   rand.New(rand.NewSource(seed)),
		noise: noise,
		kinds: sport.Kinds(),
	}
}

// nextFrame returns the next frame of the stream
func (s *flightSimulator) nextFrame() *sport.Frame {
	if s.noise > 0 && s.rng.Float64() < s.noise {
		return s.noiseFrame()
	}

	e := s.nextEvent()
	id, _ := sport.DataTypeID(e.Kind)
	return sport.NewDataFrame(id, e.Value)
}

// noiseFrame returns a frame the dispatcher discards
func (s *flightSimulator) noiseFrame() *sport.Frame {
	value := int32(s.rng.Uint32())
	if s.rng.Intn(2) == 0 {
		// another sensor on the same bus
		return sport.NewFrame(0x98, sport.FrameTypeData, sport.DataTypeVFAS, value)
	}
	// a data type id outside the sensor table
	return sport.NewDataFrame(0x5000+uint16(s.rng.Intn(0x100)), value)
}

// nextEvent returns the next synthetic reading
func (s *flightSimulator) nextEvent() sport.Event {
	kind := s.kinds[s.next]
	s.next++
	if s.next == len(s.kinds) {
		s.next = 0
		s.tick++
	}

	t := float64(s.tick)
	jitter := func(n int) int32 { return int32(s.rng.Intn(2*n+1) - n) }

	var value int32
	switch kind {
	case sport.KindFuel:
		value = int32(math.Max(0, 100-t/20))
	case sport.KindGPS:
		s.lon = !s.lon
		if s.lon {
			value = sport.EncodeGPS(8.5456+t*1e-5, true)
		} else {
			value = sport.EncodeGPS(47.3977+t*1e-5, false)
		}
	case sport.KindVBAT:
		value = int32(math.Max(1320, 1680-t/2)) + jitter(2)
	case sport.KindCellVoltage:
		value = int32(math.Max(330, 420-t/8)) + jitter(1)
	case sport.KindCurrent:
		value = int32(120+30*math.Sin(t/15)) + jitter(3)
	case sport.KindHeading:
		value = int32(math.Mod(t*250, 36000))
	case sport.KindRSSI:
		value = 90 + jitter(5)
		if value > 100 {
			value = 100
		}
	case sport.KindFlyMode:
		value = 10002
	case sport.KindGPSState:
		value = 1012
	case sport.KindVSpeed:
		value = int32(50 * math.Cos(t/20))
	case sport.KindAltitude:
		value = int32(1000 + 1000*math.Sin(t/20))
	case sport.KindGSpeed:
		value = int32(1200 + 200*math.Sin(t/10))
	case sport.KindDistance:
		value = int32(t / 2)
	case sport.KindRoll:
		value = int32(300*math.Sin(t/7)) + jitter(5)
	case sport.KindPitch:
		value = int32(150*math.Cos(t/9)) + jitter(5)
	case sport.KindGAlt:
		value = int32(41000 + 1000*math.Sin(t/20))
	}

	return sport.Event{Kind: kind, Value: value}
}
