// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/sportscope/pkg/sport"
	"github.com/spf13/cobra"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a telemetry event",
	Long: `Wait for a decoded telemetry event on the connection until timeout.

This command connects to the configured source and waits for the first
frame from the flight controller sensor that carries a known data type id.
Frames from other sensors and unknown data types are skipped.

Exit codes:
  0 - Event received before timeout
  1 - Timeout reached without receiving an event
  2 - Connection error

Useful for checking receiver wiring and baud rate.`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for an event")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Sportscope - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for telemetry event...\n\n")

	result, err := waitForEvent(cmd.Context(), conn, time.Duration(packetTestTimeout)*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAILED: %v\n", err)
		os.Exit(1)
	}

	if result.discarded > 0 {
		fmt.Printf("(skipped %d frames before the first event)\n", result.discarded)
	}
	fmt.Printf("SUCCESS: Received telemetry event\n")
	fmt.Printf("  Event: %s\n", sport.FormatEvent(result.event))
	fmt.Printf("  Frame: %s\n", sport.FormatFrame(result.frame))
	os.Exit(0)

	return nil
}

// firstEvent is the outcome of waitForEvent
type firstEvent struct {
	frame     *sport.Frame
	event     sport.Event
	discarded int
}

// waitForEvent reads from conn until the first event is dispatched, the
// connection closes or timeout elapses
func waitForEvent(ctx context.Context, conn Connection, timeout time.Duration) (firstEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var result firstEvent
	found := false
	decoder := newStreamDecoder()

	readLoop(ctx, conn, func(data []byte) {
		if found {
			return
		}
		decoder.decode(data, func(r frameResult) {
			if found {
				return
			}
			if r.outcome != sport.OutcomeEvent {
				result.discarded++
				return
			}
			result.frame = r.frame
			result.event = r.event
			found = true
			cancel()
		})
	})

	if !found {
		if ctx.Err() != nil {
			return result, fmt.Errorf("no telemetry event received within %s", timeout)
		}
		return result, fmt.Errorf("connection closed after %d bytes without a telemetry event", decoder.bytesRead)
	}
	return result, nil
}
