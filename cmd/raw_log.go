// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/sportscope/pkg/sport"
	"github.com/spf13/cobra"
)

var rawLogFrames bool

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display decoded telemetry in human-readable format",
	Long: `Continuously decode and display S.Port telemetry events as they arrive.

Each event is printed with a timestamp, the telemetry kind, the raw 32-bit
value and a display hint in common flight controller units. Use --frames to
also print every assembled frame, including frames the decoder discards.

Supports serial, WebSocket, TCP and file replay.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogFrames, "frames", false, "Print every assembled frame")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sportscope - Raw Telemetry Log\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	decoder := newStreamDecoder()
	return readLoop(cmd.Context(), conn, func(data []byte) {
		decoder.decode(data, func(r frameResult) {
			timestamp := r.timestamp.Format("15:04:05.000")
			if rawLogFrames {
				fmt.Fprintf(out, "[%s] FRAME %s %s\n", timestamp, sport.FormatFrame(r.frame), r.outcome)
			}
			if r.outcome == sport.OutcomeEvent {
				fmt.Fprintf(out, "[%s] %s\n", timestamp, sport.FormatEvent(r.event))
			}
		})
	})
}
