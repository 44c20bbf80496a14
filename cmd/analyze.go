// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/Thermoquad/sportscope/pkg/sport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang/glog"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Track telemetry statistics and suspicious frames",
	Long: `Decode the telemetry stream and report statistics and anomalies.

For every assembled frame this command records whether it produced an event,
was discarded because it came from another sensor, or carried an unknown data
type id. It also flags, without dropping anything:
  - Frames whose trailer does not match the S.Port checksum
  - Implausible values (RSSI outside 0-100, negative voltages)

By default only anomalies and discarded frames are logged. Use --show-all to
log every event too.

The TUI shows the latest value of each telemetry kind. Text mode prints
periodic statistics summaries at a configurable interval.`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all events (not just anomalies)")
	analyzeCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	analyzeCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

// analyzeResult is a dispatched frame together with its anomalies
type analyzeResult struct {
	frameResult
	validationErrors []sport.ValidationError
}

// analyzeFrame runs the informational validators over a dispatched frame
func analyzeFrame(r frameResult) analyzeResult {
	validationErrors := sport.ValidateFrame(r.frame)
	if r.outcome == sport.OutcomeEvent {
		validationErrors = append(validationErrors, sport.ValidateEvent(r.event)...)
	}
	return analyzeResult{frameResult: r, validationErrors: validationErrors}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if statsInterval <= 0 {
		return fmt.Errorf("--stats-interval must be positive, got %d", statsInterval)
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	if useTUI {
		return runTUIMode(cmd, conn, connInfo)
	}
	return runTextMode(cmd, conn, connInfo)
}

// runTUIMode runs the analyzer dashboard
func runTUIMode(cmd *cobra.Command, conn Connection, connInfo string) error {
	m := initialModel(connInfo, showAll)
	p := tea.NewProgram(m, tea.WithContext(cmd.Context()))

	go func() {
		decoder := newStreamDecoder()
		err := readLoop(cmd.Context(), conn, func(data []byte) {
			decoder.decode(data, func(r frameResult) {
				p.Send(frameMsg(analyzeFrame(r)))
			})
		})
		if err != nil {
			glog.Errorf("Reader stopped: %v", err)
		}
		p.Send(closedMsg{})
	}()

	if _, err := p.Run(); err != nil && cmd.Context().Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

// runTextMode prints anomalies as they occur and periodic statistics
func runTextMode(cmd *cobra.Command, conn Connection, connInfo string) error {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Sportscope - Telemetry Analysis\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Fprintf(out, "Mode: All events\n")
	} else {
		fmt.Fprintf(out, "Mode: Anomalies only\n")
	}
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	stats := sport.NewStatistics()
	results := make(chan analyzeResult, 64)

	go func() {
		defer close(results)
		decoder := newStreamDecoder()
		err := readLoop(cmd.Context(), conn, func(data []byte) {
			decoder.decode(data, func(r frameResult) {
				results <- analyzeFrame(r)
			})
		})
		if err != nil {
			glog.Errorf("Reader stopped: %v", err)
		}
	}()

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case r, ok := <-results:
			if !ok {
				fmt.Fprintln(out)
				fmt.Fprint(out, stats.String())
				return nil
			}
			stats.Update(r.frame, r.outcome, r.event, r.validationErrors)
			printAnalyzeResult(out, r, showAll)

		case <-statsTicker.C:
			fmt.Fprintln(out)
			fmt.Fprint(out, stats.String())
			fmt.Fprintln(out)
		}
	}
}

// printAnalyzeResult prints discarded frames, anomalies and, if all is set,
// every event
func printAnalyzeResult(w io.Writer, r analyzeResult, all bool) {
	timestamp := r.timestamp.Format("15:04:05.000")

	switch r.outcome {
	case sport.OutcomeRejected:
		fmt.Fprintf(w, "[%s] \033[1;33mREJECTED:\033[0m %s\n", timestamp, sport.FormatFrame(r.frame))
	case sport.OutcomeUnknown:
		fmt.Fprintf(w, "[%s] \033[1;33mUNKNOWN ID:\033[0m %s\n", timestamp, sport.FormatFrame(r.frame))
	case sport.OutcomeEvent:
		if len(r.validationErrors) == 0 && all {
			fmt.Fprintf(w, "[%s] %s\n", timestamp, sport.FormatEvent(r.event))
		}
	}

	if len(r.validationErrors) == 0 {
		return
	}

	if r.outcome == sport.OutcomeEvent {
		fmt.Fprintf(w, "[%s] \033[1;31mANOMALY:\033[0m %s\n", timestamp, sport.FormatEvent(r.event))
	}
	for i, err := range r.validationErrors {
		fmt.Fprintf(w, "  Issue %d: %s\n", i+1, err.Message)
	}
	fmt.Fprintf(w, "  Frame: % X\n\n", r.frame.Bytes())
}
