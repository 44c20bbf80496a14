// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/Thermoquad/sportscope/pkg/sport"
	"github.com/spf13/cobra"
)

var (
	linkTestDuration int
	linkTestMaxGap   time.Duration
)

var linkTestCmd = &cobra.Command{
	Use:   "link_test",
	Short: "Test telemetry link stability",
	Long: `Listen on the connection for a fixed duration and report link quality.

This command counts received bytes and assembled frames and tracks the
longest silence between reads. Useful for debugging flaky receivers, loose
wiring or bridges that drop the connection.

Exit codes:
  0 - Link stable for the whole duration
  1 - Connection lost or a silence exceeded --max-gap
  2 - Connection error`,
	RunE: runLinkTest,
}

func init() {
	rootCmd.AddCommand(linkTestCmd)
	linkTestCmd.Flags().IntVar(&linkTestDuration, "duration", 30, "Test duration in seconds")
	linkTestCmd.Flags().DurationVar(&linkTestMaxGap, "max-gap", 2*time.Second, "Longest acceptable silence between reads")
}

// linkStats accumulates link quality measurements
type linkStats struct {
	mu       sync.Mutex
	start    time.Time
	lastRead time.Time
	bytes    int
	chunks   int
	frames   int
	events   int
	longest  time.Duration
	closed   bool
}

func newLinkStats(now time.Time) *linkStats {
	return &linkStats{start: now, lastRead: now}
}

// observe records a chunk of n bytes completing the given frame counts
func (l *linkStats) observe(now time.Time, n, frames, events int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if gap := now.Sub(l.lastRead); gap > l.longest {
		l.longest = gap
	}
	l.lastRead = now
	l.bytes += n
	l.chunks++
	l.frames += frames
	l.events += events
}

// finish accounts for the silence since the last read
func (l *linkStats) finish(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if gap := now.Sub(l.lastRead); gap > l.longest {
		l.longest = gap
	}
}

// progress returns the byte and frame counts so far
func (l *linkStats) progress() (bytes, frames int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bytes, l.frames
}

// passed reports whether the link met the stability criteria
func (l *linkStats) passed(maxGap time.Duration) bool {
	return !l.closed && l.longest <= maxGap
}

func (l *linkStats) print(w io.Writer, now time.Time, maxGap time.Duration) {
	elapsed := now.Sub(l.start)

	fmt.Fprintf(w, "\n--- Test Results ---\n")
	fmt.Fprintf(w, "Duration: %s\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Bytes received: %d", l.bytes)
	if elapsed > 0 {
		fmt.Fprintf(w, " (%.0f bytes/s)", float64(l.bytes)/elapsed.Seconds())
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Reads: %d\n", l.chunks)
	fmt.Fprintf(w, "Frames assembled: %d\n", l.frames)
	fmt.Fprintf(w, "Telemetry events: %d\n", l.events)
	fmt.Fprintf(w, "Longest silence: %s (max %s)\n", l.longest.Round(time.Millisecond), maxGap)

	switch {
	case l.closed:
		fmt.Fprintf(w, "Result: FAILED (connection lost)\n")
	case l.longest > maxGap:
		fmt.Fprintf(w, "Result: FAILED (link stalled)\n")
	default:
		fmt.Fprintf(w, "Result: PASSED (link stable)\n")
	}
}

func runLinkTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sportscope - Link Stability Test\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Duration: %d seconds\n\n", linkTestDuration)
	fmt.Fprintf(out, "Listening for data...\n\n")

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(linkTestDuration)*time.Second)
	defer cancel()

	stats := newLinkStats(timeNow())
	decoder := newStreamDecoder()

	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()
	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-heartbeat.C:
				bytes, frames := stats.progress()
				remaining := time.Duration(linkTestDuration)*time.Second - now.Sub(stats.start)
				fmt.Fprintf(out, "[%s] %d bytes, %d frames (%.0fs remaining)\n",
					now.Format("15:04:05.000"), bytes, frames, remaining.Seconds())
			}
		}
	}()

	err = readLoop(ctx, conn, func(data []byte) {
		frames, events := 0, 0
		decoder.decode(data, func(r frameResult) {
			frames++
			if r.outcome == sport.OutcomeEvent {
				events++
			}
		})
		stats.observe(timeNow(), len(data), frames, events)
	})
	cancel()
	<-heartbeatDone
	if err != nil {
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
	}

	// readLoop only returns before the deadline when the source went away
	stats.closed = cmd.Context().Err() == nil && time.Since(stats.start) < time.Duration(linkTestDuration)*time.Second
	stats.finish(timeNow())
	stats.print(out, timeNow(), linkTestMaxGap)

	if !stats.passed(linkTestMaxGap) {
		os.Exit(1)
	}
	return nil
}
