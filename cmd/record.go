// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/Thermoquad/sportscope/pkg/sport"
	"github.com/Thermoquad/sportscope/pkg/store"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/golang/glog"
	"github.com/spf13/cobra"
)

var (
	recordDB            string
	recordFlushInterval time.Duration
	recordBatchSize     int
	summarySession      string
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record decoded telemetry into a SQLite database",
	Long: `Decode the telemetry stream and store every event in a SQLite database.

Each run creates a new session. Events are written in batches, flushed every
--flush interval or --batch events, whichever comes first.

Use 'record sessions' to list sessions and 'record summary' to print
per-kind statistics of a session.`,
	RunE: runRecord,
}

var recordSessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded sessions",
	RunE:  runRecordSessions,
}

var recordSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print per-kind statistics of a recorded session",
	Long: `Print count, mean, standard deviation, range and last value of every
telemetry kind recorded in a session. Values are raw 32-bit readings; the
last value is also shown in display units.

Defaults to the most recent session.`,
	RunE: runRecordSummary,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.AddCommand(recordSessionsCmd)
	recordCmd.AddCommand(recordSummaryCmd)

	recordCmd.PersistentFlags().StringVar(&recordDB, "db", "sportscope.db", "SQLite database path")
	recordCmd.Flags().DurationVar(&recordFlushInterval, "flush", time.Second, "Maximum time between database writes")
	recordCmd.Flags().IntVar(&recordBatchSize, "batch", 200, "Maximum events per database write")
	recordSummaryCmd.Flags().StringVar(&summarySession, "session", "", "Session id (default: most recent)")
}

// sessionRecorder buffers events and writes them to a store session in
// batches
type sessionRecorder struct {
	store     *store.Store
	sessionID string
	batchSize int
	interval  time.Duration

	pending   []sport.EventRecord
	lastFlush time.Time
	total     int
	dropped   int
	failing   bool
}

// maxPendingBatches bounds the events held for retry after failed writes
const maxPendingBatches = 8

func newSessionRecorder(s *store.Store, sessionID string, batchSize int, interval time.Duration) *sessionRecorder {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &sessionRecorder{
		store:     s,
		sessionID: sessionID,
		batchSize: batchSize,
		interval:  interval,
		lastFlush: timeNow(),
	}
}

// OnEvent implements sport.Sink
func (r *sessionRecorder) OnEvent(e sport.Event) {
	r.pending = append(r.pending, sport.NewEventRecord(e, timeNow()))
	switch {
	case r.failing:
		r.trimPending()
	case len(r.pending) >= r.batchSize:
		r.flushLogged()
	}
}

// tick flushes pending events once the flush interval has elapsed
func (r *sessionRecorder) tick() {
	if len(r.pending) > 0 && timeNow().Sub(r.lastFlush) >= r.interval {
		r.flushLogged()
	}
}

// flush writes pending events
func (r *sessionRecorder) flush() error {
	r.lastFlush = timeNow()
	if len(r.pending) == 0 {
		return nil
	}
	if err := r.store.InsertBatch(r.sessionID, r.pending); err != nil {
		return err
	}
	r.total += len(r.pending)
	r.pending = r.pending[:0]
	return nil
}

// flushLogged flushes pending events. After a failed write, size-triggered
// flushes pause until the next interval tick and the oldest events beyond
// maxPendingBatches batches are dropped.
func (r *sessionRecorder) flushLogged() {
	err := r.flush()
	if err == nil {
		if r.failing {
			glog.Infof("Database writes recovered")
		}
		r.failing = false
		return
	}

	if !r.failing {
		glog.Errorf("Failed to record %d events: %v", len(r.pending), err)
	}
	r.failing = true
	r.trimPending()
}

// trimPending drops the oldest pending events beyond the retry limit
func (r *sessionRecorder) trimPending() {
	limit := r.batchSize * maxPendingBatches
	if len(r.pending) <= limit {
		return
	}
	over := len(r.pending) - limit
	r.pending = append(r.pending[:0], r.pending[over:]...)
	if r.dropped == 0 {
		glog.Warningf("Dropping oldest events while database writes fail")
	}
	r.dropped += over
}

func runRecord(cmd *cobra.Command, args []string) error {
	db, err := store.Open(recordDB)
	if err != nil {
		return err
	}
	defer db.Close()

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	session, err := db.StartSession(connInfo)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sportscope - Recorder\n")
	fmt.Fprintf(out, "Connection: %s\n", connInfo)
	fmt.Fprintf(out, "Database: %s\n", recordDB)
	fmt.Fprintf(out, "Session: %s\n", session.ID)
	fmt.Fprintf(out, "Press Ctrl+C to stop\n\n")

	recorder := newSessionRecorder(db, session.ID, recordBatchSize, recordFlushInterval)
	processor := sport.NewProcessor(recorder)

	err = readLoop(cmd.Context(), conn, func(data []byte) {
		processor.Write(data)
		recorder.tick()
	})
	if flushErr := recorder.flush(); flushErr != nil && err == nil {
		err = flushErr
	}

	fmt.Fprintf(out, "Recorded %d events in session %s\n", recorder.total, session.ID)
	if recorder.dropped > 0 {
		fmt.Fprintf(out, "Dropped %d events after failed writes\n", recorder.dropped)
	}
	return err
}

func runRecordSessions(cmd *cobra.Command, args []string) error {
	db, err := store.Open(recordDB)
	if err != nil {
		return err
	}
	defer db.Close()

	sessions, err := db.Sessions()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintf(out, "No sessions in %s\n", recordDB)
		return nil
	}

	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{s.ID, s.StartedAt.Format("2006-01-02 15:04:05"), s.Source})
	}
	fmt.Fprintln(out, renderTable([]string{"Session", "Started", "Source"}, rows))
	return nil
}

func runRecordSummary(cmd *cobra.Command, args []string) error {
	db, err := store.Open(recordDB)
	if err != nil {
		return err
	}
	defer db.Close()

	sessionID := summarySession
	if sessionID == "" {
		sessions, err := db.Sessions()
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			return fmt.Errorf("no sessions in %s", recordDB)
		}
		sessionID = sessions[len(sessions)-1].ID
	}

	summaries, err := db.Summary(sessionID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session: %s\n", sessionID)
	printSummary(out, summaries)
	return nil
}

// printSummary renders per-kind statistics as a table
func printSummary(w io.Writer, summaries []store.KindSummary) {
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No events recorded")
		return
	}

	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			sport.FormatKind(s.Kind),
			fmt.Sprintf("%d", s.Count),
			fmt.Sprintf("%.2f", s.Mean),
			fmt.Sprintf("%.2f", s.StdDev),
			fmt.Sprintf("%.0f", s.Min),
			fmt.Sprintf("%.0f", s.Max),
			sport.FormatValue(sport.Event{Kind: s.Kind, Value: s.Last}),
		})
	}
	fmt.Fprintln(w, renderTable([]string{"Kind", "Count", "Mean", "StdDev", "Min", "Max", "Last"}, rows))
}

func renderTable(headers []string, rows [][]string) string {
	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)

	return t.Render()
}
