// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/sportscope/pkg/sport"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for anomalies, false for informational entries
}

// Latest reading of one telemetry kind
type kindReading struct {
	event     sport.Event
	timestamp time.Time
	count     uint64
}

// TUI model
type model struct {
	connInfo      string
	showAll       bool
	stats         *sport.Statistics
	eventLog      []eventLogEntry
	maxLogEntries int
	latest        map[sport.TelemetryKind]*kindReading
	readings      table.Model
	synchronized  bool
	closed        bool
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type frameMsg analyzeResult
type closedMsg struct{}

func newReadingsTable() table.Model {
	columns := []table.Column{
		{Title: "Kind", Width: 12},
		{Title: "Raw", Width: 12},
		{Title: "Value", Width: 26},
		{Title: "Count", Width: 8},
		{Title: "Age", Width: 8},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(len(sport.Kinds())+1),
		table.WithFocused(false),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color("12"))
	styles.Selected = lipgloss.NewStyle()
	t.SetStyles(styles)

	return t
}

func initialModel(connInfo string, showAll bool) model {
	return model{
		connInfo:      connInfo,
		showAll:       showAll,
		stats:         sport.NewStatistics(),
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		latest:        make(map[sport.TelemetryKind]*kindReading),
		readings:      newReadingsTable(),
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		m.refreshReadings()
		return m, tickCmd()

	case closedMsg:
		m.closed = true
		m.addLogEntry("Connection closed", false)

	case frameMsg:
		m.handleFrame(analyzeResult(msg))
	}

	return m, nil
}

func (m *model) handleFrame(r analyzeResult) {
	if !m.synchronized {
		m.synchronized = true
		m.addLogEntry("First frame assembled", false)
	}

	m.stats.Update(r.frame, r.outcome, r.event, r.validationErrors)

	switch r.outcome {
	case sport.OutcomeEvent:
		reading, ok := m.latest[r.event.Kind]
		if !ok {
			reading = &kindReading{}
			m.latest[r.event.Kind] = reading
		}
		reading.event = r.event
		reading.timestamp = r.timestamp
		reading.count++
		m.refreshReadings()

		if m.showAll && len(r.validationErrors) == 0 {
			m.addLogEntry(sport.FormatEvent(r.event), false)
		}
	case sport.OutcomeRejected:
		m.addLogEntry(fmt.Sprintf("Rejected frame from sensor 0x%02X type 0x%02X",
			r.frame.DeviceID(), r.frame.FrameType()), false)
	case sport.OutcomeUnknown:
		m.addLogEntry(fmt.Sprintf("Unknown data type id 0x%04X", r.frame.DataTypeID()), false)
	}

	for _, err := range r.validationErrors {
		m.addLogEntry(err.Message, true)
	}
}

// refreshReadings rebuilds the table rows in sensor table order
func (m *model) refreshReadings() {
	now := time.Now()
	rows := make([]table.Row, 0, len(m.latest))
	for _, kind := range sport.Kinds() {
		reading, ok := m.latest[kind]
		if !ok {
			continue
		}
		rows = append(rows, table.Row{
			sport.FormatKind(kind),
			fmt.Sprintf("%d", reading.event.Value),
			sport.FormatValue(reading.event),
			fmt.Sprintf("%d", reading.count),
			formatAge(now.Sub(reading.timestamp)),
		})
	}
	m.readings.SetRows(rows)
}

// formatAge renders how long ago a reading arrived
func formatAge(d time.Duration) string {
	switch {
	case d < time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	default:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("SPORTSCOPE - TELEMETRY ANALYSIS"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | Press 'q' to quit",
		m.connInfo, func() string {
			if m.showAll {
				return "All events"
			}
			return "Anomalies only"
		}())))
	s.WriteString("\n\n")

	switch {
	case m.closed:
		s.WriteString(errorStyle.Render("✗ Connection closed"))
	case !m.synchronized:
		s.WriteString(warningStyle.Render("⏳ Waiting for first frame..."))
	default:
		s.WriteString(statsValueStyle.Render("✓ Receiving"))
	}
	s.WriteString("\n\n")

	// Statistics
	var eventPercent, discardPercent float64
	discarded := m.stats.RejectedFrames + m.stats.UnknownIDs
	if m.stats.TotalFrames > 0 {
		eventPercent = float64(m.stats.Events) * 100.0 / float64(m.stats.TotalFrames)
		discardPercent = float64(discarded) * 100.0 / float64(m.stats.TotalFrames)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Frames:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		statsLabelStyle.Render("Events:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.Events, eventPercent)),
		statsLabelStyle.Render("Discarded:"), warningStyle.Render(fmt.Sprintf("%d (%.1f%%)", discarded, discardPercent)),
	))

	if discarded > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Other sensors:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.RejectedFrames)),
			statsLabelStyle.Render("Unknown IDs:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.UnknownIDs)),
		))
	}

	if m.stats.TrailerMismatch > 0 || m.stats.OutOfRange > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Trailer mismatch:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.TrailerMismatch)),
			statsLabelStyle.Render("Out of range:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.OutOfRange)),
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", m.stats.FrameRate)),
		statsLabelStyle.Render("Event Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f events/s", m.stats.EventRate)),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Latest reading per kind
	if len(m.latest) > 0 {
		s.WriteString(statsLabelStyle.Render("Latest Telemetry:"))
		s.WriteString("\n")
		s.WriteString(boxStyle.Render(m.readings.View()))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 15 - len(m.latest)
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
