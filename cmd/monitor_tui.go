// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/libra/pkg/aggregate"
	"github.com/Thermoquad/libra/pkg/scale"
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings
}

// TUI model
type monitorModel struct {
	mon           *frameMonitor
	connInfo      string
	statsInterval int
	showAll       bool
	errorLog      []errorLogEntry
	maxLogEntries int
	lastFrame     *scale.Frame
	lastSnapshot  []aggregate.ChannelSnapshot
	linkClosed    bool
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type snapshotMsg time.Time
type chunkMsg []byte
type linkClosedMsg struct{}

func initialMonitorModel(mon *frameMonitor, connInfo string, statsInterval int, showAll bool) monitorModel {
	return monitorModel{
		mon:           mon,
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.snapshotCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m monitorModel) snapshotCmd() tea.Cmd {
	return tea.Tick(time.Duration(m.statsInterval)*time.Second, func(t time.Time) tea.Msg {
		return snapshotMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
		m.mon.stats.CalculateRates()
		return m, tickCmd()

	case snapshotMsg:
		if snaps := m.mon.snapshot(); len(snaps) > 0 {
			m.lastSnapshot = snaps
		}
		return m, m.snapshotCmd()

	case chunkMsg:
		for _, ev := range m.mon.feed(msg) {
			m.handleEvent(ev)
		}

	case linkClosedMsg:
		m.linkClosed = true
		m.addLogEntry("Connection closed", true)
	}

	return m, nil
}

func (m *monitorModel) handleEvent(ev monitorEvent) {
	if ev.sync {
		if ev.skipped > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d invalid bytes", ev.skipped), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}
	}
	if ev.frame != nil {
		m.lastFrame = ev.frame
	}

	switch {
	case ev.err != nil:
		m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", ev.err), true)
	case ev.frame != nil && !ev.frame.Stable():
		m.addLogEntry(fmt.Sprintf("UNSTABLE: %s %s", ev.frame.Text(), ev.frame.Unit()), false)
	case ev.frame != nil && m.showAll:
		m.addLogEntry(fmt.Sprintf("%s %s (valid)", ev.frame.Text(), ev.frame.Unit()), false)
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

func (m monitorModel) View() string {
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
	s.WriteString(titleStyle.Render("LIBRA - FRAME MONITOR"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All frames"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | Press 'q' to quit", m.connInfo, mode)))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case m.linkClosed:
		s.WriteString(errorStyle.Render("Connection closed"))
	case !m.mon.synchronized:
		s.WriteString(warningStyle.Render("Waiting for synchronization..."))
	default:
		s.WriteString(statsValueStyle.Render("Synchronized"))
		if m.mon.skipped > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d invalid bytes)", m.mon.skipped)))
		}
	}
	s.WriteString("\n\n")

	// Statistics
	stats := m.mon.stats
	var validPercent, errorPercent float64
	if stats.TotalFrames > 0 {
		validPercent = float64(stats.ValidFrames) * 100.0 / float64(stats.TotalFrames)
		errorPercent = float64(stats.DecodeErrors) * 100.0 / float64(stats.TotalFrames)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", stats.ValidFrames, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", stats.DecodeErrors, errorPercent)),
	))

	if stats.DecodeErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Unexpected Bytes:"), errorStyle.Render(fmt.Sprintf("%d", stats.UnexpectedBytes)),
			statsLabelStyle.Render("Invalid Values:"), errorStyle.Render(fmt.Sprintf("%d", stats.InvalidValues)),
		))
	}

	if stats.UnstableFrames > 0 || stats.UnitChanges > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("Unstable:"), warningStyle.Render(fmt.Sprintf("%d", stats.UnstableFrames)),
			statsLabelStyle.Render("Unit Changes:"), warningStyle.Render(fmt.Sprintf("%d", stats.UnitChanges)),
		))
	}

	errorRate := statsValueStyle.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate))
	if stats.ErrorRate > 0 {
		errorRate = errorStyle.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate))
	}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", stats.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), errorRate,
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Readings (only shown once a frame arrived)
	if m.lastFrame != nil {
		s.WriteString(statsLabelStyle.Render("Readings:"))
		s.WriteString("\n")

		readings := strings.Builder{}
		readings.WriteString(fmt.Sprintf("%s %s %s\n",
			statsLabelStyle.Render("Last:"),
			statsValueStyle.Render(fmt.Sprintf("%s %s", m.lastFrame.Text(), m.lastFrame.Unit())),
			headerStyle.Render(m.lastFrame.Timestamp().Format("15:04:05.000")),
		))
		for _, snap := range m.lastSnapshot {
			readings.WriteString(fmt.Sprintf("%s %s\n",
				statsLabelStyle.Render(snap.Name+":"),
				statsValueStyle.Render(formatSnapshot(snap)),
			))
		}
		s.WriteString(boxStyle.Render(strings.TrimSuffix(readings.String(), "\n")))
		s.WriteString("\n\n")
	}

	// Error log
	s.WriteString(statsLabelStyle.Render(fmt.Sprintf("Event Log (last %d):", m.maxLogEntries)))
	s.WriteString("\n")

	availableLines := m.height - 16
	if m.lastFrame != nil {
		availableLines -= 4 + len(m.lastSnapshot)
	}
	if availableLines < 5 {
		availableLines = 5
	}

	startIdx := 0
	if len(m.errorLog) > availableLines {
		startIdx = len(m.errorLog) - availableLines
	}

	if len(m.errorLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
		s.WriteString("\n")
	}
	for _, entry := range m.errorLog[startIdx:] {
		timestamp := entry.timestamp.Format("15:04:05.000")
		if entry.isError {
			s.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), errorStyle.Render(entry.message)))
		} else {
			s.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), warningStyle.Render(entry.message)))
		}
	}

	return s.String()
}
