// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/libra/pkg/command"
	"github.com/Thermoquad/libra/pkg/controller"
	"github.com/Thermoquad/libra/pkg/publish"
	"github.com/Thermoquad/libra/pkg/server"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	maxConsoleEntries = 200
	maxHistory        = 50
	statePanelHeight  = 9
)

// Entry kinds
const (
	entryInfo = iota
	entryWarning
	entryError
	entryData
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// logEntry is one line of the console event log
type logEntry struct {
	timestamp time.Time
	message   string
	kind      int
}

// consoleModel is the Bubble Tea model for the console TUI
type consoleModel struct {
	connMgr  *consoleManager
	connInfo string

	report   *controller.Report
	lastData *publish.Record

	input   textinput.Model
	events  viewport.Model
	entries []logEntry

	history    []string
	historyPos int

	width          int
	height         int
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type serverMsg struct {
	msg server.Message
}

type sendResultMsg struct {
	raw string
	err error
}

type connectionLostMsg struct{}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialConsoleModel(connMgr *consoleManager, connInfo string) consoleModel {
	ti := textinput.New()
	ti.Placeholder = "lock off"
	ti.Prompt = "> "
	ti.CharLimit = command.MaxCommandLength
	ti.Width = 60
	ti.Focus()

	return consoleModel{
		connMgr:  connMgr,
		connInfo: connInfo,
		input:    ti,
		events:   viewport.New(76, 10),
		entries:  make([]logEntry, 0),
		width:    80,
		height:   24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m consoleModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case serverMsg:
		m.handleServerMessage(msg.msg)

	case sendResultMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("failed to send %q: %v", msg.raw, msg.err), entryError)
		}

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry("Connection lost - reconnecting...", entryError)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.addLogEntry("Reconnected", entryInfo)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m consoleModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "enter":
		raw := strings.TrimSpace(m.input.Value())
		if raw == "" {
			return m, nil
		}
		m.input.SetValue("")
		m.pushHistory(raw)
		if m.connectionLost {
			m.addLogEntry("Cannot send command: connection lost", entryError)
			return m, nil
		}
		return m, m.sendCmd(raw)

	case "up":
		if m.historyPos > 0 {
			m.historyPos--
			m.input.SetValue(m.history[m.historyPos])
			m.input.CursorEnd()
		}
		return m, nil

	case "down":
		if m.historyPos < len(m.history)-1 {
			m.historyPos++
			m.input.SetValue(m.history[m.historyPos])
			m.input.CursorEnd()
		} else {
			m.historyPos = len(m.history)
			m.input.SetValue("")
		}
		return m, nil

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.events, cmd = m.events.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m consoleModel) sendCmd(raw string) tea.Cmd {
	cm := m.connMgr
	return func() tea.Msg {
		return sendResultMsg{raw: raw, err: cm.send(raw)}
	}
}

func (m *consoleModel) pushHistory(raw string) {
	if n := len(m.history); n == 0 || m.history[n-1] != raw {
		m.history = append(m.history, raw)
		if len(m.history) > maxHistory {
			m.history = m.history[len(m.history)-maxHistory:]
		}
	}
	m.historyPos = len(m.history)
}

func (m consoleModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	s.WriteString(titleStyle.Render("LIBRA CONSOLE"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | Enter=send Up/Down=history PgUp/PgDn=scroll Esc=quit", connStatus)))
	s.WriteString("\n\n")

	s.WriteString(boxStyle.Width(m.width - 4).Render(m.renderState()))
	s.WriteString("\n")
	s.WriteString(boxStyle.Width(m.width - 4).Render(m.events.View()))
	s.WriteString("\n")
	s.WriteString(m.input.View())
	s.WriteString("\n")

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m consoleModel) renderState() string {
	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)
	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))
	lockStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)
	dimStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	r := m.report
	if r == nil {
		return dimStyle.Render("waiting for state report...")
	}

	var s strings.Builder
	field := func(label, value string) string {
		return fmt.Sprintf("%s %s  ", labelStyle.Render(label), valueStyle.Render(value))
	}

	s.WriteString(labelStyle.Render(fmt.Sprintf("%s (%s)", r.Device, r.Kind)))
	s.WriteString("  ")
	if r.Lock.Short != "" {
		s.WriteString(lockStyle.Render(r.Lock.Short))
		s.WriteString("  ")
	}
	s.WriteString(dimStyle.Render(r.Time.Format("2006-01-02 15:04:05")))
	s.WriteString("\n")

	period := "manual"
	if r.State.DataLoggingPeriod > 0 {
		period = fmt.Sprintf("%ds", r.State.DataLoggingPeriod)
	}
	s.WriteString(field("State log:", onOff(r.State.StateLogging)))
	s.WriteString(field("Data log:", r.Logging.Short))
	s.WriteString(field("Period:", period))
	s.WriteString(field("Rate:", r.CalcRate))
	s.WriteString(field("TZ:", fmt.Sprintf("%+d", r.State.Timezone)))
	s.WriteString(field("Read:", fmt.Sprintf("%ds", r.State.ReadPeriod)))
	s.WriteString("\n")

	for _, rd := range r.Readings {
		value := rd.Value
		if rd.Unit != "" {
			value += " " + rd.Unit
		}
		s.WriteString(field(rd.Name+":", value))
		s.WriteString(dimStyle.Render(fmt.Sprintf("(n=%d)", rd.Count)))
		s.WriteString("\n")
	}

	s.WriteString(field("Frames:", fmt.Sprintf("%d", r.Decoder.ValidFrames)))
	s.WriteString(field("Errors:", fmt.Sprintf("%d", r.Decoder.DecodeErrors)))
	s.WriteString(field("Frame rate:", fmt.Sprintf("%.1f/s", r.Decoder.FrameRate)))
	return s.String()
}

func (m consoleModel) renderEntries() string {
	timeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	infoStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	warningStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	dataStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	if len(m.entries) == 0 {
		return timeStyle.Render("  (no events yet)")
	}

	var s strings.Builder
	for _, entry := range m.entries {
		icon, style := "i", infoStyle
		switch entry.kind {
		case entryWarning:
			icon, style = "!", warningStyle
		case entryError:
			icon, style = "x", errorStyle
		case entryData:
			icon, style = "~", dataStyle
		}
		s.WriteString(fmt.Sprintf("%s %s %s\n",
			timeStyle.Render(entry.timestamp.Format("15:04:05.000")),
			style.Render(icon),
			entry.message))
	}
	return s.String()
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *consoleModel) handleServerMessage(msg server.Message) {
	switch msg.Type {
	case server.MessageReply:
		if msg.Reply == nil {
			return
		}
		m.addLogEntry(formatReply(*msg.Reply), replyKind(msg.Reply.Code))

	case server.MessageReport:
		m.report = msg.Report

	case server.MessageData:
		if msg.Record == nil {
			return
		}
		m.lastData = msg.Record
		m.addLogEntry(formatData(*msg.Record), entryData)

	case server.MessageError:
		m.addLogEntry(msg.Error, entryError)
	}
}

func (m *consoleModel) addLogEntry(message string, kind int) {
	m.entries = append(m.entries, logEntry{
		timestamp: time.Now(),
		message:   message,
		kind:      kind,
	})
	if len(m.entries) > maxConsoleEntries {
		m.entries = m.entries[len(m.entries)-maxConsoleEntries:]
	}
	m.events.SetContent(m.renderEntries())
	m.events.GotoBottom()
}

func (m *consoleModel) resize() {
	m.input.Width = m.width - 4
	m.events.Width = m.width - 8
	h := m.height - statePanelHeight - 8
	if h < 3 {
		h = 3
	}
	m.events.Height = h
	m.events.SetContent(m.renderEntries())
}

func replyKind(code command.ReturnCode) int {
	switch {
	case code.IsError():
		return entryError
	case code.IsWarning():
		return entryWarning
	default:
		return entryInfo
	}
}

// formatReply renders a command reply, e.g. "data-log on: success (0)"
func formatReply(r controller.Reply) string {
	var s strings.Builder
	for _, d := range r.Record.Data {
		s.WriteString(d.Key)
		if d.Value != "" {
			s.WriteString(" " + d.Value)
		}
		if d.Unit != "" {
			s.WriteString(" " + d.Unit)
		}
		s.WriteString(": ")
	}
	s.WriteString(fmt.Sprintf("%s (%d)", r.Outcome, int(r.Code)))
	if r.Message != "" {
		s.WriteString(" - " + r.Message)
	}
	return s.String()
}

// formatData renders a data record, e.g. "weight 12.50 g (n=3, sd=0.02)"
func formatData(rec publish.Record) string {
	parts := make([]string, 0, len(rec.Data))
	for _, d := range rec.Data {
		p := d.Key + " " + d.Value
		if d.Unit != "" {
			p += " " + d.Unit
		}
		if d.N > 0 {
			if d.SD != "" {
				p += fmt.Sprintf(" (n=%d, sd=%s)", d.N, d.SD)
			} else {
				p += fmt.Sprintf(" (n=%d)", d.N)
			}
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, ", ")
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
