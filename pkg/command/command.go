// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package command parses device commands of the form
//
//	<variable> [<value>] [<free-text notes>]
//
// and dispatches them through an ordered decision tree.
package command

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Thermoquad/libra/pkg/publish"
)

// Field bounds in bytes
const (
	MaxCommandLength  = 63
	MaxVariableLength = 24
	MaxValueLength    = 19
	MaxUnitsLength    = 19
	MaxNotesLength    = 63
)

// Command is one invocation, alive for a single dispatch
type Command struct {
	Raw      string
	Variable string
	Value    string
	Units    string
	Notes    string

	Type       string
	ReturnCode ReturnCode
	Message    string

	// Truncated is set when any field was cut to its bound
	Truncated bool

	buffer   string
	rawCut   bool
	valueCut bool
}

// New creates a command from raw text. Trailing line endings are dropped
// and the text is cut to MaxCommandLength.
func New(raw string) *Command {
	raw = strings.TrimRight(raw, "\r\n")
	c := &Command{
		Type:       publish.TypeUndefined,
		ReturnCode: CodeUndefined,
	}
	c.Raw = c.bound(raw, MaxCommandLength)
	c.rawCut = c.Truncated
	c.buffer = c.Raw
	return c
}

// bound cuts s to limit bytes on a rune boundary
func (c *Command) bound(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	c.Truncated = true
	s = s[:limit]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// next extracts the token up to the first space and consumes it together
// with that one space
func (c *Command) next(limit int) string {
	token := c.buffer
	if i := strings.IndexByte(c.buffer, ' '); i >= 0 {
		token = c.buffer[:i]
		c.buffer = c.buffer[i+1:]
	} else {
		c.buffer = ""
	}
	return c.bound(token, limit)
}

// AssignVariable extracts the next token as the variable
func (c *Command) AssignVariable() {
	c.Variable = c.next(MaxVariableLength)
}

// AssignValue extracts the next token as the value. A value longer than
// MaxValueLength, or one that ends where the raw text was cut, is marked
// truncated.
func (c *Command) AssignValue() {
	token, _, _ := strings.Cut(c.buffer, " ")
	c.valueCut = len(token) > MaxValueLength
	c.Value = c.next(MaxValueLength)
	if c.rawCut && c.buffer == "" {
		c.valueCut = true
	}
}

// ValueTruncated reports whether the value was cut to its bound. A cut
// value is not the value the sender asked for and must not be applied.
func (c *Command) ValueTruncated() bool {
	return c.valueCut
}

// AssignUnits extracts the next token as the units
func (c *Command) AssignUnits() {
	c.Units = c.next(MaxUnitsLength)
}

// AssignNotes takes the whole remainder as notes
func (c *Command) AssignNotes() {
	c.Notes = c.bound(c.buffer, MaxNotesLength)
	c.buffer = ""
}

// Remainder returns the text not yet extracted
func (c *Command) Remainder() string {
	return c.buffer
}

// ParseVariable reports whether the variable is one of names
func (c *Command) ParseVariable(names ...string) bool {
	for _, n := range names {
		if c.Variable == n {
			return true
		}
	}
	return false
}

// ParseValue reports whether the value is one of values
func (c *Command) ParseValue(values ...string) bool {
	for _, v := range values {
		if c.Value == v {
			return true
		}
	}
	return false
}

// Resolved reports whether an outcome was set
func (c *Command) Resolved() bool {
	return c.ReturnCode != CodeUndefined
}

// Success resolves the command. An unchanged state is a warning.
func (c *Command) Success(changed bool) {
	if changed {
		c.ReturnCode = CodeSuccess
		c.Type = publish.TypeStateChanged
		return
	}
	c.Warning(TextNoChange)
}

// Warning resolves the command as a non-fatal, unchanged outcome
func (c *Command) Warning(message string) {
	c.ReturnCode = CodeWarning
	c.Type = publish.TypeStateUnchanged
	c.Message = message
}

// Error resolves the command as failed. The whole command text is kept as
// notes.
func (c *Command) Error(code ReturnCode, text string) {
	c.ReturnCode = code
	c.Type = publish.TypeError
	c.Message = text
	c.Notes = c.Raw
	c.buffer = ""
}

// ErrorLocked rejects the command because the device is locked
func (c *Command) ErrorLocked() {
	c.Error(CodeLocked, TextLocked)
}

// ErrorInvalidValue rejects the value. An empty text uses TextInvalidValue.
func (c *Command) ErrorInvalidValue(text string) {
	if text == "" {
		text = TextInvalidValue
	}
	c.Error(CodeInvalidValue, text)
}

// Finalize turns an unresolved command into an unknown command error and
// captures any remaining text as notes
func (c *Command) Finalize() {
	if !c.Resolved() {
		c.Error(CodeUnknown, TextUnknown)
		return
	}
	if c.buffer != "" {
		c.AssignNotes()
	}
}

// Record assembles the log record of a finalized command
func (c *Command) Record(device string, ts time.Time) publish.Record {
	rec := publish.Record{
		Device:  device,
		Type:    c.Type,
		Message: c.Message,
		Notes:   c.Notes,
		Time:    ts,
	}
	if c.Variable != "" {
		rec.Data = []publish.Datum{{Key: c.Variable, Value: c.Value, Unit: c.Units}}
	}
	return rec
}
