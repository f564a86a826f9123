// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package publish delivers structured device log records to event sinks.
package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxRecordSize is the largest encoded record accepted by event sinks
const MaxRecordSize = 255

// Record types
const (
	TypeUndefined      = "undefined"
	TypeError          = "error"
	TypeStateChanged   = "state changed"
	TypeStateUnchanged = "state unchanged"
	TypeState          = "state"
	TypeData           = "data"
)

// ErrRecordTooLarge is returned when a record exceeds MaxRecordSize even
// after its free text is dropped
var ErrRecordTooLarge = errors.New("record too large")

// Datum is one value carried by a record
type Datum struct {
	Key   string `json:"k"`
	Value string `json:"v"`
	Unit  string `json:"u,omitempty"`
	N     int    `json:"n,omitempty"`
	SD    string `json:"sd,omitempty"`
}

// Record is a structured log entry: device identity, outcome type, values,
// a message and free-text notes
type Record struct {
	Device  string    `json:"id"`
	Type    string    `json:"type"`
	Data    []Datum   `json:"data,omitempty"`
	Message string    `json:"msg,omitempty"`
	Notes   string    `json:"notes,omitempty"`
	Time    time.Time `json:"-"`
}

// Encode marshals the record as JSON within limit bytes. Notes are shortened
// first, then the message. Values are never cut.
func (r Record) Encode(limit int) ([]byte, error) {
	if limit <= 0 {
		limit = MaxRecordSize
	}

	for {
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshal record: %w", err)
		}
		excess := len(data) - limit
		if excess <= 0 {
			return data, nil
		}

		switch {
		case r.Notes != "":
			r.Notes = cut(r.Notes, excess)
		case r.Message != "":
			r.Message = cut(r.Message, excess)
		default:
			return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrRecordTooLarge, len(data), limit)
		}
	}
}

// cut drops n bytes from the end of s, keeping it valid UTF-8
func cut(s string, n int) string {
	if n >= len(s) {
		return ""
	}
	s = s[:len(s)-n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// Segment turns a record field into a topic or subject token
func Segment(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.NewReplacer(" ", "_", ".", "_", "/", "_", "*", "_", ">", "_", "#", "_", "+", "_").Replace(s)
}

// String renders the record for console output
func (r Record) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", r.Device, r.Type)
	for _, d := range r.Data {
		fmt.Fprintf(&b, " %s=%s", d.Key, d.Value)
		b.WriteString(d.Unit)
	}
	if r.Message != "" {
		fmt.Fprintf(&b, " msg=%q", r.Message)
	}
	if r.Notes != "" {
		fmt.Fprintf(&b, " notes=%q", r.Notes)
	}
	return b.String()
}
