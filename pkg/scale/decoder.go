// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scale

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnexpectedByte is returned when a byte does not match the pattern
	ErrUnexpectedByte = errors.New("unexpected byte")
	// ErrInvalidValue is returned when a complete frame carries no number
	ErrInvalidValue = errors.New("invalid value")
	// ErrNotReset is returned while a failed decoder waits for Reset
	ErrNotReset = errors.New("decoder failed, reset required")
)

// FrameError describes where in the pattern decoding failed
type FrameError struct {
	Position int
	Byte     byte
	Expected Symbol
	Err      error
}

// Error implements the error interface
func (e *FrameError) Error() string {
	if errors.Is(e.Err, ErrInvalidValue) {
		return fmt.Sprintf("%v at position %d", e.Err, e.Position)
	}
	return fmt.Sprintf("%v 0x%02X at position %d (expected %s)", e.Err, e.Byte, e.Position, FormatSymbol(e.Expected))
}

// Unwrap returns the underlying sentinel error
func (e *FrameError) Unwrap() error {
	return e.Err
}

// State is the decoder's synchronization state
type State int

const (
	StateWaiting   State = iota // at the start of a frame
	StateReceiving              // part of a frame has matched
	StateFailed                 // a byte did not match, waiting for Reset
	StateResyncing              // discarding bytes until the frame terminator
)

// Decoder implements the balance frame decoder state machine
type Decoder struct {
	pattern   Pattern
	cursor    int
	value     []byte
	unit      string
	stability byte
	state     State
	// failure happened on the terminator byte, stream is already aligned
	alignedFailure bool
	rawBuffer      []byte // Accumulate raw bytes of the current frame
	now            func() time.Time
}

// NewDecoder creates a decoder for the default balance frame
func NewDecoder() *Decoder {
	return NewDecoderWithPattern(DefaultPattern())
}

// NewDecoderWithPattern creates a decoder for a custom frame pattern
func NewDecoderWithPattern(p Pattern) *Decoder {
	return &Decoder{
		pattern:   p,
		value:     make([]byte, 0, len(p)),
		rawBuffer: make([]byte, 0, len(p)*2),
		now:       time.Now,
	}
}

// SetClock replaces the clock used to timestamp frames
func (d *Decoder) SetClock(now func() time.Time) {
	d.now = now
}

// Pattern returns the frame pattern the decoder matches
func (d *Decoder) Pattern() Pattern {
	return d.pattern
}

// Position returns the cursor into the frame pattern
func (d *Decoder) Position() int {
	return d.cursor
}

// State returns the synchronization state
func (d *Decoder) State() State {
	return d.state
}

// GetRawBytes returns the accumulated raw bytes of the current frame
func (d *Decoder) GetRawBytes() []byte {
	return d.rawBuffer
}

// Reset clears the cursor and all buffers
func (d *Decoder) Reset() {
	d.cursor = 0
	d.value = d.value[:0]
	d.unit = ""
	d.stability = 0
	d.state = StateWaiting
	d.alignedFailure = false
	d.rawBuffer = d.rawBuffer[:0]
}

// Resync resets the decoder and, unless the stream is already aligned on a
// frame boundary, discards input up to and including the next terminator.
func (d *Decoder) Resync() {
	aligned := d.state == StateWaiting || (d.state == StateFailed && d.alignedFailure)
	d.Reset()
	if _, ok := d.pattern.terminator(); ok && !aligned {
		d.state = StateResyncing
	}
}

// DecodeByte processes a single byte through the decoder state machine
// Returns a completed frame, or nil if the frame is incomplete
// Returns an error if the byte does not fit the pattern
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	switch d.state {
	case StateFailed:
		return nil, ErrNotReset
	case StateResyncing:
		if term, _ := d.pattern.terminator(); b == term {
			d.Reset()
		}
		return nil, nil
	}

	if d.cursor >= len(d.pattern) {
		d.fail(false)
		return nil, &FrameError{Position: d.cursor, Byte: b, Err: ErrUnexpectedByte}
	}

	d.rawBuffer = append(d.rawBuffer, b)
	sym := d.pattern[d.cursor]
	if !sym.Matches(b) {
		term, hasTerm := d.pattern.terminator()
		pos := d.cursor
		d.fail(hasTerm && b == term)
		return nil, &FrameError{Position: pos, Byte: b, Expected: sym, Err: ErrUnexpectedByte}
	}

	switch sym.Class {
	case ClassValue:
		// padding and interior separators are not part of the number
		if b != Separator {
			d.value = append(d.value, b)
		}
	case ClassUnit:
		d.unit, _ = UnitForTag(b)
	case ClassStability:
		d.stability = b
	}

	d.cursor++
	d.state = StateReceiving
	if d.cursor < len(d.pattern) {
		return nil, nil
	}

	frame, err := d.complete()
	d.Reset()
	return frame, err
}

func (d *Decoder) fail(onTerminator bool) {
	d.state = StateFailed
	d.alignedFailure = onTerminator
}

// complete parses the accumulated value characters into a frame
func (d *Decoder) complete() (*Frame, error) {
	text := string(d.value)
	value, err := strconv.ParseFloat(text, 64)
	if text == "" || err != nil {
		return nil, &FrameError{Position: d.cursor - 1, Err: ErrInvalidValue}
	}

	decimals := 0
	if dot := strings.IndexByte(text, '.'); dot >= 0 {
		decimals = len(text) - dot - 1
	}

	return &Frame{
		value:     value,
		text:      text,
		decimals:  decimals,
		unit:      d.unit,
		stability: d.stability,
		timestamp: d.now(),
	}, nil
}
