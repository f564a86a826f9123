// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scale

import (
	"strconv"
	"time"
)

// Frame represents one decoded balance reading
type Frame struct {
	value     float64
	text      string
	decimals  int
	unit      string
	stability byte
	timestamp time.Time
}

// NewFrame creates a frame with the given fields
func NewFrame(value float64, decimals int, unit string, stability byte, timestamp time.Time) *Frame {
	return &Frame{
		value:     value,
		text:      strconv.FormatFloat(value, 'f', decimals, 64),
		decimals:  decimals,
		unit:      unit,
		stability: stability,
		timestamp: timestamp,
	}
}

// Value returns the parsed numeric reading
func (f *Frame) Value() float64 {
	return f.value
}

// Text returns the value characters as received, padding removed
func (f *Frame) Text() string {
	return f.text
}

// Decimals returns the number of digits after the decimal point
func (f *Frame) Decimals() int {
	return f.decimals
}

// Unit returns the canonical unit string
func (f *Frame) Unit() string {
	return f.unit
}

// Stability returns the raw stability flag byte
func (f *Frame) Stability() byte {
	return f.stability
}

// Stable reports whether the balance flagged the reading as settled
func (f *Frame) Stable() bool {
	return f.stability != UnstableFlag
}

// Timestamp returns the frame completion time
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}
