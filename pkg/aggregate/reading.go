// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package aggregate

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Reading is one named channel: its latest value, unit and running statistics
type Reading struct {
	Name string
	// AutoClear resets the statistics after every snapshot
	AutoClear bool

	unit     string
	last     float64
	valid    bool
	decimals int
	stats    Running

	// mean timestamp as an offset in seconds from the first recorded one
	timeRef  time.Time
	timeMean float64

	precision *Precision
}

// NewReading creates a channel that takes its decimal count from the source
func NewReading(name string, autoClear bool) *Reading {
	return &Reading{Name: name, AutoClear: autoClear}
}

// NewDerivedReading creates a channel whose decimal count follows a
// significant digit policy
func NewDerivedReading(name string, sig int) *Reading {
	return &Reading{Name: name, precision: NewPrecision(sig)}
}

// Record adds a value. decimals is the source precision hint and is
// ignored by derived channels.
func (r *Reading) Record(value float64, decimals int, ts time.Time) {
	r.last = value
	r.valid = true
	r.stats.Add(value)

	if r.stats.Count() == 1 {
		r.timeRef = ts
		r.timeMean = 0
	} else {
		offset := ts.Sub(r.timeRef).Seconds()
		r.timeMean += (offset - r.timeMean) / float64(r.stats.Count())
	}

	if r.precision != nil {
		r.decimals = r.precision.Update(r.stats.Mean())
	} else if decimals >= 0 {
		r.decimals = decimals
	}
}

// SetUnit changes the unit. Statistics are cleared when it differs from the
// current one so values of different units are never averaged.
func (r *Reading) SetUnit(unit string) bool {
	if unit == r.unit {
		return false
	}
	if r.unit != "" {
		r.Clear()
	}
	r.unit = unit
	return true
}

// Unit returns the channel unit
func (r *Reading) Unit() string {
	return r.unit
}

// Last returns the most recently recorded value
func (r *Reading) Last() float64 {
	return r.last
}

// Valid reports whether the channel holds statistics
func (r *Reading) Valid() bool {
	return r.valid
}

// Count returns the number of values since the last clear
func (r *Reading) Count() int {
	return r.stats.Count()
}

// Mean returns the mean of the values since the last clear
func (r *Reading) Mean() float64 {
	return r.stats.Mean()
}

// StdDev returns the sample standard deviation
func (r *Reading) StdDev() float64 {
	return r.stats.StdDev()
}

// Variance returns the sample variance
func (r *Reading) Variance() float64 {
	return r.stats.Variance()
}

// Decimals returns the display precision
func (r *Reading) Decimals() int {
	return r.decimals
}

// Timestamp returns the mean time of the recorded values
func (r *Reading) Timestamp() time.Time {
	if r.stats.Count() == 0 {
		return time.Time{}
	}
	return r.timeRef.Add(time.Duration(math.Round(r.timeMean * float64(time.Second))))
}

// FormatValue renders the mean with the channel's display precision
func (r *Reading) FormatValue() string {
	if !r.valid {
		return "n/a"
	}
	return strconv.FormatFloat(r.stats.Mean(), 'f', r.decimals, 64)
}

// Summary returns a short text summary, e.g. "weight: 12.50 g (n=3, sd=0.05)"
func (r *Reading) Summary() string {
	if !r.valid {
		return fmt.Sprintf("%s: n/a", r.Name)
	}
	return fmt.Sprintf("%s: %s %s (n=%d, sd=%s)", r.Name, r.FormatValue(), r.unit,
		r.stats.Count(), strconv.FormatFloat(r.stats.StdDev(), 'f', r.decimals, 64))
}

// Clear resets the statistics and marks the channel invalid. The unit is kept.
func (r *Reading) Clear() {
	r.stats.Reset()
	r.valid = false
	r.last = 0
	r.timeRef = time.Time{}
	r.timeMean = 0
	if r.precision != nil {
		r.precision.Reset()
	}
}
