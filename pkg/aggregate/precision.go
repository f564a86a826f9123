// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package aggregate

import "math"

// DefaultSignificantDigits is the precision kept for derived values
const DefaultSignificantDigits = 4

// Precision picks a decimal count that keeps a fixed number of significant
// digits. The count only changes when the order of magnitude does.
type Precision struct {
	Significant int

	magnitude int
	decimals  int
	set       bool
}

// NewPrecision creates a precision policy for sig significant digits
func NewPrecision(sig int) *Precision {
	if sig < 1 {
		sig = DefaultSignificantDigits
	}
	return &Precision{Significant: sig}
}

// Update recomputes the decimal count for v and returns it
func (p *Precision) Update(v float64) int {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		if !p.set {
			p.decimals = max(0, p.Significant-1)
			p.set = true
		}
		return p.decimals
	}

	mag := int(math.Floor(math.Log10(math.Abs(v))))
	if p.set && mag == p.magnitude {
		return p.decimals
	}
	p.magnitude = mag
	p.decimals = max(0, p.Significant-1-mag)
	p.set = true
	return p.decimals
}

// Decimals returns the current decimal count
func (p *Precision) Decimals() int {
	return p.decimals
}

// Reset forgets the last magnitude
func (p *Precision) Reset() {
	p.magnitude = 0
	p.decimals = 0
	p.set = false
}
