// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package aggregate

import "math"

// Running is a single-pass mean and variance accumulator (Welford)
type Running struct {
	n    int
	mean float64
	m2   float64
}

// Add folds one value into the accumulator
func (r *Running) Add(x float64) {
	r.n++
	delta := x - r.mean
	r.mean += delta / float64(r.n)
	r.m2 += delta * (x - r.mean)
}

// Count returns the number of values added since the last Reset
func (r *Running) Count() int {
	return r.n
}

// Mean returns the arithmetic mean, 0 when empty
func (r *Running) Mean() float64 {
	return r.mean
}

// Variance returns the sample variance (n-1), 0 for fewer than two values
func (r *Running) Variance() float64 {
	if r.n < 2 {
		return 0
	}
	return r.m2 / float64(r.n-1)
}

// StdDev returns the sample standard deviation
func (r *Running) StdDev() float64 {
	return math.Sqrt(r.Variance())
}

// Reset clears the accumulator
func (r *Running) Reset() {
	r.n = 0
	r.mean = 0
	r.m2 = 0
}
