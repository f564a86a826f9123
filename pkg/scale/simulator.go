// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scale

import (
	"math"
	"math/rand"
)

// Simulator answers data requests with frames of a slowly drifting weight.
// It is not safe for concurrent use.
type Simulator struct {
	weight   float64
	drift    float64
	noise    float64
	decimals int
	unit     string
	rng      *rand.Rand

	// bytes of DataRequest matched so far
	matched int
}

// NewSimulator creates a simulator starting at weight. Each frame moves the
// weight by drift.
func NewSimulator(weight, drift float64, decimals int, unit string) *Simulator {
	return &Simulator{
		weight:   weight,
		drift:    drift,
		decimals: decimals,
		unit:     unit,
		rng:      rand.New(rand.NewSource(1)),
	}
}

// SetNoise adds uniform noise of +/- amplitude to every frame. Frames whose
// noise exceeds half the amplitude are flagged unstable.
func (s *Simulator) SetNoise(amplitude float64, seed int64) {
	s.noise = math.Abs(amplitude)
	s.rng = rand.New(rand.NewSource(seed))
}

// Weight returns the weight of the next frame without noise
func (s *Simulator) Weight() float64 {
	return s.weight
}

// Next returns the frame for the current weight and advances the drift
func (s *Simulator) Next() ([]byte, error) {
	value := s.weight
	stable := true
	if s.noise > 0 {
		n := (s.rng.Float64()*2 - 1) * s.noise
		value += n
		stable = math.Abs(n) <= s.noise/2
	}
	frame, err := EncodeFrame(value, s.decimals, s.unit, stable)
	if err != nil {
		return nil, err
	}
	s.weight += s.drift
	return frame, nil
}

// Respond scans received bytes for data requests and returns one frame per
// complete request. A request may span several calls; other bytes are
// ignored.
func (s *Simulator) Respond(data []byte) ([]byte, error) {
	var out []byte
	for _, b := range data {
		switch {
		case b == DataRequest[s.matched]:
			s.matched++
		case b == DataRequest[0]:
			s.matched = 1
		default:
			s.matched = 0
		}
		if s.matched < len(DataRequest) {
			continue
		}
		s.matched = 0
		frame, err := s.Next()
		if err != nil {
			return out, err
		}
		out = append(out, frame...)
	}
	return out, nil
}
