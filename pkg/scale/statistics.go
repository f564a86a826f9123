// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scale

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks frame counts and decode error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames     uint64
	ValidFrames     uint64
	DecodeErrors    uint64
	UnexpectedBytes uint64
	InvalidValues   uint64
	UnstableFrames  uint64
	UnitChanges     uint64

	lastUnit string

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec

	now func() time.Time
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return NewStatisticsWithClock(time.Now)
}

// NewStatisticsWithClock creates a statistics tracker using the given clock
func NewStatisticsWithClock(now func() time.Time) *Statistics {
	t := now()
	return &Statistics{
		StartTime:      t,
		LastUpdateTime: t,
		now:            now,
	}
}

// Update updates statistics based on a frame or its decode error
func (s *Statistics) Update(frame *Frame, decodeErr error) {
	s.TotalFrames++
	s.LastUpdateTime = s.now()

	if decodeErr != nil {
		s.DecodeErrors++
		switch {
		case errors.Is(decodeErr, ErrInvalidValue):
			s.InvalidValues++
		case errors.Is(decodeErr, ErrUnexpectedByte):
			s.UnexpectedBytes++
		}
		return
	}

	if frame == nil {
		return
	}

	s.ValidFrames++
	if !frame.Stable() {
		s.UnstableFrames++
	}
	if s.lastUnit != "" && frame.Unit() != s.lastUnit {
		s.UnitChanges++
	}
	s.lastUnit = frame.Unit()
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := s.now().Sub(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.ValidFrames) / elapsed
		s.ErrorRate = float64(s.DecodeErrors) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent, errorPercent float64
	if s.TotalFrames > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(s.TotalFrames)
		errorPercent = float64(s.DecodeErrors) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := s.now().Sub(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)

	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, errorPercent)
		if s.UnexpectedBytes > 0 {
			result += fmt.Sprintf("  Unexpected Bytes: %5d\n", s.UnexpectedBytes)
		}
		if s.InvalidValues > 0 {
			result += fmt.Sprintf("  Invalid Values:   %5d\n", s.InvalidValues)
		}
	}
	if s.UnstableFrames > 0 {
		result += fmt.Sprintf("Unstable Frames: %8d\n", s.UnstableFrames)
	}
	if s.UnitChanges > 0 {
		result += fmt.Sprintf("Unit Changes:    %8d\n", s.UnitChanges)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	now := s.now()
	s.StartTime = now
	s.LastUpdateTime = now
	s.TotalFrames = 0
	s.ValidFrames = 0
	s.DecodeErrors = 0
	s.UnexpectedBytes = 0
	s.InvalidValues = 0
	s.UnstableFrames = 0
	s.UnitChanges = 0
	s.lastUnit = ""
	s.FrameRate = 0
	s.ErrorRate = 0
}
