// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scale

import (
	"fmt"
	"strconv"
)

// EncodeFrame creates a complete wire-formatted balance frame for the
// default pattern. The value is right-aligned in the value field.
func EncodeFrame(value float64, decimals int, unit string, stable bool) ([]byte, error) {
	tag, ok := TagForUnit(unit)
	if !ok {
		return nil, fmt.Errorf("unknown unit %q", unit)
	}
	if decimals < 0 {
		decimals = 0
	}

	text := strconv.FormatFloat(value, 'f', decimals, 64)
	if len(text) > ValueWidth {
		return nil, fmt.Errorf("value %s does not fit in %d characters", text, ValueWidth)
	}

	stability := byte(Separator)
	if !stable {
		stability = UnstableFlag
	}

	frame := make([]byte, 0, FrameLength)
	frame = append(frame, fmt.Sprintf("%*s", ValueWidth, text)...)
	for i := 0; i < SeparatorWidth; i++ {
		frame = append(frame, Separator)
	}
	frame = append(frame, tag, stability, CR, LF)

	return frame, nil
}

// MustEncodeFrame encodes a frame and panics on error
func MustEncodeFrame(value float64, decimals int, unit string, stable bool) []byte {
	data, err := EncodeFrame(value, decimals, unit, stable)
	if err != nil {
		panic(fmt.Sprintf("scale: encode error: %v", err))
	}
	return data
}
