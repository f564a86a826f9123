// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scale

import (
	"fmt"
	"strings"
)

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.timestamp.Format("15:04:05.000")
	stability := "stable"
	if !f.Stable() {
		stability = "unstable"
	}
	return fmt.Sprintf("[%s] %s %s (%s, %d decimals)\n", timestamp, f.text, f.unit, stability, f.decimals)
}

// FormatSymbol returns the human-readable name of a pattern symbol
func FormatSymbol(s Symbol) string {
	switch s.Class {
	case ClassValue:
		return "VALUE"
	case ClassUnit:
		return "UNIT"
	case ClassStability:
		return "STABILITY"
	case ClassLiteral:
		return fmt.Sprintf("LITERAL %s", FormatByte(s.Literal))
	default:
		return "UNKNOWN"
	}
}

// FormatState returns the human-readable name of a decoder state
func FormatState(s State) string {
	switch s {
	case StateWaiting:
		return "WAITING"
	case StateReceiving:
		return "RECEIVING"
	case StateFailed:
		return "FAILED"
	case StateResyncing:
		return "RESYNCING"
	default:
		return "UNKNOWN"
	}
}

// FormatByte renders a byte as a printable character or an escape
func FormatByte(b byte) string {
	switch b {
	case CR:
		return `'\r'`
	case LF:
		return `'\n'`
	case Separator:
		return "' '"
	}
	if b >= 0x20 && b < 0x7F {
		return fmt.Sprintf("'%c'", b)
	}
	return fmt.Sprintf("0x%02X", b)
}

// FormatRaw renders raw frame bytes as a quoted, escaped string
func FormatRaw(data []byte) string {
	var s strings.Builder
	s.WriteByte('"')
	for _, b := range data {
		switch {
		case b == CR:
			s.WriteString(`\r`)
		case b == LF:
			s.WriteString(`\n`)
		case b >= 0x20 && b < 0x7F:
			s.WriteByte(b)
		default:
			s.WriteString(fmt.Sprintf(`\x%02x`, b))
		}
	}
	s.WriteByte('"')
	return s.String()
}
