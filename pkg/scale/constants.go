// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package scale decodes the fixed-length ASCII frames printed by serial
// laboratory balances.
//
// A frame is a run of value characters (right-aligned, space padded), two
// separator spaces, a one-byte unit tag, a one-byte stability flag and a
// CR LF terminator:
//
//	"   -12.34  g \r\n"
//
// The decoder consumes the stream one byte at a time and hands back a Frame
// when the terminator has been matched.
package scale

// Frame layout
const (
	ValueWidth     = 9
	SeparatorWidth = 2
	FrameLength    = ValueWidth + SeparatorWidth + 4 // unit, stability, CR, LF
)

// Framing bytes
const (
	Separator  = ' '
	CR         = '\r'
	LF         = '\n'
	Terminator = LF
)

// Stability flag sent while the balance has not settled
const UnstableFlag = '?'

// DataRequest asks the balance to print its current reading
var DataRequest = []byte("P\r\n")

// Canonical unit strings
const (
	UnitGram        = "g"
	UnitKilogram    = "kg"
	UnitMilligram   = "mg"
	UnitOunce       = "oz"
	UnitPound       = "lb"
	UnitTroyOunce   = "ozt"
	UnitCarat       = "ct"
	UnitPennyweight = "dwt"
)

// unitTags maps the unit tag byte of a frame to its canonical unit
var unitTags = map[byte]string{
	'g': UnitGram,
	'k': UnitKilogram,
	'm': UnitMilligram,
	'o': UnitOunce,
	'l': UnitPound,
	't': UnitTroyOunce,
	'c': UnitCarat,
	'd': UnitPennyweight,
}

// UnitForTag returns the canonical unit for a frame unit tag
func UnitForTag(tag byte) (string, bool) {
	unit, ok := unitTags[tag]
	return unit, ok
}

// TagForUnit returns the frame unit tag for a canonical unit
func TagForUnit(unit string) (byte, bool) {
	for tag, u := range unitTags {
		if u == unit {
			return tag, true
		}
	}
	return 0, false
}
