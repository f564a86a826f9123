// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scale

// SymbolClass is the kind of byte expected at one position of a frame
type SymbolClass int

const (
	ClassValue     SymbolClass = iota // digit, sign, decimal point or padding space
	ClassUnit                         // unit tag from the unit alphabet
	ClassStability                    // stability flag, any printable byte
	ClassLiteral                      // exact byte match
)

// Symbol is one position of a frame pattern
type Symbol struct {
	Class   SymbolClass
	Literal byte // only used by ClassLiteral
}

// Pattern is the ordered list of symbols making up one frame
type Pattern []Symbol

// Value returns a value symbol
func Value() Symbol { return Symbol{Class: ClassValue} }

// Unit returns a unit tag symbol
func Unit() Symbol { return Symbol{Class: ClassUnit} }

// Stability returns a stability flag symbol
func Stability() Symbol { return Symbol{Class: ClassStability} }

// Literal returns a symbol matching exactly b
func Literal(b byte) Symbol { return Symbol{Class: ClassLiteral, Literal: b} }

// DefaultPattern returns the 15 byte frame printed by the balance
func DefaultPattern() Pattern {
	p := make(Pattern, 0, FrameLength)
	for i := 0; i < ValueWidth; i++ {
		p = append(p, Value())
	}
	for i := 0; i < SeparatorWidth; i++ {
		p = append(p, Literal(Separator))
	}
	return append(p, Unit(), Stability(), Literal(CR), Literal(LF))
}

// Matches reports whether b is acceptable for the symbol
func (s Symbol) Matches(b byte) bool {
	switch s.Class {
	case ClassValue:
		return isValueByte(b)
	case ClassUnit:
		_, ok := unitTags[b]
		return ok
	case ClassStability:
		return b >= 0x20 && b < 0x7F
	case ClassLiteral:
		return b == s.Literal
	}
	return false
}

// terminator returns the final literal byte of the pattern, used to
// resynchronize after an error
func (p Pattern) terminator() (byte, bool) {
	if len(p) == 0 {
		return 0, false
	}
	last := p[len(p)-1]
	if last.Class != ClassLiteral {
		return 0, false
	}
	return last.Literal, true
}

func isValueByte(b byte) bool {
	return (b >= '0' && b <= '9') || b == '+' || b == '-' || b == '.' || b == Separator
}
