// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package aggregate

// RateUnit is the time base of derived rates
type RateUnit int

const (
	RateOff RateUnit = iota
	RatePerSecond
	RatePerMinute
	RatePerHour
	RatePerDay
)

var rateUnitNames = map[RateUnit]string{
	RateOff:       "off",
	RatePerSecond: "sec",
	RatePerMinute: "min",
	RatePerHour:   "hr",
	RatePerDay:    "day",
}

// ParseRateUnit maps a command value (off, sec, min, hr, day) to a RateUnit
func ParseRateUnit(s string) (RateUnit, bool) {
	for u, name := range rateUnitNames {
		if name == s {
			return u, true
		}
	}
	return RateOff, false
}

// String returns the command value of the unit
func (u RateUnit) String() string {
	if name, ok := rateUnitNames[u]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether u is one of the defined units
func (u RateUnit) Valid() bool {
	_, ok := rateUnitNames[u]
	return ok
}

// Seconds returns the length of one unit in seconds, 0 for RateOff
func (u RateUnit) Seconds() float64 {
	switch u {
	case RatePerSecond:
		return 1
	case RatePerMinute:
		return 60
	case RatePerHour:
		return 3600
	case RatePerDay:
		return 86400
	default:
		return 0
	}
}

// RateLabel builds the unit string of a derived channel, e.g. "g/min"
func RateLabel(base string, u RateUnit) string {
	return base + "/" + u.String()
}
