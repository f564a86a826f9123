// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package state holds the persisted device configuration and the stores it
// is saved to. A record is only trusted when its version matches
// SchemaVersion.
package state

import (
	"errors"
	"fmt"

	"github.com/Thermoquad/libra/pkg/aggregate"
)

// SchemaVersion is bumped whenever the record layout changes
const SchemaVersion = 4

// DefaultSlot is the storage key of the device record
const DefaultSlot = "libra"

// Limits of the configurable values
const (
	MinTimezone       = -12
	MaxTimezone       = 14
	MaxLoggingPeriod  = 86400
	MinReadPeriod     = 1
	MaxReadPeriod     = 3600
	DefaultReadPeriod = 1
)

// ErrInvalidState is returned by Validate
var ErrInvalidState = errors.New("invalid state")

// State is the persisted device configuration
type State struct {
	Version      int  `cbor:"0,keyasint" json:"version"`
	Locked       bool `cbor:"1,keyasint" json:"locked"`
	StateLogging bool `cbor:"2,keyasint" json:"state_logging"`
	DataLogging  bool `cbor:"3,keyasint" json:"data_logging"`
	// seconds between data logs, 0 logs every reading
	DataLoggingPeriod int                `cbor:"4,keyasint" json:"data_logging_period"`
	CalcRate          aggregate.RateUnit `cbor:"5,keyasint" json:"calc_rate"`
	Timezone          int                `cbor:"6,keyasint" json:"timezone"`
	// seconds between data requests to the scale
	ReadPeriod int `cbor:"7,keyasint" json:"read_period"`
}

// Defaults returns the compiled-in configuration
func Defaults() State {
	return State{
		Version:           SchemaVersion,
		Locked:            false,
		StateLogging:      false,
		DataLogging:       false,
		DataLoggingPeriod: 0,
		CalcRate:          aggregate.RateOff,
		Timezone:          0,
		ReadPeriod:        DefaultReadPeriod,
	}
}

// Validate checks every field against its range
func (s State) Validate() error {
	switch {
	case s.Version != SchemaVersion:
		return fmt.Errorf("%w: version %d, want %d", ErrInvalidState, s.Version, SchemaVersion)
	case s.Timezone < MinTimezone || s.Timezone > MaxTimezone:
		return fmt.Errorf("%w: timezone %d", ErrInvalidState, s.Timezone)
	case s.DataLoggingPeriod < 0 || s.DataLoggingPeriod > MaxLoggingPeriod:
		return fmt.Errorf("%w: data logging period %d", ErrInvalidState, s.DataLoggingPeriod)
	case s.ReadPeriod < MinReadPeriod || s.ReadPeriod > MaxReadPeriod:
		return fmt.Errorf("%w: read period %d", ErrInvalidState, s.ReadPeriod)
	case !s.CalcRate.Valid():
		return fmt.Errorf("%w: calc rate %d", ErrInvalidState, s.CalcRate)
	}
	return nil
}
