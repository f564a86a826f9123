// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package state

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ErrCorruptRecord is returned when stored bytes are not a state record
var ErrCorruptRecord = errors.New("corrupt state record")

type versionHeader struct {
	Version int `cbor:"0,keyasint"`
}

// Encode serializes a state as an integer-keyed CBOR map
func Encode(s State) ([]byte, error) {
	data, err := cbor.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return data, nil
}

// Decode parses a stored record. A record of another schema version is
// returned with only its Version set; none of its fields are read.
func Decode(data []byte) (State, error) {
	var header versionHeader
	if err := cbor.Unmarshal(data, &header); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if header.Version != SchemaVersion {
		return State{Version: header.Version}, nil
	}

	var s State
	if err := cbor.Unmarshal(data, &s); err != nil {
		return State{Version: header.Version}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return s, nil
}
