// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package state

import (
	"context"
	"sync"
)

// Store persists state records by slot
type Store interface {
	// Load returns the record in slot. found is false when the slot is empty.
	Load(ctx context.Context, slot string) (s State, found bool, err error)
	Save(ctx context.Context, slot string, s State) error
	Close() error
}

// MemoryStore keeps encoded records in memory
type MemoryStore struct {
	mu    sync.Mutex
	data  map[string][]byte
	saves int
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Load implements Store
func (m *MemoryStore) Load(_ context.Context, slot string) (State, bool, error) {
	m.mu.Lock()
	data, ok := m.data[slot]
	m.mu.Unlock()
	if !ok {
		return State{}, false, nil
	}
	s, err := Decode(data)
	return s, true, err
}

// Save implements Store
func (m *MemoryStore) Save(_ context.Context, slot string, s State) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[slot] = data
	m.saves++
	return nil
}

// Put stores raw bytes in a slot without counting a save
func (m *MemoryStore) Put(slot string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[slot] = append([]byte(nil), data...)
}

// Saves returns how many times Save succeeded
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}
