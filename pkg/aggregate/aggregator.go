// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package aggregate keeps running statistics per channel and derives rates
// between successive snapshots of a base channel.
package aggregate

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnknownChannel is returned for a channel name that was never added
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrDuplicateChannel is returned when a channel name is reused
	ErrDuplicateChannel = errors.New("duplicate channel")
)

// Sample is an aggregated value of a channel at its mean time
type Sample struct {
	Mean float64
	Time time.Time
}

// ChannelSnapshot is a copy of a channel taken by Snapshot
type ChannelSnapshot struct {
	Name     string    `json:"name"`
	Value    float64   `json:"value"`
	Text     string    `json:"text"`
	Unit     string    `json:"unit"`
	Count    int       `json:"n"`
	StdDev   float64   `json:"sd"`
	Decimals int       `json:"decimals"`
	Time     time.Time `json:"time"`
}

type rateTrack struct {
	base    *Reading
	derived *Reading
	// oldest first, at most two
	history []Sample
}

// Aggregator owns all channels of a device. It is not safe for concurrent
// use; the controller loop is its only caller.
type Aggregator struct {
	channels []*Reading
	byName   map[string]*Reading
	rates    map[string]*rateTrack
	rateUnit RateUnit
}

// NewAggregator creates an empty aggregator with the given rate unit
func NewAggregator(unit RateUnit) *Aggregator {
	return &Aggregator{
		byName:   make(map[string]*Reading),
		rates:    make(map[string]*rateTrack),
		rateUnit: unit,
	}
}

// AddChannel registers a source channel
func (a *Aggregator) AddChannel(name string, autoClear bool) (*Reading, error) {
	if _, exists := a.byName[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateChannel, name)
	}
	r := NewReading(name, autoClear)
	a.channels = append(a.channels, r)
	a.byName[name] = r
	return r, nil
}

// AddRate registers a derived channel holding the rate of change of base
func (a *Aggregator) AddRate(base, name string, sig int) (*Reading, error) {
	b, ok := a.byName[base]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, base)
	}
	if _, exists := a.byName[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateChannel, name)
	}
	r := NewDerivedReading(name, sig)
	a.channels = append(a.channels, r)
	a.byName[name] = r
	a.rates[base] = &rateTrack{base: b, derived: r}
	return r, nil
}

// Channel returns a channel by name
func (a *Aggregator) Channel(name string) (*Reading, bool) {
	r, ok := a.byName[name]
	return r, ok
}

// Channels returns all channels in registration order
func (a *Aggregator) Channels() []*Reading {
	return a.channels
}

// RateUnit returns the configured rate unit
func (a *Aggregator) RateUnit() RateUnit {
	return a.rateUnit
}

// SetRateUnit changes the rate unit. Any change drops the rate history and
// resets every channel. Returns false when u is already configured.
func (a *Aggregator) SetRateUnit(u RateUnit) bool {
	if u == a.rateUnit {
		return false
	}
	a.rateUnit = u
	a.ResetAll()
	return true
}

// Record adds a reading to a source channel. A unit change clears the
// channel and any rate derived from it before the value is applied.
func (a *Aggregator) Record(channel string, value float64, unit string, decimals int, ts time.Time) error {
	r, ok := a.byName[channel]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
	if r.SetUnit(unit) {
		if track, ok := a.rates[channel]; ok {
			track.history = track.history[:0]
			track.derived.Clear()
		}
	}
	r.Record(value, decimals, ts)
	return nil
}

// Rate returns the rate of change of base in the configured unit. It is
// unavailable while the rate unit is off, fewer than two samples exist or
// the samples are not strictly ordered in time.
func (a *Aggregator) Rate(base string) (float64, bool) {
	track, ok := a.rates[base]
	if !ok {
		return 0, false
	}
	return a.rateOf(track)
}

func (a *Aggregator) rateOf(track *rateTrack) (float64, bool) {
	unitSeconds := a.rateUnit.Seconds()
	if unitSeconds == 0 || len(track.history) < 2 {
		return 0, false
	}
	older, newer := track.history[0], track.history[1]
	elapsed := newer.Time.Sub(older.Time).Seconds() / unitSeconds
	if elapsed <= 0 {
		return 0, false
	}
	return (newer.Mean - older.Mean) / elapsed, true
}

// Snapshot captures every channel for logging. Base channels with data push
// a sample into their rate history and the derived rate is recorded at the
// midpoint of the two samples. Auto-clear channels are reset afterwards.
func (a *Aggregator) Snapshot() []ChannelSnapshot {
	for _, track := range a.rates {
		if !track.base.Valid() {
			continue
		}
		track.history = append(track.history, Sample{Mean: track.base.Mean(), Time: track.base.Timestamp()})
		if len(track.history) > 2 {
			track.history = track.history[len(track.history)-2:]
		}

		rate, ok := a.rateOf(track)
		if !ok {
			track.derived.Clear()
			continue
		}
		mid := track.history[0].Time.Add(track.history[1].Time.Sub(track.history[0].Time) / 2)
		track.derived.SetUnit(RateLabel(track.base.Unit(), a.rateUnit))
		track.derived.Record(rate, -1, mid)
	}

	snaps := make([]ChannelSnapshot, 0, len(a.channels))
	for _, r := range a.channels {
		if !r.Valid() {
			continue
		}
		snaps = append(snaps, ChannelSnapshot{
			Name:     r.Name,
			Value:    r.Mean(),
			Text:     r.FormatValue(),
			Unit:     r.Unit(),
			Count:    r.Count(),
			StdDev:   r.StdDev(),
			Decimals: r.Decimals(),
			Time:     r.Timestamp(),
		})
	}

	for _, r := range a.channels {
		if r.AutoClear {
			r.Clear()
		}
	}
	return snaps
}

// Reset clears one channel and, for a base channel, its rate history
func (a *Aggregator) Reset(channel string) error {
	r, ok := a.byName[channel]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
	r.Clear()
	if track, ok := a.rates[channel]; ok {
		track.history = track.history[:0]
		track.derived.Clear()
	}
	return nil
}

// ResetAll clears every channel and all rate history
func (a *Aggregator) ResetAll() {
	for _, r := range a.channels {
		r.Clear()
	}
	for _, track := range a.rates {
		track.history = track.history[:0]
	}
}

// Summary joins the channel summaries, one per line
func (a *Aggregator) Summary() string {
	lines := make([]string, 0, len(a.channels))
	for _, r := range a.channels {
		lines = append(lines, r.Summary())
	}
	return strings.Join(lines, "\n")
}
