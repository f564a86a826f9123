// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package aggregate

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

// ============================================================
// Test Helpers
// ============================================================

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func newScaleAggregator(t *testing.T, unit RateUnit) *Aggregator {
	t.Helper()
	a := NewAggregator(unit)
	if _, err := a.AddChannel("weight", true); err != nil {
		t.Fatalf("AddChannel: %v", err)
	}
	if _, err := a.AddRate("weight", "rate", DefaultSignificantDigits); err != nil {
		t.Fatalf("AddRate: %v", err)
	}
	return a
}

// ============================================================
// Running Statistics Tests
// ============================================================

func TestRunning_MeanAndVariance(t *testing.T) {
	var r Running
	for _, x := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		r.Add(x)
	}

	if r.Count() != 8 {
		t.Errorf("Count = %d, want 8", r.Count())
	}
	if !almostEqual(r.Mean(), 5) {
		t.Errorf("Mean = %v, want 5", r.Mean())
	}
	if !almostEqual(r.Variance(), 32.0/7.0) {
		t.Errorf("Variance = %v, want %v", r.Variance(), 32.0/7.0)
	}
	if !almostEqual(r.StdDev(), math.Sqrt(32.0/7.0)) {
		t.Errorf("StdDev = %v", r.StdDev())
	}
}

func TestRunning_SmallCounts(t *testing.T) {
	var r Running
	if r.Variance() != 0 || r.Mean() != 0 {
		t.Error("Empty accumulator should report zeros")
	}
	r.Add(3.5)
	if r.Variance() != 0 {
		t.Errorf("Variance with one value = %v, want 0", r.Variance())
	}
	r.Reset()
	if r.Count() != 0 || r.Mean() != 0 {
		t.Error("Reset should clear the accumulator")
	}
}

func TestRunning_LargeOffsetStable(t *testing.T) {
	var r Running
	for _, x := range []float64{1e9 + 4, 1e9 + 7, 1e9 + 13, 1e9 + 16} {
		r.Add(x)
	}
	if !almostEqual(r.Variance(), 30) {
		t.Errorf("Variance = %v, want 30", r.Variance())
	}
}

// ============================================================
// Rate Unit Tests
// ============================================================

func TestParseRateUnit(t *testing.T) {
	tests := []struct {
		in      string
		want    RateUnit
		ok      bool
		seconds float64
	}{
		{"off", RateOff, true, 0},
		{"sec", RatePerSecond, true, 1},
		{"min", RatePerMinute, true, 60},
		{"hr", RatePerHour, true, 3600},
		{"day", RatePerDay, true, 86400},
		{"Min", RateOff, false, 0},
		{"week", RateOff, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseRateUnit(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("ParseRateUnit(%q) = %v, %v", tt.in, got, ok)
			}
			if ok && got.String() != tt.in {
				t.Errorf("String() = %q, want %q", got.String(), tt.in)
			}
			if got.Seconds() != tt.seconds {
				t.Errorf("Seconds() = %v, want %v", got.Seconds(), tt.seconds)
			}
		})
	}

	if RateLabel("g", RatePerMinute) != "g/min" {
		t.Errorf("RateLabel = %q", RateLabel("g", RatePerMinute))
	}
	if RateUnit(42).Valid() {
		t.Error("RateUnit(42) should not be valid")
	}
}

// ============================================================
// Precision Tests
// ============================================================

func TestPrecision_SignificantDigits(t *testing.T) {
	tests := []struct {
		value float64
		want  int
	}{
		{1234.5, 0},
		{123.45, 1},
		{12.345, 2},
		{1.2345, 3},
		{0.012345, 5},
		{-0.5, 4},
		{98765, 0},
	}

	for _, tt := range tests {
		p := NewPrecision(4)
		if got := p.Update(tt.value); got != tt.want {
			t.Errorf("Update(%v) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestPrecision_OnlyChangesWithMagnitude(t *testing.T) {
	p := NewPrecision(3)
	if p.Update(5.0) != 2 {
		t.Fatalf("Decimals = %d, want 2", p.Decimals())
	}
	if p.Update(9.99) != 2 {
		t.Errorf("same magnitude should keep 2 decimals")
	}
	if p.Update(0) != 2 {
		t.Errorf("zero should keep the last decimal count")
	}
	if p.Update(50) != 1 {
		t.Errorf("larger magnitude should drop a decimal, got %d", p.Decimals())
	}
	p.Reset()
	if p.Update(0) != 2 {
		t.Errorf("zero on a fresh policy = %d, want 2", p.Decimals())
	}
}

// ============================================================
// Reading Tests
// ============================================================

func TestReading_RecordAndClear(t *testing.T) {
	r := NewReading("weight", true)
	r.SetUnit("g")
	r.Record(10, 2, t0)
	r.Record(12, 2, t0.Add(10*time.Second))

	if !r.Valid() || r.Count() != 2 {
		t.Fatalf("Valid=%v Count=%d", r.Valid(), r.Count())
	}
	if r.Mean() != 11 || r.Last() != 12 {
		t.Errorf("Mean=%v Last=%v", r.Mean(), r.Last())
	}
	if !r.Timestamp().Equal(t0.Add(5 * time.Second)) {
		t.Errorf("Timestamp = %v, want mean time", r.Timestamp())
	}
	if r.FormatValue() != "11.00" {
		t.Errorf("FormatValue = %q, want 11.00", r.FormatValue())
	}
	if !strings.HasPrefix(r.Summary(), "weight: 11.00 g (n=2") {
		t.Errorf("Summary = %q", r.Summary())
	}

	r.Clear()
	if r.Valid() || r.Count() != 0 {
		t.Error("Clear should invalidate the reading")
	}
	if r.Unit() != "g" {
		t.Error("Clear should keep the unit")
	}
	if r.Summary() != "weight: n/a" {
		t.Errorf("Summary = %q", r.Summary())
	}
}

func TestReading_UnitChangeClears(t *testing.T) {
	r := NewReading("weight", false)
	r.SetUnit("g")
	r.Record(1000, 0, t0)

	if !r.SetUnit("kg") {
		t.Fatal("SetUnit should report a change")
	}
	if r.Count() != 0 {
		t.Errorf("Count after unit change = %d, want 0", r.Count())
	}
	if r.SetUnit("kg") {
		t.Error("SetUnit with the same unit should be a no-op")
	}
}

// ============================================================
// Aggregator Tests
// ============================================================

func TestAggregator_RatePerMinute(t *testing.T) {
	a := newScaleAggregator(t, RatePerMinute)

	if err := a.Record("weight", 10.0, "g", 1, t0); err != nil {
		t.Fatalf("Record: %v", err)
	}
	a.Snapshot()
	if _, ok := a.Rate("weight"); ok {
		t.Error("Rate should be unavailable with a single sample")
	}

	if err := a.Record("weight", 12.0, "g", 1, t0.Add(time.Minute)); err != nil {
		t.Fatalf("Record: %v", err)
	}
	snaps := a.Snapshot()

	rate, ok := a.Rate("weight")
	if !ok {
		t.Fatal("Rate should be available after two samples")
	}
	if rate != 2.0 {
		t.Errorf("Rate = %v, want 2.0", rate)
	}

	if len(snaps) != 2 {
		t.Fatalf("Snapshot returned %d channels, want 2", len(snaps))
	}
	rs := snaps[1]
	if rs.Name != "rate" || rs.Value != 2.0 || rs.Unit != "g/min" {
		t.Errorf("rate snapshot = %+v", rs)
	}
	if !rs.Time.Equal(t0.Add(30 * time.Second)) {
		t.Errorf("rate time = %v, want midpoint", rs.Time)
	}
	if rs.Text != "2.000" {
		t.Errorf("rate text = %q, want 4 significant digits", rs.Text)
	}
}

func TestAggregator_RateOffUnavailable(t *testing.T) {
	a := newScaleAggregator(t, RateOff)

	a.Record("weight", 10.0, "g", 1, t0)
	a.Snapshot()
	a.Record("weight", 12.0, "g", 1, t0.Add(time.Minute))
	snaps := a.Snapshot()

	if _, ok := a.Rate("weight"); ok {
		t.Error("Rate should be unavailable when off")
	}
	for _, s := range snaps {
		if s.Name == "rate" {
			t.Error("rate channel should not be reported when off")
		}
	}
}

func TestAggregator_SnapshotAveragesAndAutoClears(t *testing.T) {
	a := newScaleAggregator(t, RatePerSecond)

	a.Record("weight", 10, "g", 2, t0)
	a.Record("weight", 11, "g", 2, t0.Add(time.Second))
	a.Record("weight", 12, "g", 2, t0.Add(2*time.Second))
	snaps := a.Snapshot()

	if len(snaps) != 1 {
		t.Fatalf("Snapshot returned %d channels, want 1", len(snaps))
	}
	w := snaps[0]
	if w.Value != 11 || w.Count != 3 || w.Text != "11.00" {
		t.Errorf("weight snapshot = %+v", w)
	}
	if !w.Time.Equal(t0.Add(time.Second)) {
		t.Errorf("weight time = %v, want mean time", w.Time)
	}

	weight, _ := a.Channel("weight")
	if weight.Valid() {
		t.Error("weight should auto-clear after snapshot")
	}
}

func TestAggregator_RateAccumulates(t *testing.T) {
	a := newScaleAggregator(t, RatePerSecond)

	for i, v := range []float64{0, 1, 3} {
		a.Record("weight", v, "g", 0, t0.Add(time.Duration(i)*time.Second))
		a.Snapshot()
	}

	rate, _ := a.Channel("rate")
	if rate.Count() != 2 {
		t.Fatalf("rate Count = %d, want 2", rate.Count())
	}
	if rate.Mean() != 1.5 {
		t.Errorf("rate Mean = %v, want 1.5", rate.Mean())
	}
	if last, _ := a.Rate("weight"); last != 2 {
		t.Errorf("latest Rate = %v, want 2", last)
	}
}

func TestAggregator_EmptySnapshotKeepsHistory(t *testing.T) {
	a := newScaleAggregator(t, RatePerSecond)

	a.Record("weight", 5, "g", 0, t0)
	a.Snapshot()
	a.Snapshot()
	a.Record("weight", 7, "g", 0, t0.Add(2*time.Second))
	a.Snapshot()

	if rate, ok := a.Rate("weight"); !ok || rate != 1 {
		t.Errorf("Rate = %v, %v, want 1", rate, ok)
	}
}

func TestAggregator_ZeroElapsedUnavailable(t *testing.T) {
	a := newScaleAggregator(t, RatePerSecond)

	a.Record("weight", 5, "g", 0, t0)
	a.Snapshot()
	a.Record("weight", 7, "g", 0, t0)
	a.Snapshot()

	if _, ok := a.Rate("weight"); ok {
		t.Error("Rate should be unavailable for zero elapsed time")
	}
}

func TestAggregator_UnitChangeResetsRate(t *testing.T) {
	a := newScaleAggregator(t, RatePerSecond)

	a.Record("weight", 5, "g", 0, t0)
	a.Snapshot()
	a.Record("weight", 0.006, "kg", 3, t0.Add(time.Second))

	weight, _ := a.Channel("weight")
	if weight.Count() != 1 || weight.Unit() != "kg" {
		t.Errorf("weight Count=%d Unit=%s", weight.Count(), weight.Unit())
	}

	a.Snapshot()
	if _, ok := a.Rate("weight"); ok {
		t.Error("Rate across a unit change should be unavailable")
	}
}

func TestAggregator_SetRateUnitResets(t *testing.T) {
	a := newScaleAggregator(t, RatePerSecond)

	a.Record("weight", 5, "g", 0, t0)
	a.Snapshot()
	a.Record("weight", 7, "g", 0, t0.Add(time.Second))
	a.Snapshot()
	a.Record("weight", 8, "g", 0, t0.Add(2*time.Second))

	if a.SetRateUnit(RatePerSecond) {
		t.Error("SetRateUnit with the same unit should report no change")
	}
	if !a.SetRateUnit(RatePerMinute) {
		t.Fatal("SetRateUnit should report a change")
	}
	if a.RateUnit() != RatePerMinute {
		t.Errorf("RateUnit = %v", a.RateUnit())
	}
	if _, ok := a.Rate("weight"); ok {
		t.Error("Rate history should be cleared")
	}
	for _, r := range a.Channels() {
		if r.Valid() {
			t.Errorf("channel %s should be reset", r.Name)
		}
	}
}

func TestAggregator_ResetChannel(t *testing.T) {
	a := newScaleAggregator(t, RatePerSecond)

	a.Record("weight", 5, "g", 0, t0)
	a.Snapshot()
	if err := a.Reset("weight"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	a.Record("weight", 7, "g", 0, t0.Add(time.Second))
	a.Snapshot()
	if _, ok := a.Rate("weight"); ok {
		t.Error("Reset should drop rate history")
	}

	if err := a.Reset("volume"); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("Reset(volume) = %v, want ErrUnknownChannel", err)
	}
}

func TestAggregator_Errors(t *testing.T) {
	a := newScaleAggregator(t, RateOff)

	if err := a.Record("volume", 1, "ml", 0, t0); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("Record unknown = %v", err)
	}
	if _, err := a.AddChannel("weight", false); !errors.Is(err, ErrDuplicateChannel) {
		t.Errorf("AddChannel duplicate = %v", err)
	}
	if _, err := a.AddRate("volume", "flow", 4); !errors.Is(err, ErrUnknownChannel) {
		t.Errorf("AddRate unknown base = %v", err)
	}
	if _, ok := a.Rate("volume"); ok {
		t.Error("Rate of unknown channel should be unavailable")
	}
}

func TestAggregator_Summary(t *testing.T) {
	a := newScaleAggregator(t, RatePerSecond)
	a.Record("weight", 1.5, "g", 1, t0)

	want := "weight: 1.5 g (n=1, sd=0.0)\nrate: n/a"
	if got := a.Summary(); got != want {
		t.Errorf("Summary = %q, want %q", got, want)
	}
}
