// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package command

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/Thermoquad/libra/pkg/publish"
)

// ============================================================
// Test Helpers
// ============================================================

// device is a minimal state holder exercised through the handlers
type device struct {
	locked   bool
	logging  bool
	timezone int
	period   int
	mode     string
	saves    int
	failSave bool
}

func (d *device) apply(changed bool) (bool, error) {
	if !changed {
		return false, nil
	}
	if d.failSave {
		return false, errors.New("storage full")
	}
	d.saves++
	return true, nil
}

type recordingPublisher struct {
	records []publish.Record
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, rec publish.Record) error {
	p.records = append(p.records, rec)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

var testTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDispatcher(dev *device, pub publish.Publisher) *Dispatcher {
	logger, _ := logtest.NewNullLogger()
	d := NewDispatcher("libra", func() bool { return dev.locked }, pub, logger)
	d.SetClock(func() time.Time { return testTime })

	lock := Toggle([]string{"lock"}, func(_ context.Context, on bool) (bool, error) {
		changed := on != dev.locked
		dev.locked = on
		return dev.apply(changed)
	})
	lock.Unlocked = true

	d.Register(
		lock,
		Toggle([]string{"state-log"}, func(_ context.Context, on bool) (bool, error) {
			changed := on != dev.logging
			if changed && !dev.failSave {
				dev.logging = on
			}
			return dev.apply(changed)
		}),
		IntRange{
			Names:   []string{"timezone", "tz"},
			Min:     -12,
			Max:     14,
			Invalid: "invalid timezone",
			Apply: func(_ context.Context, tz int) (bool, error) {
				changed := tz != dev.timezone
				dev.timezone = tz
				return dev.apply(changed)
			},
		}.Handler(),
		IntRange{
			Names:    []string{"data-logging-period", "log-period"},
			Min:      0,
			Max:      86400,
			Keywords: map[string]int{"manual": 0},
			Units:    "s",
			Apply: func(_ context.Context, p int) (bool, error) {
				changed := p != dev.period
				dev.period = p
				return dev.apply(changed)
			},
		}.Handler(),
		Choice([]string{"calc-rate"}, []string{"off", "min"},
			func(s string) (string, bool) { return s, s == "off" || s == "min" },
			func(_ context.Context, m string) (bool, error) {
				changed := m != dev.mode
				dev.mode = m
				return dev.apply(changed)
			}),
		Action([]string{"reset-data"}, func(context.Context) error { return nil }),
	)
	return d
}

// ============================================================
// Tokenizer Tests
// ============================================================

func TestCommand_TokenizeRoundTrip(t *testing.T) {
	c := New("data-logging-period 30 nightly run")
	c.AssignVariable()
	c.AssignValue()
	c.AssignNotes()

	if c.Variable != "data-logging-period" {
		t.Errorf("Variable = %q", c.Variable)
	}
	if c.Value != "30" {
		t.Errorf("Value = %q", c.Value)
	}
	if c.Notes != "nightly run" {
		t.Errorf("Notes = %q", c.Notes)
	}
	if c.Remainder() != "" {
		t.Errorf("Remainder = %q, want empty", c.Remainder())
	}
	if c.Truncated {
		t.Error("Nothing should be truncated")
	}
}

func TestCommand_Tokenize(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		variable  string
		value     string
		units     string
		remainder string
	}{
		{"empty", "", "", "", "", ""},
		{"variable only", "reset-data", "reset-data", "", "", ""},
		{"with units", "read-period 5 s extra", "read-period", "5", "s", "extra"},
		{"single space split", "lock  on", "lock", "", "on", ""},
		{"trailing space", "lock on ", "lock", "on", "", ""},
		{"line ending", "calc-rate min\r\n", "calc-rate", "min", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.raw)
			c.AssignVariable()
			c.AssignValue()
			c.AssignUnits()
			if c.Variable != tt.variable || c.Value != tt.value || c.Units != tt.units {
				t.Errorf("got (%q, %q, %q), want (%q, %q, %q)",
					c.Variable, c.Value, c.Units, tt.variable, tt.value, tt.units)
			}
			if c.Remainder() != tt.remainder {
				t.Errorf("Remainder = %q, want %q", c.Remainder(), tt.remainder)
			}
		})
	}
}

func TestCommand_Bounds(t *testing.T) {
	c := New(strings.Repeat("v", 30) + " " + strings.Repeat("1", 25))
	c.AssignVariable()
	c.AssignValue()

	if len(c.Variable) != MaxVariableLength {
		t.Errorf("Variable length = %d, want %d", len(c.Variable), MaxVariableLength)
	}
	if len(c.Value) != MaxValueLength {
		t.Errorf("Value length = %d, want %d", len(c.Value), MaxValueLength)
	}
	if !c.Truncated {
		t.Error("Truncated should be set")
	}

	long := New(strings.Repeat("x", 100))
	if len(long.Raw) != MaxCommandLength || !long.Truncated {
		t.Errorf("Raw length = %d truncated=%v", len(long.Raw), long.Truncated)
	}
}

func TestCommand_BoundsKeepUTF8(t *testing.T) {
	c := New(strings.Repeat("ü", 40))
	if len(c.Raw) > MaxCommandLength {
		t.Fatalf("Raw length = %d", len(c.Raw))
	}
	if strings.ContainsRune(c.Raw, '�') || len(c.Raw)%2 != 0 {
		t.Errorf("Raw cut inside a rune: %q", c.Raw)
	}
}

// ============================================================
// Outcome Tests
// ============================================================

func TestCommand_Outcomes(t *testing.T) {
	c := New("lock on")
	c.AssignVariable()
	c.Finalize()
	if c.ReturnCode != CodeUnknown || c.Type != publish.TypeError {
		t.Errorf("unresolved: code=%v type=%q", c.ReturnCode, c.Type)
	}
	if c.Message != TextUnknown || c.Notes != "lock on" {
		t.Errorf("unresolved: message=%q notes=%q", c.Message, c.Notes)
	}

	c = New("lock on")
	c.Success(false)
	if c.ReturnCode != CodeWarning || c.Type != publish.TypeStateUnchanged || c.Message != TextNoChange {
		t.Errorf("unchanged: code=%v type=%q message=%q", c.ReturnCode, c.Type, c.Message)
	}

	c = New("lock on")
	c.Success(true)
	if c.ReturnCode != CodeSuccess || c.Type != publish.TypeStateChanged {
		t.Errorf("changed: code=%v type=%q", c.ReturnCode, c.Type)
	}
}

func TestReturnCode_Classes(t *testing.T) {
	if !CodeLocked.IsError() || CodeLocked.IsWarning() {
		t.Error("CodeLocked should be an error")
	}
	if !CodeWarning.IsWarning() || CodeWarning.IsError() {
		t.Error("CodeWarning should be a warning")
	}
	if CodeSuccess.IsError() || CodeSuccess.IsWarning() {
		t.Error("CodeSuccess should be neither")
	}
	if CodeInvalidValue.String() != "invalid value" || ReturnCode(7).String() != "code 7" {
		t.Error("unexpected String()")
	}
}

// ============================================================
// Dispatcher Tests
// ============================================================

func TestDispatch_StateChange(t *testing.T) {
	dev := &device{}
	pub := &recordingPublisher{}
	d := newTestDispatcher(dev, pub)

	code, rec := d.Dispatch(context.Background(), "state-log on checking")
	if code != CodeSuccess {
		t.Fatalf("code = %v, want success", code)
	}
	if !dev.logging || dev.saves != 1 {
		t.Errorf("logging=%v saves=%d", dev.logging, dev.saves)
	}
	if rec.Device != "libra" || rec.Type != publish.TypeStateChanged || rec.Notes != "checking" {
		t.Errorf("record = %+v", rec)
	}
	if len(rec.Data) != 1 || rec.Data[0] != (publish.Datum{Key: "state-log", Value: "on"}) {
		t.Errorf("record data = %+v", rec.Data)
	}
	if !rec.Time.Equal(testTime) {
		t.Errorf("record time = %v", rec.Time)
	}
	if len(pub.records) != 1 {
		t.Errorf("published %d records, want 1", len(pub.records))
	}
}

func TestDispatch_NoChangeWarnsWithoutSaving(t *testing.T) {
	tests := []string{"state-log off", "timezone 0", "tz 0", "data-logging-period manual", "lock off"}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			dev := &device{}
			d := newTestDispatcher(dev, nil)

			code, rec := d.Dispatch(context.Background(), raw)
			if code != CodeWarning {
				t.Errorf("code = %v, want warning", code)
			}
			if rec.Type != publish.TypeStateUnchanged {
				t.Errorf("type = %q", rec.Type)
			}
			if dev.saves != 0 {
				t.Errorf("saves = %d, want 0", dev.saves)
			}
		})
	}
}

func TestDispatch_Locked(t *testing.T) {
	tests := []string{"state-log on", "timezone 3", "calc-rate min", "reset-data", "frobnicate", ""}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			dev := &device{locked: true}
			d := newTestDispatcher(dev, nil)

			code, rec := d.Dispatch(context.Background(), raw)
			if code != CodeLocked {
				t.Errorf("code = %v, want locked", code)
			}
			if rec.Message != TextLocked || rec.Type != publish.TypeError {
				t.Errorf("record = %+v", rec)
			}
			if dev.logging || dev.timezone != 0 || dev.mode != "" || dev.saves != 0 {
				t.Errorf("locked device changed: %+v", dev)
			}
		})
	}
}

func TestDispatch_UnlockWhileLocked(t *testing.T) {
	dev := &device{locked: true}
	d := newTestDispatcher(dev, nil)

	code, _ := d.Dispatch(context.Background(), "lock off end of run")
	if code != CodeSuccess {
		t.Fatalf("code = %v, want success", code)
	}
	if dev.locked {
		t.Error("device should be unlocked")
	}

	if code, _ := d.Dispatch(context.Background(), "timezone 3"); code != CodeSuccess {
		t.Errorf("after unlock code = %v, want success", code)
	}
}

func TestDispatch_InvalidValues(t *testing.T) {
	tests := []struct {
		raw     string
		message string
	}{
		{"timezone -13", "invalid timezone"},
		{"tz 15", "invalid timezone"},
		{"timezone east", "invalid timezone"},
		{"lock maybe", TextInvalidValue},
		{"state-log", TextInvalidValue},
		{"data-logging-period -1", TextInvalidValue},
		{"data-logging-period 86401", TextInvalidValue},
		{"calc-rate fortnight", TextInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			dev := &device{}
			d := newTestDispatcher(dev, nil)

			code, rec := d.Dispatch(context.Background(), tt.raw)
			if code != CodeInvalidValue {
				t.Errorf("code = %v, want invalid value", code)
			}
			if rec.Message != tt.message {
				t.Errorf("message = %q, want %q", rec.Message, tt.message)
			}
			if rec.Notes != tt.raw {
				t.Errorf("notes = %q, want the whole command", rec.Notes)
			}
			if dev.saves != 0 || dev.timezone != 0 || dev.period != 0 {
				t.Errorf("invalid value applied: %+v", dev)
			}
		})
	}
}

func TestDispatch_UnknownCommand(t *testing.T) {
	d := newTestDispatcher(&device{}, nil)

	for _, raw := range []string{"frobnicate", "Lock on", "", "locks on"} {
		if code, _ := d.Dispatch(context.Background(), raw); code != CodeUnknown {
			t.Errorf("%q: code = %v, want unknown", raw, code)
		}
	}
}

func TestDispatch_Units(t *testing.T) {
	dev := &device{}
	d := newTestDispatcher(dev, nil)

	code, rec := d.Dispatch(context.Background(), "log-period 30 nightly run")
	if code != CodeSuccess || dev.period != 30 {
		t.Fatalf("code=%v period=%d", code, dev.period)
	}
	if rec.Data[0] != (publish.Datum{Key: "log-period", Value: "30", Unit: "s"}) {
		t.Errorf("data = %+v", rec.Data[0])
	}
	if rec.Notes != "nightly run" {
		t.Errorf("notes = %q", rec.Notes)
	}
}

func TestDispatch_ExplicitUnit(t *testing.T) {
	dev := &device{}
	d := newTestDispatcher(dev, nil)

	code, rec := d.Dispatch(context.Background(), "data-logging-period 45 s after lunch")
	if code != CodeSuccess || dev.period != 45 {
		t.Fatalf("code=%v period=%d", code, dev.period)
	}
	if rec.Data[0].Unit != "s" {
		t.Errorf("unit = %q", rec.Data[0].Unit)
	}
	if rec.Notes != "after lunch" {
		t.Errorf("notes = %q", rec.Notes)
	}
}

func TestDispatch_TruncatedValueRejected(t *testing.T) {
	tests := []string{
		"data-logging-period 00000000000000000120",
		"timezone 000000000000000000000001",
		"state-log onnnnnnnnnnnnnnnnnnnnnnnnn",
		"calc-rate minnnnnnnnnnnnnnnnnnnnnnn",
		"log-period " + strings.Repeat("0", 80),
	}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			dev := &device{}
			d := newTestDispatcher(dev, nil)

			code, rec := d.Dispatch(context.Background(), raw)
			if code != CodeInvalidValue {
				t.Errorf("code = %v, want invalid value", code)
			}
			if rec.Message != TextTooLong {
				t.Errorf("message = %q, want %q", rec.Message, TextTooLong)
			}
			if dev.saves != 0 || dev.period != 0 || dev.timezone != 0 || dev.logging {
				t.Errorf("truncated value applied: %+v", dev)
			}
		})
	}
}

func TestCommand_ValueTruncated(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"read-period 60", false},
		{"read-period " + strings.Repeat("9", MaxValueLength), false},
		{"read-period " + strings.Repeat("9", MaxValueLength+1), true},
		{"read-period 6 " + strings.Repeat("n", 80), false},
		// raw text cut at its bound inside the value
		{strings.Repeat("r", 60) + " 12345", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			c := New(tt.raw)
			c.AssignVariable()
			c.AssignValue()
			if c.ValueTruncated() != tt.want {
				t.Errorf("ValueTruncated = %v, want %v (value %q)", c.ValueTruncated(), tt.want, c.Value)
			}
		})
	}
}

func TestDispatch_ApplyFailure(t *testing.T) {
	dev := &device{failSave: true}
	d := newTestDispatcher(dev, nil)

	code, rec := d.Dispatch(context.Background(), "state-log on")
	if code != CodeError {
		t.Errorf("code = %v, want error", code)
	}
	if !strings.Contains(rec.Message, "storage full") {
		t.Errorf("message = %q", rec.Message)
	}
}

func TestDispatch_Action(t *testing.T) {
	d := newTestDispatcher(&device{}, nil)
	code, rec := d.Dispatch(context.Background(), "reset-data")
	if code != CodeSuccess || rec.Type != publish.TypeStateChanged {
		t.Errorf("code=%v type=%q", code, rec.Type)
	}
}

func TestDispatch_ObserversBeforePublish(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("offline")}
	d := newTestDispatcher(&device{}, pub)

	var order []string
	d.OnCommand(func(c *Command, rec publish.Record) {
		if len(pub.records) != 0 {
			t.Error("observer should run before publishing")
		}
		order = append(order, "observer:"+c.Variable)
	})
	var publishErr error
	d.OnPublishError(func(err error) { publishErr = err })

	code, _ := d.Dispatch(context.Background(), "calc-rate min")
	if code != CodeSuccess {
		t.Errorf("publish failure changed code to %v", code)
	}
	if len(order) != 1 || order[0] != "observer:calc-rate" {
		t.Errorf("observers = %v", order)
	}
	if publishErr == nil {
		t.Error("publish error should be reported")
	}
}

func TestHandlers_Usage(t *testing.T) {
	d := newTestDispatcher(&device{}, nil)
	want := []string{
		"lock on|off",
		"state-log on|off",
		"timezone <-12..14>",
		"data-logging-period <0..86400>|manual",
		"calc-rate off|min",
		"reset-data",
	}
	handlers := d.Handlers()
	if len(handlers) != len(want) {
		t.Fatalf("%d handlers, want %d", len(handlers), len(want))
	}
	for i, h := range handlers {
		if h.Usage != want[i] {
			t.Errorf("handler %d usage = %q, want %q", i, h.Usage, want[i])
		}
	}
}

// ============================================================
// Fuzz Tests
// ============================================================

func TestFuzzDispatch_RandomCommands(t *testing.T) {
	rounds := 1000
	if env := os.Getenv("FUZZ_ROUNDS"); env != "" {
		if n, err := strconv.Atoi(env); err == nil && n > 0 {
			rounds = n
		}
	}
	seed := time.Now().UnixNano()
	if env := os.Getenv("FUZZ_SEED"); env != "" {
		if s, err := strconv.ParseInt(env, 10, 64); err == nil {
			seed = s
		}
	}
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	rng := rand.New(rand.NewSource(seed))

	words := []string{"lock", "on", "off", "tz", "timezone", "state-log", "calc-rate", "min", "-3", "99", " ", "manual"}
	for i := 0; i < rounds; i++ {
		dev := &device{locked: rng.Intn(2) == 0}
		d := newTestDispatcher(dev, nil)

		var parts []string
		for n := rng.Intn(8); n > 0; n-- {
			if rng.Intn(4) == 0 {
				b := make([]byte, rng.Intn(30))
				rng.Read(b)
				parts = append(parts, string(b))
			} else {
				parts = append(parts, words[rng.Intn(len(words))])
			}
		}
		raw := strings.Join(parts, " ")

		code, rec := d.Dispatch(context.Background(), raw)
		if code == CodeUndefined || rec.Type == publish.TypeUndefined {
			t.Fatalf("round %d: %q left undefined", i, raw)
		}
		if dev.timezone < -12 || dev.timezone > 14 {
			t.Fatalf("round %d: %q applied timezone %d", i, raw, dev.timezone)
		}
		if len(rec.Notes) > MaxNotesLength {
			t.Fatalf("round %d: notes length %d", i, len(rec.Notes))
		}
	}
}
