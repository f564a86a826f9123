// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/libra/pkg/aggregate"
	"github.com/Thermoquad/libra/pkg/command"
	"github.com/Thermoquad/libra/pkg/metrics"
	"github.com/Thermoquad/libra/pkg/publish"
	"github.com/Thermoquad/libra/pkg/scale"
	"github.com/Thermoquad/libra/pkg/state"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// recorder keeps every published record
type recorder struct {
	mu      sync.Mutex
	records []publish.Record
}

func (r *recorder) Publish(_ context.Context, rec publish.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) ofType(typ string) []publish.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []publish.Record
	for _, rec := range r.records {
		if rec.Type == typ {
			out = append(out, rec)
		}
	}
	return out
}

// brokenStore loads nothing and fails every save
type brokenStore struct{}

func (brokenStore) Load(context.Context, string) (state.State, bool, error) {
	return state.State{}, false, nil
}

func (brokenStore) Save(context.Context, string, state.State) error {
	return errors.New("flash write failed")
}

func (brokenStore) Close() error { return nil }

type fixture struct {
	c     *Controller
	store *state.MemoryStore
	pub   *recorder
	clock *ManualClock
	hook  *logtest.Hook
	link  *bytes.Buffer
}

func newFixture(t *testing.T, cfg Config, opts ...Option) *fixture {
	t.Helper()
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	f := &fixture{
		store: state.NewMemoryStore(),
		pub:   &recorder{},
		clock: NewManualClock(epoch),
		hook:  hook,
		link:  &bytes.Buffer{},
	}
	opts = append([]Option{WithClock(f.clock), WithLink(f.link)}, opts...)
	c, err := New(cfg, NewScaleProfile(), f.store, f.pub, log, opts...)
	require.NoError(t, err)
	f.c = c
	return f
}

func (f *fixture) init(t *testing.T) {
	t.Helper()
	require.NoError(t, f.c.Init(context.Background()))
}

func (f *fixture) dispatch(t *testing.T, raw string) (command.ReturnCode, publish.Record) {
	t.Helper()
	return f.c.Dispatch(context.Background(), raw)
}

func (f *fixture) feed(value float64, decimals int) {
	f.c.Feed(context.Background(), scale.MustEncodeFrame(value, decimals, scale.UnitGram, true))
}

func (f *fixture) requests() int {
	return bytes.Count(f.link.Bytes(), scale.DataRequest)
}

func hasMessage(hook *logtest.Hook, substr string) bool {
	for _, e := range hook.AllEntries() {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func datum(rec publish.Record, key string) (publish.Datum, bool) {
	for _, d := range rec.Data {
		if d.Key == key {
			return d, true
		}
	}
	return publish.Datum{}, false
}

// ============================================================================
// Startup
// ============================================================================

func TestInit_EmptyStoreSavesDefaultsOnce(t *testing.T) {
	f := newFixture(t, Config{})
	f.init(t)

	assert.Equal(t, state.Defaults(), f.c.State())
	assert.Equal(t, 1, f.store.Saves())
	assert.False(t, f.c.WasReset())
}

func TestInit_RestoresStoredState(t *testing.T) {
	f := newFixture(t, Config{})
	saved := state.Defaults()
	saved.Locked = true
	saved.CalcRate = aggregate.RatePerHour
	saved.Timezone = 3
	require.NoError(t, f.store.Save(context.Background(), state.DefaultSlot, saved))

	f.init(t)

	assert.Equal(t, saved, f.c.State())
	assert.Equal(t, aggregate.RatePerHour, f.c.Aggregator().RateUnit())
	assert.Equal(t, 1, f.store.Saves())
}

func TestInit_VersionMismatchFallsBackToDefaults(t *testing.T) {
	f := newFixture(t, Config{})
	old, err := cbor.Marshal(map[int]interface{}{0: state.SchemaVersion - 1, 1: true})
	require.NoError(t, err)
	f.store.Put(state.DefaultSlot, old)

	f.init(t)

	assert.Equal(t, state.Defaults(), f.c.State())
	assert.Equal(t, 1, f.store.Saves())
	assert.True(t, hasMessage(f.hook, "found version 3"))
}

func TestInit_ResetSkipsRestore(t *testing.T) {
	f := newFixture(t, Config{Reset: true})
	saved := state.Defaults()
	saved.Locked = true
	data, err := state.Encode(saved)
	require.NoError(t, err)
	f.store.Put(state.DefaultSlot, data)

	f.init(t)

	assert.True(t, f.c.WasReset())
	assert.False(t, f.c.State().Locked)
	assert.Zero(t, f.store.Saves())
	assert.True(t, hasMessage(f.hook, "reset request detected"))
}

func TestInit_ResetDetector(t *testing.T) {
	f := newFixture(t, Config{}, WithResetDetector(func() bool { return true }))
	f.init(t)
	assert.True(t, f.c.WasReset())
}

// ============================================================================
// Commands
// ============================================================================

func TestDispatch_LockGate(t *testing.T) {
	f := newFixture(t, Config{})
	f.init(t)
	saves := f.store.Saves()

	code, rec := f.dispatch(t, "lock on")
	assert.Equal(t, command.CodeSuccess, code)
	assert.Equal(t, publish.TypeStateChanged, rec.Type)
	assert.Equal(t, saves+1, f.store.Saves())

	code, rec = f.dispatch(t, "data-log on")
	assert.Equal(t, command.CodeLocked, code)
	assert.Equal(t, publish.TypeError, rec.Type)
	assert.Equal(t, command.TextLocked, rec.Message)
	assert.Equal(t, "data-log on", rec.Notes)
	assert.False(t, f.c.State().DataLogging)

	code, _ = f.dispatch(t, "lock on")
	assert.Equal(t, command.CodeWarning, code)
	assert.Equal(t, saves+1, f.store.Saves())

	code, _ = f.dispatch(t, "lock off")
	assert.Equal(t, command.CodeSuccess, code)
	assert.Equal(t, saves+2, f.store.Saves())

	code, _ = f.dispatch(t, "data-log on")
	assert.Equal(t, command.CodeSuccess, code)
	assert.True(t, f.c.State().DataLogging)
}

func TestDispatch_UnknownWhileLockedIsLocked(t *testing.T) {
	f := newFixture(t, Config{})
	f.init(t)
	f.dispatch(t, "lock on")

	code, _ := f.dispatch(t, "frobnicate")
	assert.Equal(t, command.CodeLocked, code)
}

func TestDispatch_NoChangeIsWarning(t *testing.T) {
	f := newFixture(t, Config{})
	f.init(t)
	saves := f.store.Saves()

	code, rec := f.dispatch(t, "state-log off")
	assert.Equal(t, command.CodeWarning, code)
	assert.Equal(t, publish.TypeStateUnchanged, rec.Type)
	assert.Equal(t, command.TextNoChange, rec.Message)
	assert.Equal(t, saves, f.store.Saves())
	assert.True(t, hasMessage(f.hook, "state logging already off"))
}

func TestDispatch_Validation(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		code    command.ReturnCode
		message string
	}{
		{"timezone above range", "tz 15", command.CodeInvalidValue, "invalid timezone"},
		{"timezone below range", "timezone -13", command.CodeInvalidValue, "invalid timezone"},
		{"period not a number", "log-period soon", command.CodeInvalidValue, command.TextInvalidValue},
		{"period above range", "data-logging-period 86401", command.CodeInvalidValue, command.TextInvalidValue},
		{"unknown rate", "calc-rate weekly", command.CodeInvalidValue, command.TextInvalidValue},
		{"bad switch", "data-log maybe", command.CodeInvalidValue, command.TextInvalidValue},
		{"read period zero", "read-period 0", command.CodeInvalidValue, command.TextInvalidValue},
		{"unknown command", "tare", command.CodeUnknown, command.TextUnknown},
		{"manual already set", "log-period manual", command.CodeWarning, command.TextNoChange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			f.init(t)
			saves := f.store.Saves()

			code, rec := f.dispatch(t, tt.raw)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.message, rec.Message)
			assert.Equal(t, saves, f.store.Saves())
			assert.Equal(t, state.Defaults(), f.c.State())
		})
	}
}

func TestDispatch_OverlongValueRejected(t *testing.T) {
	for _, raw := range []string{
		"data-logging-period 00000000000000000120",
		"read-period 00000000000000000060",
		"tz -0000000000000000000005",
	} {
		t.Run(raw, func(t *testing.T) {
			f := newFixture(t, Config{})
			f.init(t)
			saves := f.store.Saves()

			code, rec := f.dispatch(t, raw)
			assert.Equal(t, command.CodeInvalidValue, code)
			assert.Equal(t, command.TextTooLong, rec.Message)
			assert.Equal(t, saves, f.store.Saves())
			assert.Equal(t, state.Defaults(), f.c.State())
		})
	}
}

func TestDispatch_ExplicitUnit(t *testing.T) {
	f := newFixture(t, Config{})
	f.init(t)

	code, rec := f.dispatch(t, "read-period 5 s")
	require.Equal(t, command.CodeSuccess, code)
	assert.Equal(t, 5, f.c.State().ReadPeriod)
	require.Len(t, rec.Data, 1)
	assert.Equal(t, "s", rec.Data[0].Unit)
	assert.Empty(t, rec.Notes)
}

func TestDispatch_ChangesState(t *testing.T) {
	f := newFixture(t, Config{})
	f.init(t)

	for _, raw := range []string{"tz -5", "log-period 60", "calc-rate min", "read-period 10", "state-log on"} {
		code, _ := f.dispatch(t, raw)
		require.Equal(t, command.CodeSuccess, code, raw)
	}

	s := f.c.State()
	assert.Equal(t, -5, s.Timezone)
	assert.Equal(t, 60, s.DataLoggingPeriod)
	assert.Equal(t, aggregate.RatePerMinute, s.CalcRate)
	assert.Equal(t, 10, s.ReadPeriod)
	assert.True(t, s.StateLogging)

	restored, found, err := f.store.Load(context.Background(), state.DefaultSlot)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, s, restored)
}

func TestDispatch_UnitsInRecord(t *testing.T) {
	f := newFixture(t, Config{})
	f.init(t)

	_, rec := f.dispatch(t, "log-period 30 every half minute")
	require.Len(t, rec.Data, 1)
	assert.Equal(t, publish.Datum{Key: "log-period", Value: "30", Unit: "s"}, rec.Data[0])
	assert.Equal(t, "every half minute", rec.Notes)
}

func TestDispatch_SaveFailureKeepsState(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	c, err := New(Config{}, NewScaleProfile(), brokenStore{}, nil, log, WithClock(NewManualClock(epoch)))
	require.NoError(t, err)
	// defaults cannot be saved either
	require.Error(t, c.Init(context.Background()))

	code, rec := c.Dispatch(context.Background(), "lock on")
	assert.Equal(t, command.CodeError, code)
	assert.True(t, strings.HasPrefix(rec.Message, command.TextError+": save state"))
	assert.False(t, c.State().Locked)
}

func TestDispatch_EveryCommandPublished(t *testing.T) {
	f := newFixture(t, Config{Name: "bench-1"})
	f.init(t)

	f.dispatch(t, "lock on")
	f.dispatch(t, "lock on")
	f.dispatch(t, "nonsense")

	assert.Len(t, f.pub.ofType(publish.TypeStateChanged), 1)
	assert.Len(t, f.pub.ofType(publish.TypeStateUnchanged), 1)
	errs := f.pub.ofType(publish.TypeError)
	require.Len(t, errs, 1)
	assert.Equal(t, "bench-1", errs[0].Device)
}

// ============================================================================
// State logging and reports
// ============================================================================

func TestStateLogging_PublishesReport(t *testing.T) {
	f := newFixture(t, Config{})
	f.init(t)

	var reports []Report
	f.c.OnReport(func(r Report) { reports = append(reports, r) })

	f.dispatch(t, "tz 1")
	assert.Empty(t, f.pub.ofType(publish.TypeState))
	require.Len(t, reports, 1)

	f.dispatch(t, "state-log on")
	f.dispatch(t, "tz 2")

	states := f.pub.ofType(publish.TypeState)
	require.Len(t, states, 2)
	tz, ok := datum(states[1], "tz")
	require.True(t, ok)
	assert.Equal(t, "2", tz.Value)
	assert.Equal(t, "ready, logging stopped", states[1].Message)
	assert.Len(t, reports, 3)
}

func TestInfoStrings(t *testing.T) {
	assert.Equal(t, Info{Short: "LOCK", Long: "locked"}, LockedInfo(true))
	assert.Equal(t, Info{Short: "", Long: "ready"}, LockedInfo(false))
	assert.Equal(t, Info{Short: "logging", Long: "logging started"}, LoggingInfo(true))
	assert.Equal(t, Info{Short: "no log", Long: "logging stopped"}, LoggingInfo(false))
}

func TestReport(t *testing.T) {
	f := newFixture(t, Config{Name: "bench-2"})
	f.init(t)
	f.dispatch(t, "tz 2")
	f.dispatch(t, "log-period 60")
	f.feed(12.5, 2)

	r := f.c.Report()
	assert.Equal(t, "bench-2", r.Device)
	assert.Equal(t, "scale", r.Kind)
	assert.Equal(t, "off", r.CalcRate)
	assert.Equal(t, 14, r.Time.Hour())
	assert.Equal(t, uint64(1), r.Decoder.ValidFrames)

	require.Len(t, r.Readings, 2)
	assert.Equal(t, ReadingReport{Name: ChannelWeight, Value: "12.50", Unit: "g", Count: 1, Valid: true}, r.Readings[0])
	assert.Equal(t, ChannelRate, r.Readings[1].Name)
	assert.False(t, r.Readings[1].Valid)
	assert.Equal(t, "n/a", r.Readings[1].Value)

	rec := r.Record()
	assert.Equal(t, publish.TypeState, rec.Type)
	period, ok := datum(rec, "log-period")
	require.True(t, ok)
	assert.Equal(t, publish.Datum{Key: "log-period", Value: "60", Unit: "s"}, period)
}

// ============================================================================
// Frames and data logging
// ============================================================================

func TestFeed_ManualModeLogsEveryFrame(t *testing.T) {
	f := newFixture(t, Config{})
	f.init(t)
	f.dispatch(t, "data-log on")

	var seen []publish.Record
	f.c.OnData(func(rec publish.Record) { seen = append(seen, rec) })

	f.feed(12.5, 2)
	f.feed(13, 2)

	data := f.pub.ofType(publish.TypeData)
	require.Len(t, data, 2)
	assert.Len(t, seen, 2)
	assert.Equal(t, []publish.Datum{{Key: ChannelWeight, Value: "12.50", Unit: "g", N: 1}}, data[0].Data)
	assert.Equal(t, []publish.Datum{{Key: ChannelWeight, Value: "13.00", Unit: "g", N: 1}}, data[1].Data)
	assert.Zero(t, f.requests())
}

func TestFeed_DataLogOffStillObserved(t *testing.T) {
	f := newFixture(t, Config{})
	f.init(t)

	var seen int
	f.c.OnData(func(publish.Record) { seen++ })
	f.feed(1, 0)

	assert.Equal(t, 1, seen)
	assert.Empty(t, f.pub.ofType(publish.TypeData))
}

func TestFeed_DecodeErrorCounted(t *testing.T) {
	f := newFixture(t, Config{})
	f.init(t)

	f.c.Feed(context.Background(), []byte{0x01})
	f.c.Feed(context.Background(), []byte("garbage\r\n"))
	f.feed(5, 1)

	stats := f.c.Statistics()
	assert.Equal(t, uint64(1), stats.DecodeErrors)
	assert.Equal(t, uint64(1), stats.ValidFrames)
	require.NotNil(t, f.c.LastFrame())
	assert.Equal(t, 5.0, f.c.LastFrame().Value())
}

func TestUpdate_PeriodicLogging(t *testing.T) {
	f := newFixture(t, Config{})
	f.init(t)
	f.dispatch(t, "log-period 10")
	f.dispatch(t, "data-log on")
	ctx := context.Background()

	f.c.Update(ctx)
	assert.Equal(t, 1, f.requests())

	f.clock.Advance(500 * time.Millisecond)
	f.c.Update(ctx)
	assert.Equal(t, 1, f.requests())

	f.clock.Advance(500 * time.Millisecond)
	f.c.Update(ctx)
	assert.Equal(t, 2, f.requests())

	f.feed(10, 2)
	f.feed(12, 2)
	assert.Empty(t, f.pub.ofType(publish.TypeData))

	f.clock.Advance(9 * time.Second)
	f.c.Update(ctx)

	data := f.pub.ofType(publish.TypeData)
	require.Len(t, data, 1)
	weight, ok := datum(data[0], ChannelWeight)
	require.True(t, ok)
	assert.Equal(t, publish.Datum{Key: ChannelWeight, Value: "11.00", Unit: "g", N: 2, SD: "1.41"}, weight)

	// weight auto-clears after the log
	w, _ := f.c.Aggregator().Channel(ChannelWeight)
	assert.False(t, w.Valid())
}

func TestUpdate_RateAfterTwoLogs(t *testing.T) {
	f := newFixture(t, Config{})
	f.init(t)
	f.dispatch(t, "log-period 60")
	f.dispatch(t, "calc-rate min")
	f.dispatch(t, "data-log on")
	ctx := context.Background()

	f.feed(10, 2)
	f.clock.Advance(time.Minute)
	f.c.Update(ctx)

	f.feed(12, 2)
	f.clock.Advance(time.Minute)
	f.c.Update(ctx)

	data := f.pub.ofType(publish.TypeData)
	require.Len(t, data, 2)
	_, ok := datum(data[0], ChannelRate)
	assert.False(t, ok)
	rate, ok := datum(data[1], ChannelRate)
	require.True(t, ok)
	assert.Equal(t, "2.000", rate.Value)
	assert.Equal(t, "g/min", rate.Unit)
}

func TestUpdate_ManualModeSendsNoRequests(t *testing.T) {
	f := newFixture(t, Config{})
	f.init(t)

	for i := 0; i < 5; i++ {
		f.c.Update(context.Background())
		f.clock.Advance(time.Second)
	}
	assert.Zero(t, f.requests())
}

func TestUpdate_BackoffAfterDecodeError(t *testing.T) {
	f := newFixture(t, Config{ErrorBackoff: 2 * time.Second})
	f.init(t)
	f.dispatch(t, "log-period 60")
	ctx := context.Background()

	f.c.Update(ctx)
	require.Equal(t, 1, f.requests())

	f.c.Feed(ctx, []byte{0x01})

	f.clock.Advance(time.Second)
	f.c.Update(ctx)
	assert.Equal(t, 1, f.requests())

	f.clock.Advance(time.Second)
	f.c.Update(ctx)
	assert.Equal(t, 2, f.requests())
}

func TestCalcRateChangeResetsReadings(t *testing.T) {
	f := newFixture(t, Config{})
	f.init(t)
	f.dispatch(t, "log-period 60")
	f.feed(10, 2)

	w, _ := f.c.Aggregator().Channel(ChannelWeight)
	require.True(t, w.Valid())

	code, _ := f.dispatch(t, "calc-rate hr")
	require.Equal(t, command.CodeSuccess, code)
	assert.False(t, w.Valid())
	assert.Equal(t, aggregate.RatePerHour, f.c.Aggregator().RateUnit())
}

func TestResetData(t *testing.T) {
	f := newFixture(t, Config{})
	f.init(t)
	f.dispatch(t, "log-period 60")
	f.feed(10, 2)
	saves := f.store.Saves()

	code, rec := f.dispatch(t, "reset-data")
	assert.Equal(t, command.CodeSuccess, code)
	assert.Equal(t, publish.TypeStateChanged, rec.Type)
	assert.Equal(t, saves, f.store.Saves())

	w, _ := f.c.Aggregator().Channel(ChannelWeight)
	assert.False(t, w.Valid())
	assert.Zero(t, f.c.Statistics().ValidFrames)

	require.True(t, hasMessage(f.hook, "discarding readings"))
	for _, e := range f.hook.AllEntries() {
		if e.Message == "discarding readings" {
			assert.Contains(t, e.Data["readings"], "weight: 10.00")
		}
	}
}

// ============================================================================
// Identity and metrics
// ============================================================================

func TestSetName(t *testing.T) {
	f := newFixture(t, Config{})
	f.init(t)

	var names []string
	f.c.OnName(func(n string) { names = append(names, n) })

	f.c.SetName("bench-9")
	f.c.SetName("bench-9")
	f.c.SetName("")

	assert.Equal(t, []string{"bench-9"}, names)
	_, rec := f.dispatch(t, "lock on")
	assert.Equal(t, "bench-9", rec.Device)
}

func TestMetrics(t *testing.T) {
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	f := newFixture(t, Config{}, WithMetrics(m))
	f.init(t)

	f.dispatch(t, "lock on")
	f.dispatch(t, "lock on")
	f.feed(1, 0)
	f.c.Feed(context.Background(), []byte{0x01})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StateSaves))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commands.WithLabelValues("warning")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Frames))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodeErrors.WithLabelValues("unexpected_byte")))
}

// ============================================================================
// Run loop
// ============================================================================

func startRun(t *testing.T, c *Controller) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	})
	return ctx
}

func TestRun_SubmitAndReport(t *testing.T) {
	f := newFixture(t, Config{TickInterval: 5 * time.Millisecond})
	f.init(t)
	ctx := startRun(t, f.c)

	reply, err := f.c.Submit(ctx, "lock on")
	require.NoError(t, err)
	assert.Equal(t, command.CodeSuccess, reply.Code)
	assert.Equal(t, "success", reply.Outcome)

	r, err := f.c.CurrentReport(ctx)
	require.NoError(t, err)
	assert.True(t, r.State.Locked)
	assert.Equal(t, "LOCK", r.Lock.Short)
}

func TestRun_ReadFrom(t *testing.T) {
	f := newFixture(t, Config{TickInterval: 5 * time.Millisecond})
	f.init(t)
	ctx := startRun(t, f.c)

	stream := append(scale.MustEncodeFrame(1.5, 1, scale.UnitGram, true),
		scale.MustEncodeFrame(2.5, 1, scale.UnitGram, true)...)
	require.NoError(t, f.c.ReadFrom(ctx, bytes.NewReader(stream)))

	require.Eventually(t, func() bool {
		r, err := f.c.CurrentReport(ctx)
		return err == nil && r.Decoder.ValidFrames == 2
	}, time.Second, 10*time.Millisecond)
}

func TestRun_Rename(t *testing.T) {
	f := newFixture(t, Config{TickInterval: 5 * time.Millisecond})
	f.init(t)
	names := make(chan string, 1)
	f.c.OnName(func(n string) { names <- n })
	ctx := startRun(t, f.c)

	require.NoError(t, f.c.Rename(ctx, "bench-7"))
	assert.Equal(t, "bench-7", <-names)

	r, err := f.c.CurrentReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bench-7", r.Device)
}

func TestSubmit_CancelledContext(t *testing.T) {
	f := newFixture(t, Config{})
	f.init(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.c.Submit(ctx, "lock on")
	assert.ErrorIs(t, err, context.Canceled)
}
