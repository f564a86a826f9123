// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package controller ties the command dispatcher, the frame decoder, the
// aggregator and the persisted state of one device together.
package controller

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/libra/pkg/aggregate"
	"github.com/Thermoquad/libra/pkg/command"
	"github.com/Thermoquad/libra/pkg/metrics"
	"github.com/Thermoquad/libra/pkg/publish"
	"github.com/Thermoquad/libra/pkg/scale"
	"github.com/Thermoquad/libra/pkg/state"
)

// Defaults of Config
const (
	DefaultErrorBackoff = 2 * time.Second
	DefaultTickInterval = 100 * time.Millisecond
)

// Config tunes a controller
type Config struct {
	// Name identifies the device in records
	Name string
	// Slot is the storage key of the configuration record
	Slot string
	// ErrorBackoff delays data requests after a decode error
	ErrorBackoff time.Duration
	// TickInterval is how often Run calls Update
	TickInterval time.Duration
	// Reset starts from the defaults without restoring
	Reset bool
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = state.DefaultSlot
	}
	if c.Slot == "" {
		c.Slot = state.DefaultSlot
	}
	if c.ErrorBackoff == 0 {
		c.ErrorBackoff = DefaultErrorBackoff
	}
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
}

// Option configures optional collaborators
type Option func(*Controller)

// WithClock replaces the system clock
func WithClock(clk Clock) Option {
	return func(c *Controller) { c.clock = clk }
}

// WithMetrics reports activity to m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithLink sets the writer data requests are sent to
func WithLink(w io.Writer) Option {
	return func(c *Controller) { c.link = w }
}

// WithResetDetector adds a check run by Init, e.g. a reset pin. When it
// returns true the stored state is ignored.
func WithResetDetector(f func() bool) Option {
	return func(c *Controller) { c.resetDetector = f }
}

// Controller is the device context. Dispatch, Feed and Update must not run
// concurrently; Run serializes them on one goroutine.
type Controller struct {
	cfg       Config
	profile   Profile
	store     state.Store
	publisher publish.Publisher
	log       logrus.FieldLogger
	clock     Clock
	metrics   *metrics.Metrics
	link      io.Writer

	resetDetector func() bool
	wasReset      bool

	state      state.State
	decoder    *scale.Decoder
	stats      *scale.Statistics
	agg        *aggregate.Aggregator
	dispatcher *command.Dispatcher

	lastRequest     time.Time
	lastDecodeError time.Time
	lastLog         time.Time
	lastFrame       *scale.Frame

	reportObservers []func(Report)
	dataObservers   []func(publish.Record)
	nameObservers   []func(string)

	requests chan func()
	chunks   chan []byte
}

// New builds a controller. pub may be nil to disable publishing.
func New(cfg Config, profile Profile, store state.Store, pub publish.Publisher, log logrus.FieldLogger, opts ...Option) (*Controller, error) {
	cfg.setDefaults()
	c := &Controller{
		cfg:       cfg,
		profile:   profile,
		store:     store,
		publisher: pub,
		log:       log.WithField("device", cfg.Name),
		clock:     SystemClock{},
		state:     state.Defaults(),
		requests:  make(chan func()),
		chunks:    make(chan []byte, 16),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.decoder = profile.Decoder()
	c.decoder.SetClock(c.clock.Now)
	c.stats = scale.NewStatisticsWithClock(c.clock.Now)

	c.agg = aggregate.NewAggregator(c.state.CalcRate)
	if err := profile.Setup(c.agg); err != nil {
		return nil, fmt.Errorf("setup %s profile: %w", profile.Kind(), err)
	}

	c.dispatcher = command.NewDispatcher(cfg.Name, c.locked, pub, c.log)
	c.dispatcher.SetClock(c.clock.Now)
	c.dispatcher.OnPublishError(func(error) { c.metrics.PublishFailed() })
	c.dispatcher.Register(c.commonHandlers()...)
	c.dispatcher.Register(profile.Handlers(c)...)
	return c, nil
}

// Init restores the persisted state, or keeps the defaults after a reset
// request
func (c *Controller) Init(ctx context.Context) error {
	c.wasReset = c.cfg.Reset || (c.resetDetector != nil && c.resetDetector())

	if c.wasReset {
		c.log.Info("reset request detected, resetting state back to default values")
		c.state = state.Defaults()
	} else {
		s, _, err := state.Restore(ctx, c.store, c.cfg.Slot, c.log)
		if err != nil {
			c.state = state.Defaults()
			c.applyState()
			return err
		}
		c.state = s
	}
	c.applyState()

	now := c.clock.Now()
	c.lastLog = now
	c.log.WithField("startup_time", c.localTime(now).Format("2006-01-02 15:04:05")).Info("controller started")
	return nil
}

// applyState pushes the configuration into the aggregator
func (c *Controller) applyState() {
	c.agg.SetRateUnit(c.state.CalcRate)
}

// WasReset reports whether Init skipped the stored state
func (c *Controller) WasReset() bool {
	return c.wasReset
}

// Name returns the device name
func (c *Controller) Name() string {
	return c.cfg.Name
}

// SetName renames the device, e.g. after a config reload, and notifies
// name observers
func (c *Controller) SetName(name string) {
	if name == "" || name == c.cfg.Name {
		return
	}
	c.cfg.Name = name
	c.dispatcher.SetDevice(name)
	c.log = c.log.WithField("device", name)
	for _, o := range c.nameObservers {
		o(name)
	}
}

// State returns a copy of the configuration
func (c *Controller) State() state.State {
	return c.state
}

// Aggregator returns the channel aggregator
func (c *Controller) Aggregator() *aggregate.Aggregator {
	return c.agg
}

// Statistics returns the decoder statistics
func (c *Controller) Statistics() *scale.Statistics {
	return c.stats
}

// Dispatcher returns the command dispatcher
func (c *Controller) Dispatcher() *command.Dispatcher {
	return c.dispatcher
}

// OnCommand registers an observer of every finalized command
func (c *Controller) OnCommand(o command.Observer) {
	c.dispatcher.OnCommand(o)
}

// OnReport registers an observer of state reports
func (c *Controller) OnReport(f func(Report)) {
	c.reportObservers = append(c.reportObservers, f)
}

// OnData registers an observer of data snapshots
func (c *Controller) OnData(f func(publish.Record)) {
	c.dataObservers = append(c.dataObservers, f)
}

// OnName registers an observer of device renames
func (c *Controller) OnName(f func(string)) {
	c.nameObservers = append(c.nameObservers, f)
}

func (c *Controller) locked() bool {
	return c.state.Locked
}

func (c *Controller) localTime(t time.Time) time.Time {
	return t.In(time.FixedZone(fmt.Sprintf("UTC%+d", c.state.Timezone), c.state.Timezone*3600))
}

// Dispatch runs one command. After a state change the report is pushed to
// observers and, with state logging on, published.
func (c *Controller) Dispatch(ctx context.Context, raw string) (command.ReturnCode, publish.Record) {
	start := time.Now()
	code, rec := c.dispatcher.Dispatch(ctx, raw)
	c.metrics.CommandDispatched(code.String(), time.Since(start))

	if rec.Type == publish.TypeStateChanged {
		c.stateChanged(ctx)
	}
	return code, rec
}

func (c *Controller) stateChanged(ctx context.Context) {
	report := c.Report()
	for _, o := range c.reportObservers {
		o(report)
	}
	if c.state.StateLogging {
		c.publish(ctx, report.Record())
	}
}

func (c *Controller) publish(ctx context.Context, rec publish.Record) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, rec); err != nil {
		c.metrics.PublishFailed()
		c.log.WithError(err).WithField("type", rec.Type).Warn("failed to publish record")
	}
}
