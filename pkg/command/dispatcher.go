// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package command

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/libra/pkg/publish"
)

// Handler resolves one variable of the decision tree
type Handler struct {
	// Names are matched exactly; the first is the canonical name
	Names []string
	Usage string
	// Unlocked handlers run while the device is locked
	Unlocked bool
	Run      func(ctx context.Context, c *Command)
}

// Observer is called after every finalized command, before publishing
type Observer func(c *Command, rec publish.Record)

// Dispatcher walks the ordered handler list. It is not safe for concurrent
// use; callers serialize Dispatch.
type Dispatcher struct {
	device    string
	handlers  []Handler
	locked    func() bool
	publisher publish.Publisher
	observers []Observer
	onPublish []func(error)
	now       func() time.Time
	log       logrus.FieldLogger
}

// NewDispatcher creates a dispatcher. locked reports the device lock; pub
// may be nil.
func NewDispatcher(device string, locked func() bool, pub publish.Publisher, log logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		device:    device,
		locked:    locked,
		publisher: pub,
		now:       time.Now,
		log:       log,
	}
}

// SetClock replaces the clock used to stamp records
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

// SetDevice changes the device name put in records
func (d *Dispatcher) SetDevice(name string) {
	d.device = name
}

// Register appends a handler. Earlier handlers win.
func (d *Dispatcher) Register(h ...Handler) {
	d.handlers = append(d.handlers, h...)
}

// Handlers returns the decision tree in order
func (d *Dispatcher) Handlers() []Handler {
	return d.handlers
}

// OnCommand registers an observer
func (d *Dispatcher) OnCommand(o Observer) {
	d.observers = append(d.observers, o)
}

// OnPublishError registers a callback for failed publishes
func (d *Dispatcher) OnPublishError(f func(error)) {
	d.onPublish = append(d.onPublish, f)
}

func (d *Dispatcher) lookup(variable string) *Handler {
	for i := range d.handlers {
		for _, name := range d.handlers[i].Names {
			if name == variable {
				return &d.handlers[i]
			}
		}
	}
	return nil
}

// Dispatch parses and runs raw. Validation never fails the call: every
// outcome is a return code. The record is offered to the publisher and a
// publish failure does not change the code.
func (d *Dispatcher) Dispatch(ctx context.Context, raw string) (ReturnCode, publish.Record) {
	c := New(raw)
	c.AssignVariable()

	h := d.lookup(c.Variable)
	switch {
	case h != nil && h.Unlocked:
		h.Run(ctx, c)
	case d.locked != nil && d.locked():
		c.ErrorLocked()
	case h != nil:
		h.Run(ctx, c)
	}
	c.Finalize()

	rec := c.Record(d.device, d.now())
	for _, o := range d.observers {
		o(c, rec)
	}

	d.log.WithFields(logrus.Fields{
		"command":     c.Raw,
		"return_code": int(c.ReturnCode),
		"type":        c.Type,
	}).Debug("command finalized")

	if d.publisher != nil {
		if err := d.publisher.Publish(ctx, rec); err != nil {
			d.log.WithError(err).Warn("failed to publish command record")
			for _, f := range d.onPublish {
				f(err)
			}
		}
	}
	return c.ReturnCode, rec
}
