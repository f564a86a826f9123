// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/Thermoquad/libra/pkg/command"
	"github.com/Thermoquad/libra/pkg/publish"
)

// Reply is the outcome of a submitted command
type Reply struct {
	Code    command.ReturnCode `json:"return_code"`
	Outcome string             `json:"outcome"`
	Type    string             `json:"type"`
	Message string             `json:"message,omitempty"`
	Record  publish.Record     `json:"record"`
}

// Run owns the controller until ctx is done. Received chunks, submitted
// requests and the update tick are handled one at a time.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-c.requests:
			fn()
		case chunk := <-c.chunks:
			c.Feed(ctx, chunk)
		case <-ticker.C:
			c.Update(ctx)
		}
	}
}

// do runs fn on the Run goroutine and waits for it
func (c *Controller) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	req := func() {
		fn()
		close(done)
	}
	select {
	case c.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit dispatches raw on the Run goroutine
func (c *Controller) Submit(ctx context.Context, raw string) (Reply, error) {
	var reply Reply
	err := c.do(ctx, func() {
		code, rec := c.Dispatch(ctx, raw)
		reply = Reply{Code: code, Outcome: code.String(), Type: rec.Type, Message: rec.Message, Record: rec}
	})
	return reply, err
}

// CurrentReport builds a report on the Run goroutine
func (c *Controller) CurrentReport(ctx context.Context) (Report, error) {
	var r Report
	err := c.do(ctx, func() { r = c.Report() })
	return r, err
}

// Rename runs SetName on the Run goroutine
func (c *Controller) Rename(ctx context.Context, name string) error {
	return c.do(ctx, func() { c.SetName(name) })
}

// Push queues received bytes for the Run goroutine
func (c *Controller) Push(ctx context.Context, chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	buf := make([]byte, len(chunk))
	copy(buf, chunk)
	select {
	case c.chunks <- buf:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReadFrom pumps r into the controller until EOF, a read error or ctx is
// done. Call it on its own goroutine next to Run.
func (c *Controller) ReadFrom(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if perr := c.Push(ctx, buf[:n]); perr != nil {
				return perr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
