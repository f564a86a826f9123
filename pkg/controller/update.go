// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"context"
	"time"

	"github.com/Thermoquad/libra/pkg/publish"
	"github.com/Thermoquad/libra/pkg/scale"
)

// Feed pushes received bytes through the decoder
func (c *Controller) Feed(ctx context.Context, data []byte) {
	c.metrics.BytesRead(len(data))
	for _, b := range data {
		c.FeedByte(ctx, b)
	}
}

// FeedByte decodes one byte. A decode error resyncs the decoder and holds
// off data requests for the error backoff. In manual logging mode every
// frame is logged.
func (c *Controller) FeedByte(ctx context.Context, b byte) {
	frame, err := c.decoder.DecodeByte(b)
	if err != nil {
		c.stats.Update(nil, err)
		c.metrics.DecodeError(err)
		c.lastDecodeError = c.clock.Now()
		c.log.WithError(err).Debug("frame decode error")
		c.decoder.Resync()
		return
	}
	if frame == nil {
		return
	}

	c.stats.Update(frame, nil)
	c.metrics.FrameDecoded()
	c.lastFrame = frame
	if err := c.profile.Ingest(c.agg, frame); err != nil {
		c.log.WithError(err).Warn("failed to record frame")
		return
	}

	if c.state.DataLoggingPeriod == 0 {
		c.Snapshot(ctx)
	}
}

// Update runs the timed work: data requests and periodic data logs. Both
// only happen with a data logging period set.
func (c *Controller) Update(ctx context.Context) {
	if c.state.DataLoggingPeriod <= 0 {
		return
	}
	now := c.clock.Now()

	if c.requestDue(now) {
		c.requestData(now)
	}

	period := time.Duration(c.state.DataLoggingPeriod) * time.Second
	if now.Sub(c.lastLog) >= period {
		c.lastLog = now
		c.Snapshot(ctx)
	}
}

func (c *Controller) requestDue(now time.Time) bool {
	if c.link == nil {
		return false
	}
	readPeriod := time.Duration(c.state.ReadPeriod) * time.Second
	if !c.lastRequest.IsZero() && now.Sub(c.lastRequest) < readPeriod {
		return false
	}
	if !c.lastDecodeError.IsZero() && now.Sub(c.lastDecodeError) < c.cfg.ErrorBackoff {
		return false
	}
	return true
}

func (c *Controller) requestData(now time.Time) {
	c.lastRequest = now
	if _, err := c.link.Write(c.profile.DataRequest()); err != nil {
		c.log.WithError(err).Warn("failed to send data request")
		return
	}
	c.metrics.DataRequested()
}

// Snapshot logs the aggregated readings. The record goes to data observers
// and, with data logging on, to the publisher. Auto-clear channels are
// reset afterwards.
func (c *Controller) Snapshot(ctx context.Context) {
	snaps := c.agg.Snapshot()
	if len(snaps) == 0 {
		return
	}

	rec := publish.Record{
		Device: c.cfg.Name,
		Type:   publish.TypeData,
		Time:   c.clock.Now(),
	}
	for _, s := range snaps {
		d := publish.Datum{Key: s.Name, Value: s.Text, Unit: s.Unit, N: s.Count}
		if s.Count > 1 {
			d.SD = formatFloat(s.StdDev, s.Decimals)
		}
		rec.Data = append(rec.Data, d)
		c.metrics.SetReading(s.Name, s.Unit, s.Value, s.Count)
	}

	for _, o := range c.dataObservers {
		o(rec)
	}
	if c.state.DataLogging {
		c.publish(ctx, rec)
	}
}

// LastFrame returns the most recent decoded frame, nil before the first
func (c *Controller) LastFrame() *scale.Frame {
	return c.lastFrame
}
