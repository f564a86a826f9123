// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exposes controller activity as prometheus collectors.
// All methods are safe on a nil *Metrics.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Thermoquad/libra/pkg/scale"
)

const namespace = "libra"

// Metrics holds the collectors of one controller
type Metrics struct {
	Commands        *prometheus.CounterVec
	CommandDuration prometheus.Histogram
	BytesReceived   prometheus.Counter
	Frames          prometheus.Counter
	DecodeErrors    *prometheus.CounterVec
	DataRequests    prometheus.Counter
	StateSaves      prometheus.Counter
	PublishFailures prometheus.Counter
	Readings        *prometheus.GaugeVec
	ReadingCounts   *prometheus.GaugeVec
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Dispatched commands by outcome",
		}, []string{"outcome"}),
		CommandDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time to dispatch a command including persistence",
			Buckets:   prometheus.DefBuckets,
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "serial_bytes_received_total",
			Help:      "Bytes received from the instrument",
		}),
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Valid frames decoded",
		}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Frame decode errors by kind",
		}, []string{"kind"}),
		DataRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_requests_total",
			Help:      "Data requests sent to the instrument",
		}),
		StateSaves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_saves_total",
			Help:      "Configuration records persisted",
		}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Records that could not be published",
		}),
		Readings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reading",
			Help:      "Last logged mean of each channel",
		}, []string{"channel", "unit"}),
		ReadingCounts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reading_samples",
			Help:      "Number of values behind the last logged mean",
		}, []string{"channel"}),
	}

	for _, c := range []prometheus.Collector{
		m.Commands, m.CommandDuration, m.BytesReceived, m.Frames, m.DecodeErrors,
		m.DataRequests, m.StateSaves, m.PublishFailures, m.Readings, m.ReadingCounts,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// CommandDispatched counts a command by outcome and records its duration
func (m *Metrics) CommandDispatched(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(outcome).Inc()
	m.CommandDuration.Observe(d.Seconds())
}

// BytesRead counts received serial bytes
func (m *Metrics) BytesRead(n int) {
	if m == nil {
		return
	}
	m.BytesReceived.Add(float64(n))
}

// FrameDecoded counts a valid frame
func (m *Metrics) FrameDecoded() {
	if m == nil {
		return
	}
	m.Frames.Inc()
}

// DecodeError counts a decode error by kind
func (m *Metrics) DecodeError(err error) {
	if m == nil {
		return
	}
	kind := "other"
	switch {
	case errors.Is(err, scale.ErrInvalidValue):
		kind = "invalid_value"
	case errors.Is(err, scale.ErrUnexpectedByte):
		kind = "unexpected_byte"
	}
	m.DecodeErrors.WithLabelValues(kind).Inc()
}

// DataRequested counts a data request
func (m *Metrics) DataRequested() {
	if m == nil {
		return
	}
	m.DataRequests.Inc()
}

// StateSaved counts a persisted record
func (m *Metrics) StateSaved() {
	if m == nil {
		return
	}
	m.StateSaves.Inc()
}

// PublishFailed counts a failed publish
func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.PublishFailures.Inc()
}

// SetReading updates the gauges of a logged channel
func (m *Metrics) SetReading(channel, unit string, value float64, n int) {
	if m == nil {
		return
	}
	m.Readings.WithLabelValues(channel, unit).Set(value)
	m.ReadingCounts.WithLabelValues(channel).Set(float64(n))
}
