// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"context"

	"github.com/Thermoquad/libra/pkg/aggregate"
	"github.com/Thermoquad/libra/pkg/command"
	"github.com/Thermoquad/libra/pkg/scale"
	"github.com/Thermoquad/libra/pkg/state"
)

// Profile is the device specific part of a controller
type Profile interface {
	// Kind names the device type in reports
	Kind() string
	// Setup registers the device channels
	Setup(agg *aggregate.Aggregator) error
	// Decoder returns the frame decoder of the instrument
	Decoder() *scale.Decoder
	// DataRequest returns the bytes that ask the instrument for a reading
	DataRequest() []byte
	// Ingest records a decoded frame
	Ingest(agg *aggregate.Aggregator, f *scale.Frame) error
	// Handlers returns commands appended after the common decision tree
	Handlers(c *Controller) []command.Handler
}

// Scale channel names
const (
	ChannelWeight = "weight"
	ChannelRate   = "rate"
)

// ScaleProfile drives a balance with the default frame format
type ScaleProfile struct {
	pattern scale.Pattern
	sig     int
}

// NewScaleProfile creates the balance profile
func NewScaleProfile() *ScaleProfile {
	return &ScaleProfile{
		pattern: scale.DefaultPattern(),
		sig:     aggregate.DefaultSignificantDigits,
	}
}

// Kind implements Profile
func (p *ScaleProfile) Kind() string {
	return "scale"
}

// Setup adds an auto-clearing weight channel and its accumulating rate
func (p *ScaleProfile) Setup(agg *aggregate.Aggregator) error {
	if _, err := agg.AddChannel(ChannelWeight, true); err != nil {
		return err
	}
	if _, err := agg.AddRate(ChannelWeight, ChannelRate, p.sig); err != nil {
		return err
	}
	return nil
}

// Decoder implements Profile
func (p *ScaleProfile) Decoder() *scale.Decoder {
	return scale.NewDecoderWithPattern(p.pattern)
}

// DataRequest implements Profile
func (p *ScaleProfile) DataRequest() []byte {
	return scale.DataRequest
}

// Ingest records the weight of a frame
func (p *ScaleProfile) Ingest(agg *aggregate.Aggregator, f *scale.Frame) error {
	return agg.Record(ChannelWeight, f.Value(), f.Unit(), f.Decimals(), f.Timestamp())
}

// Handlers adds reset-data and read-period
func (p *ScaleProfile) Handlers(c *Controller) []command.Handler {
	return []command.Handler{
		command.Action([]string{"reset-data"}, func(context.Context) error {
			c.ResetData()
			return nil
		}),
		command.IntRange{
			Names: []string{"read-period"},
			Min:   state.MinReadPeriod,
			Max:   state.MaxReadPeriod,
			Units: "s",
			Apply: c.ChangeReadPeriod,
		}.Handler(),
	}
}
