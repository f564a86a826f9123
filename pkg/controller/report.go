// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"strconv"
	"time"

	"github.com/Thermoquad/libra/pkg/publish"
	"github.com/Thermoquad/libra/pkg/state"
)

// Info is a short display text and a long log text of one state aspect
type Info struct {
	Short string `json:"short"`
	Long  string `json:"long"`
}

// LockedInfo describes the lock for displays
func LockedInfo(locked bool) Info {
	if locked {
		return Info{Short: "LOCK", Long: "locked"}
	}
	return Info{Short: "", Long: "ready"}
}

// LoggingInfo describes data logging for displays
func LoggingInfo(logging bool) Info {
	if logging {
		return Info{Short: "logging", Long: "logging started"}
	}
	return Info{Short: "no log", Long: "logging stopped"}
}

// ReadingReport is the current value of one channel
type ReadingReport struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Unit  string `json:"unit,omitempty"`
	Count int    `json:"n"`
	Valid bool   `json:"valid"`
}

// DecoderReport summarizes frame decoding
type DecoderReport struct {
	ValidFrames  uint64  `json:"valid_frames"`
	DecodeErrors uint64  `json:"decode_errors"`
	FrameRate    float64 `json:"frame_rate"`
}

// Report is the read-only view of configuration and readings
type Report struct {
	Device   string          `json:"device"`
	Kind     string          `json:"kind"`
	Time     time.Time       `json:"time"`
	State    state.State     `json:"state"`
	CalcRate string          `json:"calc_rate"`
	Lock     Info            `json:"lock"`
	Logging  Info            `json:"logging"`
	Readings []ReadingReport `json:"readings"`
	Decoder  DecoderReport   `json:"decoder"`
}

// Report builds the current state report
func (c *Controller) Report() Report {
	c.stats.CalculateRates()
	r := Report{
		Device:   c.cfg.Name,
		Kind:     c.profile.Kind(),
		Time:     c.localTime(c.clock.Now()),
		State:    c.state,
		CalcRate: c.state.CalcRate.String(),
		Lock:     LockedInfo(c.state.Locked),
		Logging:  LoggingInfo(c.state.DataLogging),
		Decoder: DecoderReport{
			ValidFrames:  c.stats.ValidFrames,
			DecodeErrors: c.stats.DecodeErrors,
			FrameRate:    c.stats.FrameRate,
		},
	}
	for _, ch := range c.agg.Channels() {
		r.Readings = append(r.Readings, ReadingReport{
			Name:  ch.Name,
			Value: ch.FormatValue(),
			Unit:  ch.Unit(),
			Count: ch.Count(),
			Valid: ch.Valid(),
		})
	}
	return r
}

// Record turns the report into a state log record
func (r Report) Record() publish.Record {
	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}
	return publish.Record{
		Device: r.Device,
		Type:   publish.TypeState,
		Data: []publish.Datum{
			{Key: "locked", Value: onOff(r.State.Locked)},
			{Key: "state-log", Value: onOff(r.State.StateLogging)},
			{Key: "data-log", Value: onOff(r.State.DataLogging)},
			{Key: "log-period", Value: strconv.Itoa(r.State.DataLoggingPeriod), Unit: "s"},
			{Key: "calc-rate", Value: r.CalcRate},
			{Key: "tz", Value: strconv.Itoa(r.State.Timezone)},
			{Key: "read-period", Value: strconv.Itoa(r.State.ReadPeriod), Unit: "s"},
		},
		Message: r.Lock.Long + ", " + r.Logging.Long,
		Time:    r.Time,
	}
}

func formatFloat(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}
