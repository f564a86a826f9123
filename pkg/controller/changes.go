// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/libra/pkg/aggregate"
	"github.com/Thermoquad/libra/pkg/command"
	"github.com/Thermoquad/libra/pkg/state"
)

// Command names of the common decision tree
const (
	CmdLock              = "lock"
	CmdStateLog          = "state-log"
	CmdDataLog           = "data-log"
	CmdTimezone          = "timezone"
	CmdTimezoneShort     = "tz"
	CmdDataLoggingPeriod = "data-logging-period"
	CmdLogPeriod         = "log-period"
	CmdCalcRate          = "calc-rate"
	KeywordManual        = "manual"
)

var rateChoices = []string{"off", "sec", "min", "hr", "day"}

// commonHandlers is the decision tree shared by every device. lock is the
// only command accepted while locked.
func (c *Controller) commonHandlers() []command.Handler {
	lock := command.Toggle([]string{CmdLock}, c.ChangeLocked)
	lock.Unlocked = true

	return []command.Handler{
		lock,
		command.Toggle([]string{CmdStateLog}, c.ChangeStateLogging),
		command.Toggle([]string{CmdDataLog}, c.ChangeDataLogging),
		command.IntRange{
			Names:   []string{CmdTimezone, CmdTimezoneShort},
			Min:     state.MinTimezone,
			Max:     state.MaxTimezone,
			Invalid: "invalid timezone",
			Apply:   c.ChangeTimezone,
		}.Handler(),
		command.IntRange{
			Names:    []string{CmdDataLoggingPeriod, CmdLogPeriod},
			Min:      0,
			Max:      state.MaxLoggingPeriod,
			Keywords: map[string]int{KeywordManual: 0},
			Units:    "s",
			Apply:    c.ChangeDataLoggingPeriod,
		}.Handler(),
		command.Choice([]string{CmdCalcRate}, rateChoices, aggregate.ParseRateUnit, c.ChangeCalcRate),
	}
}

// change applies mutate to a copy of the state and persists it. Nothing is
// saved when the state is already as requested.
func (c *Controller) change(ctx context.Context, changed bool, mutate func(*state.State), fields logrus.Fields, done, already string) (bool, error) {
	log := c.log.WithFields(fields)
	if !changed {
		log.Info(already)
		return false, nil
	}

	next := c.state
	mutate(&next)
	if err := c.store.Save(ctx, c.cfg.Slot, next); err != nil {
		log.WithError(err).Error("failed to save state")
		return false, fmt.Errorf("save state: %w", err)
	}
	c.metrics.StateSaved()
	c.state = next

	log.Info(done)
	return true, nil
}

// ChangeLocked locks or unlocks the device
func (c *Controller) ChangeLocked(ctx context.Context, on bool) (bool, error) {
	done, already := "unlocking device", "device already unlocked"
	if on {
		done, already = "locking device", "device already locked"
	}
	return c.change(ctx, on != c.state.Locked,
		func(s *state.State) { s.Locked = on },
		logrus.Fields{"variable": CmdLock, "value": on}, done, already)
}

// ChangeStateLogging turns publishing of state reports on or off
func (c *Controller) ChangeStateLogging(ctx context.Context, on bool) (bool, error) {
	done, already := "state logging turned off", "state logging already off"
	if on {
		done, already = "state logging turned on", "state logging already on"
	}
	return c.change(ctx, on != c.state.StateLogging,
		func(s *state.State) { s.StateLogging = on },
		logrus.Fields{"variable": CmdStateLog, "value": on}, done, already)
}

// ChangeDataLogging turns publishing of data snapshots on or off
func (c *Controller) ChangeDataLogging(ctx context.Context, on bool) (bool, error) {
	done, already := "data logging turned off", "data logging already off"
	if on {
		done, already = "data logging turned on", "data logging already on"
	}
	return c.change(ctx, on != c.state.DataLogging,
		func(s *state.State) { s.DataLogging = on },
		logrus.Fields{"variable": CmdDataLog, "value": on}, done, already)
}

// ChangeTimezone sets the UTC offset in hours
func (c *Controller) ChangeTimezone(ctx context.Context, tz int) (bool, error) {
	changed, err := c.change(ctx, tz != c.state.Timezone,
		func(s *state.State) { s.Timezone = tz },
		logrus.Fields{"variable": CmdTimezone, "value": tz},
		"timezone changed", "timezone unchanged")
	if changed {
		c.log.WithField("time", c.localTime(c.clock.Now()).Format("2006-01-02 15:04:05")).Debug("local time")
	}
	return changed, err
}

// ChangeDataLoggingPeriod sets the seconds between data logs, 0 logs every
// reading
func (c *Controller) ChangeDataLoggingPeriod(ctx context.Context, period int) (bool, error) {
	changed, err := c.change(ctx, period != c.state.DataLoggingPeriod,
		func(s *state.State) { s.DataLoggingPeriod = period },
		logrus.Fields{"variable": CmdDataLoggingPeriod, "value": period},
		"data logging period changed", "data logging period unchanged")
	if changed {
		c.lastLog = c.clock.Now()
	}
	return changed, err
}

// ChangeCalcRate sets the rate unit. A change resets all readings.
func (c *Controller) ChangeCalcRate(ctx context.Context, u aggregate.RateUnit) (bool, error) {
	changed, err := c.change(ctx, u != c.state.CalcRate,
		func(s *state.State) { s.CalcRate = u },
		logrus.Fields{"variable": CmdCalcRate, "value": u.String()},
		"calculation rate changed", "calculation rate unchanged")
	if changed {
		c.agg.SetRateUnit(u)
	}
	return changed, err
}

// ChangeReadPeriod sets the seconds between data requests
func (c *Controller) ChangeReadPeriod(ctx context.Context, period int) (bool, error) {
	return c.change(ctx, period != c.state.ReadPeriod,
		func(s *state.State) { s.ReadPeriod = period },
		logrus.Fields{"variable": "read-period", "value": period},
		"read period changed", "read period unchanged")
}

// ResetData clears all readings and rate history. Nothing is persisted.
func (c *Controller) ResetData() {
	c.log.WithField("readings", c.agg.Summary()).Debug("discarding readings")
	c.agg.ResetAll()
	c.stats.Reset()
	c.log.Info("data reset")
}
