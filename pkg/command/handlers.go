// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package command

import (
	"context"
	"sort"
	"strconv"
	"strings"
)

// Switch values
const (
	On  = "on"
	Off = "off"
)

// Apply changes device state and reports whether anything changed. An error
// means the change could not be carried out.
type Apply[T any] func(ctx context.Context, v T) (changed bool, err error)

// resolve maps the result of an Apply onto the command outcome
func resolve(c *Command, changed bool, err error) {
	if err != nil {
		c.Error(CodeError, TextError)
		c.Message = TextError + ": " + err.Error()
		return
	}
	c.Success(changed)
}

// assignValue extracts the value and rejects it when it was truncated
func assignValue(c *Command) bool {
	c.AssignValue()
	if c.ValueTruncated() {
		c.ErrorInvalidValue(TextTooLong)
		return false
	}
	return true
}

// Toggle handles "<name> on|off"
func Toggle(names []string, apply Apply[bool]) Handler {
	return Handler{
		Names: names,
		Usage: names[0] + " on|off",
		Run: func(ctx context.Context, c *Command) {
			if !assignValue(c) {
				return
			}
			switch {
			case c.ParseValue(On):
				changed, err := apply(ctx, true)
				resolve(c, changed, err)
			case c.ParseValue(Off):
				changed, err := apply(ctx, false)
				resolve(c, changed, err)
			default:
				c.ErrorInvalidValue("")
			}
		},
	}
}

// IntRange handles "<name> <integer>" with min <= value <= max. Keywords map
// words to values, e.g. "manual" to 0.
type IntRange struct {
	Names    []string
	Min, Max int
	Keywords map[string]int
	// Invalid is the error text for rejected values
	Invalid string
	Units   string
	Apply   Apply[int]
}

// Handler builds the handler
func (r IntRange) Handler() Handler {
	usage := r.Names[0] + " <" + strconv.Itoa(r.Min) + ".." + strconv.Itoa(r.Max) + ">"
	words := make([]string, 0, len(r.Keywords))
	for word := range r.Keywords {
		words = append(words, word)
	}
	sort.Strings(words)
	for _, word := range words {
		usage += "|" + word
	}
	return Handler{
		Names: r.Names,
		Usage: usage,
		Run: func(ctx context.Context, c *Command) {
			if !assignValue(c) {
				return
			}
			v, ok := r.Keywords[c.Value]
			if !ok {
				var err error
				v, err = strconv.Atoi(c.Value)
				ok = err == nil
			}
			if !ok || v < r.Min || v > r.Max {
				c.ErrorInvalidValue(r.Invalid)
				return
			}
			// an explicit unit token is accepted when it matches, e.g. "read-period 5 s"
			if next, _, _ := strings.Cut(c.Remainder(), " "); r.Units != "" && next == r.Units {
				c.AssignUnits()
			}
			c.Units = r.Units
			changed, err := r.Apply(ctx, v)
			resolve(c, changed, err)
		},
	}
}

// Choice handles "<name> <word>" for a fixed set of words
func Choice[T any](names []string, choices []string, parse func(string) (T, bool), apply Apply[T]) Handler {
	usage := names[0] + " "
	for i, ch := range choices {
		if i > 0 {
			usage += "|"
		}
		usage += ch
	}
	return Handler{
		Names: names,
		Usage: usage,
		Run: func(ctx context.Context, c *Command) {
			if !assignValue(c) {
				return
			}
			v, ok := parse(c.Value)
			if !ok {
				c.ErrorInvalidValue("")
				return
			}
			changed, err := apply(ctx, v)
			resolve(c, changed, err)
		},
	}
}

// Action handles "<name>" without a value. It always changes state.
func Action(names []string, run func(ctx context.Context) error) Handler {
	return Handler{
		Names: names,
		Usage: names[0],
		Run: func(ctx context.Context, c *Command) {
			err := run(ctx)
			resolve(c, err == nil, err)
		},
	}
}
