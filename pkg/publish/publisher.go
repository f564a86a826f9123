// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Publisher sends records to an event sink. Publish failures are reported
// to the caller and never retried here.
type Publisher interface {
	Publish(ctx context.Context, rec Record) error
	Close() error
}

// Multi fans a record out to every publisher
type Multi []Publisher

// Publish sends rec to all publishers and joins their errors
func (m Multi) Publish(ctx context.Context, rec Record) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all publishers
func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogPublisher writes records to a logger
type LogPublisher struct {
	log logrus.FieldLogger
}

// NewLogPublisher creates a publisher that logs every record at Info level
func NewLogPublisher(log logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{log: log}
}

// Publish logs the record
func (p *LogPublisher) Publish(_ context.Context, rec Record) error {
	fields := logrus.Fields{
		"device": rec.Device,
		"type":   rec.Type,
	}
	for _, d := range rec.Data {
		fields[d.Key] = d.Value + d.Unit
	}
	if rec.Notes != "" {
		fields["notes"] = rec.Notes
	}
	p.log.WithFields(fields).Info(rec.Message)
	return nil
}

// Close is a no-op
func (p *LogPublisher) Close() error {
	return nil
}

// encode applies the record size bound shared by all remote sinks
func encode(rec Record) ([]byte, error) {
	data, err := rec.Encode(MaxRecordSize)
	if err != nil {
		return nil, fmt.Errorf("encode %s record: %w", rec.Type, err)
	}
	return data, nil
}
