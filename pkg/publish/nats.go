// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSConn is the part of *nats.Conn used for publishing
type NATSConn interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSPublisher publishes records on <prefix>.<device>.<type>
type NATSPublisher struct {
	conn   NATSConn
	prefix string
}

// ConnectNATS opens a connection with reconnects enabled
func ConnectNATS(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", url, err)
	}
	return nc, nil
}

// NewNATSPublisher creates a publisher on an open connection
func NewNATSPublisher(conn NATSConn, prefix string) *NATSPublisher {
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Subject returns the subject a record is published on
func (p *NATSPublisher) Subject(rec Record) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, Segment(rec.Device), Segment(rec.Type))
}

// Publish sends the record and flushes so connection errors surface here.
// Flushing needs a deadline; one is added when ctx has none.
func (p *NATSPublisher) Publish(ctx context.Context, rec Record) error {
	payload, err := encode(rec)
	if err != nil {
		return err
	}
	subject := p.Subject(rec)
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	return nil
}

// Close closes the connection
func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}
