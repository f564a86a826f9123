// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package publish

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultBacklog is how many records are kept in the per-device list
const DefaultBacklog = 1000

// RedisPublisher publishes records on a pub/sub channel and keeps a capped
// list per device as backup
type RedisPublisher struct {
	client  redis.Cmdable
	closer  func() error
	channel string
	backlog int64
	log     logrus.FieldLogger
}

// NewRedisPublisher creates a publisher on an existing client
func NewRedisPublisher(client *redis.Client, channel string, backlog int, log logrus.FieldLogger) *RedisPublisher {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &RedisPublisher{
		client:  client,
		closer:  client.Close,
		channel: channel,
		backlog: int64(backlog),
		log:     log,
	}
}

// ListKey returns the backup list of a device
func ListKey(device string) string {
	return fmt.Sprintf("libra:%s:records", Segment(device))
}

// Publish sends the record on the channel and appends it to the device list
func (p *RedisPublisher) Publish(ctx context.Context, rec Record) error {
	payload, err := encode(rec)
	if err != nil {
		return err
	}

	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}

	key := ListKey(rec.Device)
	if err := p.client.LPush(ctx, key, payload).Err(); err != nil {
		p.log.Warnf("failed to append record to %s: %v", key, err)
		return nil
	}
	if err := p.client.LTrim(ctx, key, 0, p.backlog-1).Err(); err != nil {
		p.log.Warnf("failed to trim %s to %d records: %v", key, p.backlog, err)
	}
	return nil
}

// Close closes the client
func (p *RedisPublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}
