// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package publish

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MQTTClient is the part of mqtt.Client used for publishing
type MQTTClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes records to <prefix>/<device>/<type>
type MQTTPublisher struct {
	client  MQTTClient
	prefix  string
	qos     byte
	timeout time.Duration
	log     logrus.FieldLogger
}

// DialMQTT connects to an MQTT broker. An empty clientID gets a random one.
func DialMQTT(broker, clientID string, timeout time.Duration) (mqtt.Client, error) {
	if clientID == "" {
		clientID = "libra-" + uuid.NewString()
	}
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout)
	c := mqtt.NewClient(opts)

	token := c.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("connect to %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", broker, err)
	}
	return c, nil
}

// NewMQTTPublisher creates a publisher on a connected client
func NewMQTTPublisher(client MQTTClient, prefix string, qos byte, log logrus.FieldLogger) *MQTTPublisher {
	return &MQTTPublisher{
		client:  client,
		prefix:  prefix,
		qos:     qos,
		timeout: 5 * time.Second,
		log:     log,
	}
}

// Topic returns the topic a record is published on
func (p *MQTTPublisher) Topic(rec Record) string {
	return fmt.Sprintf("%s/%s/%s", p.prefix, Segment(rec.Device), Segment(rec.Type))
}

// Publish sends the encoded record and waits for the broker acknowledgement
func (p *MQTTPublisher) Publish(ctx context.Context, rec Record) error {
	payload, err := encode(rec)
	if err != nil {
		return err
	}

	topic := p.Topic(rec)
	token := p.client.Publish(topic, p.qos, false, payload)

	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}

	p.log.WithField("topic", topic).Debug("published record")
	return nil
}

// Close disconnects from the broker
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
