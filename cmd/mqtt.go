// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Thermoquad/sportscope/pkg/sport"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
)

// mqttConnectTimeout bounds the initial broker connection
const mqttConnectTimeout = 10 * time.Second

// ClientOptionsFromURL creates paho client options from a broker URL of the
// form mqtt://[user:pass@]host:port/prefix[?client-id=id]. The path becomes
// the topic prefix.
func ClientOptionsFromURL(brokerURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(brokerURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid MQTT URL: %w", err)
	}
	if u.Host == "" {
		return nil, "", fmt.Errorf("invalid MQTT URL %q: missing host", brokerURL)
	}

	var server string
	switch u.Scheme {
	case "", "mqtt", "tcp":
		server = "tcp"
	case "mqtts", "ssl", "tls":
		server = "ssl"
	case "ws", "wss":
		server = u.Scheme
	default:
		return nil, "", fmt.Errorf("unsupported MQTT scheme: %s", u.Scheme)
	}
	server += "://" + u.Host

	topicPrefix := strings.Trim(u.Path, "/")

	opts := paho.NewClientOptions()
	opts.AddBroker(server).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}

	if clientID := u.Query().Get("client-id"); clientID != "" {
		opts.SetClientID(clientID)
	} else {
		opts.SetClientID(fmt.Sprintf("sportscope-%d", time.Now().UnixNano()))
	}

	return opts, topicPrefix, nil
}

// eventTopic returns the topic an event is published on
func eventTopic(prefix string, kind sport.TelemetryKind) string {
	if prefix == "" {
		return sport.FormatKind(kind)
	}
	return prefix + "/" + sport.FormatKind(kind)
}

// MQTTPublisher publishes every event as JSON on <prefix>/<KIND>
type MQTTPublisher struct {
	client      paho.Client
	topicPrefix string
}

// NewMQTTPublisher connects to the broker at brokerURL
func NewMQTTPublisher(brokerURL string) (*MQTTPublisher, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		glog.Warningf("MQTT connection lost: %v", err)
	})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("MQTT connection to %s timed out", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("MQTT connection to %s failed: %w", brokerURL, err)
	}

	return &MQTTPublisher{client: client, topicPrefix: topicPrefix}, nil
}

// Publish sends one record. Delivery is fire-and-forget at QoS 0.
func (m *MQTTPublisher) Publish(rec sport.EventRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	m.client.Publish(eventTopic(m.topicPrefix, rec.Kind), 0, false, payload)
	return nil
}

// Run publishes records from ch until it closes or ctx is done
func (m *MQTTPublisher) Run(ctx context.Context, ch <-chan sport.EventRecord) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-ch:
			if !ok {
				return
			}
			if err := m.Publish(rec); err != nil {
				glog.Errorf("MQTT publish: %v", err)
			}
		}
	}
}

// Close disconnects from the broker
func (m *MQTTPublisher) Close() error {
	m.client.Disconnect(250)
	return nil
}
