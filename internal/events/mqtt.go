package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig configures the MQTT transport.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
	Timeout  time.Duration
}

// MQTT publishes and subscribes over one broker connection.
type MQTT struct {
	client  mqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
	logger  *slog.Logger
}

// DialMQTT connects to cfg.Broker.
func DialMQTT(cfg MQTTConfig, logger *slog.Logger) (*MQTT, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt transport requires a broker")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.Timeout)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", "broker", cfg.Broker, "error", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("timed out connecting to mqtt broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker %s: %w", cfg.Broker, err)
	}
	logger.Info("Connected to MQTT broker", "broker", cfg.Broker, "topic", cfg.Topic)
	return &MQTT{client: client, topic: cfg.Topic, qos: cfg.QoS, timeout: cfg.Timeout, logger: logger}, nil
}

func (m *MQTT) Publish(ctx context.Context, e SavedEvent) error {
	payload, err := e.encode()
	if err != nil {
		return err
	}
	token := m.client.Publish(m.topic, m.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.timeout):
		return fmt.Errorf("timed out publishing to %s", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish saved event: %w", err)
	}
	return nil
}

// Subscribe registers h on the topic; it is removed when ctx is done.
func (m *MQTT) Subscribe(ctx context.Context, h Handler) error {
	token := m.client.Subscribe(m.topic, m.qos, func(_ mqtt.Client, msg mqtt.Message) {
		e, err := decode(msg.Payload())
		if err != nil {
			m.logger.Warn("Skipping malformed saved event", "topic", msg.Topic(), "error", err)
			return
		}
		h(e)
	})
	if !token.WaitTimeout(m.timeout) {
		return fmt.Errorf("timed out subscribing to %s", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", m.topic, err)
	}
	context.AfterFunc(ctx, func() {
		m.client.Unsubscribe(m.topic).WaitTimeout(m.timeout)
	})
	return nil
}

func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
