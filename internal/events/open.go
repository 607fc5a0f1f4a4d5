package events

import (
	"fmt"
	"log/slog"
	"time"
)

// Drivers accepted by Open.
const (
	DriverNone  = "none"
	DriverKafka = "kafka"
	DriverMQTT  = "mqtt"
)

// Options selects and configures the event transport.
type Options struct {
	Driver   string
	Topic    string
	Brokers  []string // kafka
	GroupID  string   // kafka
	Broker   string   // mqtt
	ClientID string   // mqtt
	Username string
	Password string
	Timeout  time.Duration
}

// OpenPublisher builds the publishing side of the configured transport.
func OpenPublisher(opts Options, logger *slog.Logger) (Publisher, error) {
	switch opts.Driver {
	case DriverNone, "":
		return Nop{}, nil
	case DriverKafka:
		return NewKafkaPublisher(KafkaConfig{Brokers: opts.Brokers, Topic: opts.Topic, WriteTimeout: opts.Timeout})
	case DriverMQTT:
		return DialMQTT(opts.mqtt("-pub"), logger)
	}
	return nil, fmt.Errorf("unknown events driver %q", opts.Driver)
}

// OpenSubscriber builds the consuming side of the configured transport.
func OpenSubscriber(opts Options, logger *slog.Logger) (Subscriber, error) {
	switch opts.Driver {
	case DriverNone, "":
		return Nop{}, nil
	case DriverKafka:
		return NewKafkaSubscriber(KafkaConfig{Brokers: opts.Brokers, Topic: opts.Topic, GroupID: opts.GroupID}, logger)
	case DriverMQTT:
		return DialMQTT(opts.mqtt("-sub"), logger)
	}
	return nil, fmt.Errorf("unknown events driver %q", opts.Driver)
}

func (o Options) mqtt(suffix string) MQTTConfig {
	id := o.ClientID
	if id == "" {
		id = "popup-builder"
	}
	return MQTTConfig{
		Broker:   o.Broker,
		ClientID: id + suffix,
		Username: o.Username,
		Password: o.Password,
		Topic:    o.Topic,
		QoS:      1,
		Timeout:  o.Timeout,
	}
}
