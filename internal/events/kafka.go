package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures the Kafka transport.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	GroupID      string
	WriteTimeout time.Duration
}

// KafkaPublisher writes events keyed by "space/object" so the saves of one
// object stay ordered within a partition.
type KafkaPublisher struct {
	writer  *kafka.Writer
	timeout time.Duration
}

// NewKafkaPublisher creates a writer for cfg.Topic.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: cfg.WriteTimeout,
		},
		timeout: cfg.WriteTimeout,
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, e SavedEvent) error {
	value, err := e.encode()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.SpaceSlug + "/" + e.ObjectName),
		Value: value,
		Time:  e.SavedAt,
		Headers: []kafka.Header{
			{Key: "template_type", Value: []byte(e.TemplateType)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write saved event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// KafkaSubscriber reads events with a consumer group.
type KafkaSubscriber struct {
	reader *kafka.Reader
	logger *slog.Logger
}

// NewKafkaSubscriber creates a group reader on cfg.Topic.
func NewKafkaSubscriber(cfg KafkaConfig, logger *slog.Logger) (*KafkaSubscriber, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka subscriber requires at least one broker")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "popup-scene"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &KafkaSubscriber{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 1 << 20,
		}),
		logger: logger,
	}, nil
}

// Subscribe reads in the background until ctx is cancelled.
func (s *KafkaSubscriber) Subscribe(ctx context.Context, h Handler) error {
	go func() {
		for {
			msg, err := s.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() == nil && !errors.Is(err, io.EOF) {
					s.logger.Error("Kafka read failed", "error", err)
				}
				return
			}
			e, err := decode(msg.Value)
			if err != nil {
				s.logger.Warn("Skipping malformed saved event", "offset", msg.Offset, "error", err)
				continue
			}
			h(e)
		}
	}()
	return nil
}

func (s *KafkaSubscriber) Close() error {
	return s.reader.Close()
}
