package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/shadda-scores/internal/config"
	"github.com/shadda-scores/internal/domain"
)

// Producer publishes committed game events to the events topic
type Producer struct {
	topic    string
	producer sarama.SyncProducer
	logger   *slog.Logger
}

// NewProducer creates a new Kafka event producer
func NewProducer(cfg *config.KafkaConfig, logger *slog.Logger) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Retry.Max = cfg.RetryAttempts
	saramaConfig.Producer.Retry.Backoff = cfg.RetryDelay
	saramaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating producer: %w", err)
	}

	return &Producer{
		topic:    cfg.EventsTopic,
		producer: producer,
		logger:   logger,
	}, nil
}

// Publish sends an event keyed by its game, so events of a game stay ordered
func (p *Producer) Publish(_ context.Context, event domain.GameEvent) error {
	msg, err := EventMessage(p.topic, event)
	if err != nil {
		return err
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("sending %s event: %w", event.Type, err)
	}
	p.logger.Debug("published game event",
		"game_id", event.GameID,
		"type", event.Type,
		"partition", partition,
		"offset", offset,
	)
	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.producer.Close()
}

// EventMessage builds the Kafka message for a game event
func EventMessage(topic string, event domain.GameEvent) (*sarama.ProducerMessage, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshaling event: %w", err)
	}
	return &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.GameID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("type"), Value: []byte(event.Type)},
		},
	}, nil
}

// CommandMessage builds the Kafka message for a game command
func CommandMessage(topic string, cmd domain.GameCommand) (*sarama.ProducerMessage, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("marshaling command: %w", err)
	}
	return &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(cmd.GameID),
		Value: sarama.ByteEncoder(data),
	}, nil
}
