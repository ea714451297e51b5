package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/jpillora/backoff"
	"github.com/shadda-scores/internal/config"
	"github.com/shadda-scores/internal/domain"
)

// CommandHandler applies game commands
type CommandHandler interface {
	HandleCommand(ctx context.Context, cmd domain.GameCommand) error
}

// Consumer consumes game commands from Kafka
type Consumer struct {
	config        *config.KafkaConfig
	handler       CommandHandler
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan bool
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, handler CommandHandler, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:        cfg,
		handler:       handler,
		logger:        logger,
		consumerGroup: consumerGroup,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan bool),
	}, nil
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.CommandsTopic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{
				consumer: c,
				ready:    c.ready,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.CommandsTopic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}

			if c.ctx.Err() != nil {
				return
			}

			c.ready = make(chan bool)
		}
	}()

	<-c.ready
	c.logger.Info("Kafka consumer ready")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ready    chan bool
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim collects commands from a partition and applies them in
// arrival order, a batch at a time.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	cfg := h.consumer.config
	batch := make([]domain.GameCommand, 0, cfg.BatchSize)
	batchTimer := time.NewTimer(cfg.BatchTimeout)
	defer batchTimer.Stop()

	processBatch := func() {
		if len(batch) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		failed := applyBatch(ctx, h.consumer.handler, batch, cfg.RetryAttempts, cfg.RetryDelay, h.consumer.logger)
		h.consumer.logger.Debug("processed batch", "batch_size", len(batch), "failed", failed)

		batch = batch[:0]
	}

	for {
		select {
		case <-session.Context().Done():
			processBatch()
			return nil

		case <-batchTimer.C:
			processBatch()
			batchTimer.Reset(cfg.BatchTimeout)

		case message, ok := <-claim.Messages():
			if !ok {
				processBatch()
				return nil
			}

			cmd, err := DecodeCommand(message.Value)
			if err != nil {
				h.consumer.logger.Warn("dropping command",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				session.MarkMessage(message, "")
				continue
			}

			batch = append(batch, cmd)
			session.MarkMessage(message, "")

			if len(batch) >= cfg.BatchSize {
				processBatch()
				batchTimer.Reset(cfg.BatchTimeout)
			}
		}
	}
}

// DecodeCommand parses and validates a command message
func DecodeCommand(data []byte) (domain.GameCommand, error) {
	var cmd domain.GameCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, fmt.Errorf("unmarshaling command: %w", err)
	}
	if cmd.GameID == "" {
		return cmd, fmt.Errorf("command without game_id: %w", domain.ErrInvalidRequest)
	}

	switch cmd.Type {
	case domain.CommandUtterance:
		if cmd.Transcript == "" {
			return cmd, fmt.Errorf("utterance without transcript: %w", domain.ErrInvalidRequest)
		}
	case domain.CommandStage:
		if cmd.GamePlayerID == "" {
			return cmd, fmt.Errorf("stage without game_player_id: %w", domain.ErrInvalidRequest)
		}
	case domain.CommandSubmit:
	default:
		return cmd, fmt.Errorf("unknown command type %q: %w", cmd.Type, domain.ErrInvalidRequest)
	}
	return cmd, nil
}

// applyBatch applies commands in order. Rejected commands are logged and
// skipped; other failures are retried with backoff starting at delay. It
// returns how many commands failed.
func applyBatch(ctx context.Context, handler CommandHandler, batch []domain.GameCommand, attempts int, delay time.Duration, logger *slog.Logger) int {
	if attempts < 1 {
		attempts = 1
	}

	failed := 0
	for _, cmd := range batch {
		b := &backoff.Backoff{
			Min:    delay,
			Max:    8 * delay,
			Factor: 2,
			Jitter: true,
		}

		var err error
	retry:
		for attempt := 1; attempt <= attempts; attempt++ {
			err = handler.HandleCommand(ctx, cmd)
			if err == nil || domain.IsClientError(err) || attempt == attempts {
				break
			}
			select {
			case <-ctx.Done():
				break retry
			case <-time.After(b.Duration()):
			}
		}
		if err != nil {
			failed++
			logger.Warn("command failed",
				"game_id", cmd.GameID,
				"type", cmd.Type,
				"error", err,
			)
		}
	}
	return failed
}
