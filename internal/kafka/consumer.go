package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/krxlab/stock-insight/internal/models"
)

// PriceRepository is the slice of the database layer the consumer needs
type PriceRepository interface {
	CreatePricePoint(p *models.PricePoint) error
}

// Consumer ingests daily price bars published by external collectors.
// Storage upserts on (code, date), so replayed or duplicated events are
// harmless.
type Consumer struct {
	reader *kafka.Reader
	repo   PriceRepository
	logger zerolog.Logger
}

// NewConsumer creates a consumer for the price-bars topic
func NewConsumer(brokers []string, topic, groupID string, repo PriceRepository, logger zerolog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader: reader,
		repo:   repo,
		logger: logger,
	}
}

// Start consumes messages until the context is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info().Str("topic", c.reader.Config().Topic).Msg("starting price bar consumer")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info().Msg("price bar consumer shutting down")
				return c.reader.Close()
			}
			c.logger.Error().Err(err).Msg("failed to read kafka message")
			continue
		}

		if err := c.processMessage(msg); err != nil {
			c.logger.Error().Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("failed to process price bar event")
			// keep consuming; a bad event must not wedge the topic
		}
	}
}

// processMessage handles a single Kafka message
func (c *Consumer) processMessage(msg kafka.Message) error {
	var event models.PriceBarEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal price bar event: %w", err)
	}

	if event.EventType != models.EventPriceBar {
		c.logger.Debug().Str("event_type", event.EventType).Msg("ignoring event type")
		return nil
	}

	bar := event.Bar
	if bar.Code == "" || bar.Date.IsZero() {
		return fmt.Errorf("price bar event %s is missing code or date", event.EventID)
	}

	if err := c.repo.CreatePricePoint(&bar); err != nil {
		return fmt.Errorf("failed to store price bar: %w", err)
	}

	c.logger.Debug().
		Str("code", bar.Code).
		Str("date", bar.Date.Format("2006-01-02")).
		Str("close", bar.Close.String()).
		Msg("stored price bar")

	return nil
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
