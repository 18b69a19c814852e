package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/krxlab/stock-insight/internal/models"
)

// Producer publishes signal events for downstream consumers
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a producer for the signals topic
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishSignals publishes the signals generated for one stock on one
// date. Messages are keyed by stock code so a stock's signals stay in
// partition order.
func (p *Producer) PublishSignals(ctx context.Context, code string, date time.Time, signals []models.Signal) error {
	event := models.SignalEvent{
		EventID:   uuid.New().String(),
		EventType: models.EventSignalsGenerated,
		Code:      code,
		Date:      date,
		Signals:   signals,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, code, event)
}

func (p *Producer) publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
