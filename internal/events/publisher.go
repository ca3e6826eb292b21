package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"travel-booking/internal/observability"
)

const (
	BookingCreated       = "booking.created"
	BookingCancelled     = "booking.cancelled"
	BookingStatusChanged = "booking.status_changed"
)

// BookingEvent is the payload written to the booking topic, keyed by booking id.
type BookingEvent struct {
	Type        string    `json:"type"`
	BookingID   uuid.UUID `json:"booking_id"`
	UserID      uuid.UUID `json:"user_id"`
	PackageID   uuid.UUID `json:"package_id"`
	Status      string    `json:"status"`
	TotalAmount int       `json:"total_amount"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event BookingEvent) error
	Close() error
}

// Writer is the part of kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer Writer
}

// NewKafkaPublisher writes to topic on a comma separated broker list.
func NewKafkaPublisher(brokers, topic string) *KafkaPublisher {
	addrs := make([]string, 0)
	for _, broker := range strings.Split(brokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			addrs = append(addrs, broker)
		}
	}

	return NewKafkaPublisherWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(addrs...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	})
}

func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event BookingEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal booking event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.BookingID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write booking event: %w", err)
	}

	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher records events in the application log. It is used when no
// broker is configured.
type LogPublisher struct {
	logger *observability.Logger
}

func NewLogPublisher(logger *observability.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event BookingEvent) error {
	p.logger.Info("booking_event", map[string]any{
		"type":         event.Type,
		"booking_id":   event.BookingID.String(),
		"user_id":      event.UserID.String(),
		"status":       event.Status,
		"total_amount": event.TotalAmount,
	})
	return nil
}

func (p *LogPublisher) Close() error { return nil }
