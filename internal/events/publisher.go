package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cx-tal-miterani/flight-booking-system/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/twmb/franz-go/pkg/kgo"
)

// EventTicketsPurchased is emitted once per committed purchase
const EventTicketsPurchased = "tickets.purchased"

// TicketsPurchased is the payload of a purchase event
type TicketsPurchased struct {
	EventID     string          `json:"event_id"`
	EventType   string          `json:"event_type"`
	PassengerID string          `json:"passenger_id"`
	Tickets     []models.Ticket `json:"tickets"`
	Total       decimal.Decimal `json:"total"`
	Balance     decimal.Decimal `json:"balance"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// NewTicketsPurchased builds the event for a committed purchase
func NewTicketsPurchased(passengerID string, result *models.PurchaseResult) TicketsPurchased {
	total := decimal.Zero
	for _, t := range result.Tickets {
		total = total.Add(t.Price)
	}
	return TicketsPurchased{
		EventID:     uuid.NewString(),
		EventType:   EventTicketsPurchased,
		PassengerID: passengerID,
		Tickets:     result.Tickets,
		Total:       total,
		Balance:     result.Balance,
		OccurredAt:  time.Now().UTC(),
	}
}

// Publisher publishes purchase events
type Publisher interface {
	PublishTicketsPurchased(ctx context.Context, event TicketsPurchased) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	source string
}

// PublisherConfig configures the Kafka publisher
type PublisherConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// NewKafkaPublisher connects to the brokers and verifies the connection
func NewKafkaPublisher(ctx context.Context, cfg PublisherConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = EventTicketsPurchased
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "flight-booking-producer"
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(clientID),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(10*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Kafka: %w", err)
	}

	return &KafkaPublisher{client: client, topic: topic, source: clientID}, nil
}

// PublishTicketsPurchased produces the event keyed by passenger, so one
// passenger's purchases stay ordered within a partition
func (p *KafkaPublisher) PublishTicketsPurchased(ctx context.Context, event TicketsPurchased) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.PassengerID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.EventID)},
			{Key: "source", Value: []byte(p.source)},
			{Key: "content_type", Value: []byte("application/json")},
		},
		Timestamp: event.OccurredAt,
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.EventType, err)
	}
	return nil
}

// Close flushes and closes the client
func (p *KafkaPublisher) Close() error {
	p.client.Close()
	return nil
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishTicketsPurchased(ctx context.Context, event TicketsPurchased) error {
	return nil
}

func (NopPublisher) Close() error { return nil }

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NopPublisher{}
)
