package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Producer handles Kafka event emission
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// AssetEvent represents a lifecycle event about a labelled asset
type AssetEvent struct {
	EventType  string          `json:"event_type"` // asset.created, asset.updated, asset.deleted
	TenantID   string          `json:"tenant_id"`
	EntityID   string          `json:"entity_id"`
	EntityType string          `json:"entity_type"`
	ShortID    models.ShortID  `json:"short_id,omitempty"`
	Label      string          `json:"label,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// LabelEvent represents an event about a printed label's lifecycle
type LabelEvent struct {
	EventType  string         `json:"event_type"` // label.bound, label.cancelled
	TenantID   string         `json:"tenant_id"`
	ShortID    models.ShortID `json:"short_id"`
	Label      string         `json:"label,omitempty"`
	EntityID   string         `json:"entity_id,omitempty"`
	EntityType string         `json:"entity_type,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// CableEventEndpoint is one endpoint of a cable event payload
type CableEventEndpoint struct {
	PortID  string         `json:"port_id"`
	EndType string         `json:"end_type"`
	ShortID models.ShortID `json:"short_id,omitempty"`
}

// CableEvent represents a connect or disconnect of a cable
type CableEvent struct {
	EventType string               `json:"event_type"` // cable.connected, cable.disconnected
	TenantID  string               `json:"tenant_id"`
	CableID   string               `json:"cable_id"`
	Category  string               `json:"category,omitempty"`
	Endpoints []CableEventEndpoint `json:"endpoints,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// PublishAssetEvent publishes an asset lifecycle event to Kafka
func (p *Producer) PublishAssetEvent(ctx context.Context, event *AssetEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishAssetEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.EntityID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "tenant_id", Value: []byte(event.TenantID)},
			{Key: "entity_type", Value: []byte(event.EntityType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish asset event")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type":  event.EventType,
		"entity_id":   event.EntityID,
		"entity_type": event.EntityType,
	}).Debug("Published asset event")

	return nil
}

// PublishLabelEvent publishes a label lifecycle event to Kafka
func (p *Producer) PublishLabelEvent(ctx context.Context, event *LabelEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishLabelEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.Label),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "tenant_id", Value: []byte(event.TenantID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish label event")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"short_id":   event.ShortID,
	}).Debug("Published label event")

	return nil
}

// PublishCableEvent publishes a cable connect or disconnect event to Kafka
func (p *Producer) PublishCableEvent(ctx context.Context, event *CableEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishCableEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.CableID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "tenant_id", Value: []byte(event.TenantID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish cable event")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"cable_id":   event.CableID,
	}).Debug("Published cable event")

	return nil
}
