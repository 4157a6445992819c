// Package events publishes pipeline events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/saadbelcaidx/connector-os/internal/contact"
	"github.com/saadbelcaidx/connector-os/internal/types"
)

// Topics.
const (
	TopicMatchScored     = "match.scored"
	TopicContactResolved = "contact.resolved"
)

// Publisher receives pipeline events.
type Publisher interface {
	PublishMatches(ctx context.Context, runID string, results []types.MatchResult) error
	PublishContacts(ctx context.Context, runID string, results []*contact.Result) error
	Close() error
}

// Envelope wraps every event payload.
type Envelope struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// ProducerConfig configures the Kafka producer
type ProducerConfig struct {
	// Brokers is a list of Kafka broker addresses
	Brokers []string
	// TopicPrefix is prepended to every topic name, e.g. "prod."
	TopicPrefix  string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	MaxAttempts  int
}

// DefaultProducerConfig returns a ProducerConfig with sensible defaults
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		Brokers:      []string{"localhost:9092"},
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		MaxAttempts:  3,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes events to Kafka
type Producer struct {
	writer messageWriter
	prefix string
	log    *zap.Logger
	now    func() time.Time
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, log *zap.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}

	// Topic is left empty on the writer so each message names its own.
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		MaxAttempts:            cfg.MaxAttempts,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newProducer(writer, cfg.TopicPrefix, log), nil
}

func newProducer(w messageWriter, prefix string, log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Producer{writer: w, prefix: prefix, log: log.Named("events"), now: time.Now}
}

// PublishMatches publishes one match.scored event per result, keyed by
// record key.
func (p *Producer) PublishMatches(ctx context.Context, runID string, results []types.MatchResult) error {
	msgs := make([]kafka.Message, 0, len(results))
	for i := range results {
		msg, err := p.message(TopicMatchScored, runID, results[i].Entity.RecordKey, &results[i])
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return p.write(ctx, TopicMatchScored, msgs)
}

// PublishContacts publishes one contact.resolved event per found contact.
func (p *Producer) PublishContacts(ctx context.Context, runID string, results []*contact.Result) error {
	var msgs []kafka.Message
	for _, res := range results {
		if !res.Found() {
			continue
		}
		msg, err := p.message(TopicContactResolved, runID, res.Domain, res)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return p.write(ctx, TopicContactResolved, msgs)
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

func (p *Producer) message(eventType, runID, key string, payload any) (kafka.Message, error) {
	now := p.now().UTC()
	data, err := json.Marshal(Envelope{Type: eventType, RunID: runID, Timestamp: now, Payload: payload})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to serialize %s event: %w", eventType, err)
	}
	return kafka.Message{
		Topic: p.prefix + eventType,
		Key:   []byte(key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "run_id", Value: []byte(runID)},
		},
		Time: now,
	}, nil
}

func (p *Producer) write(ctx context.Context, eventType string, msgs []kafka.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to publish %s events: %w", eventType, err)
	}
	p.log.Debug("published events", zap.String("type", eventType), zap.Int("count", len(msgs)))
	return nil
}

// Nop discards every event.
type Nop struct{}

func (Nop) PublishMatches(context.Context, string, []types.MatchResult) error { return nil }
func (Nop) PublishContacts(context.Context, string, []*contact.Result) error  { return nil }
func (Nop) Close() error                                                      { return nil }
