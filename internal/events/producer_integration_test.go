//go:build integration

package events

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saadbelcaidx/connector-os/internal/types"
)

func TestProducer_Integration(t *testing.T) {
	brokers := os.Getenv("TEST_KAFKA_BROKERS")
	if brokers == "" {
		t.Skip("TEST_KAFKA_BROKERS not set")
	}

	cfg := DefaultProducerConfig()
	cfg.Brokers = strings.Split(brokers, ",")
	cfg.TopicPrefix = "it-" + uuid.NewString()[:8] + "."

	p, err := NewProducer(cfg, nil)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, p.PublishMatches(ctx, "run-it", []types.MatchResult{
		{Entity: types.Entity{RecordKey: "job_postings:1"}, Score: 80},
	}))

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   cfg.Brokers,
		Topic:     cfg.TopicPrefix + TopicMatchScored,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  1 << 20,
	})
	defer func() { _ = r.Close() }()

	msg, err := r.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "job_postings:1", string(msg.Key))
}
