package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verdict/internal/config"
	"verdict/internal/logger"
	"verdict/pkg/inbound"
)

type fakeWriter struct {
	mu       sync.Mutex
	failures int
	messages []kafka.Message
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failures > 0 {
		w.failures--
		return errors.New("leader not available")
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func sampleMessage() DecisionMessage {
	return DecisionMessage{
		ID:        "d-1",
		Pipeline:  "orders",
		Source:    inbound.SourceMQ,
		SourceID:  "msg-1",
		Decision:  inbound.Record(inbound.Dlq{Reason: "claims expired"}),
		DecidedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, "decisions", logger.NopLogger())

	require.NoError(t, p.Publish(context.Background(), sampleMessage()))
	require.Len(t, w.messages, 1)

	m := w.messages[0]
	assert.Equal(t, "msg-1", string(m.Key))
	assert.Equal(t, "dlq", string(m.Headers[0].Value))

	var decoded DecisionMessage
	require.NoError(t, json.Unmarshal(m.Value, &decoded))
	assert.Equal(t, inbound.SourceMQ, decoded.Source)
	assert.Equal(t, inbound.KindDlq, decoded.Decision.Kind)
	assert.Equal(t, "claims expired", decoded.Decision.Reason)
}

func TestKafkaPublisher_RetriesTransientWrites(t *testing.T) {
	w := &fakeWriter{failures: 2}
	p := newKafkaPublisher(w, "decisions", logger.NopLogger())
	p.policy.InitialInterval = time.Millisecond
	p.policy.MaxInterval = time.Millisecond

	require.NoError(t, p.Publish(context.Background(), sampleMessage()))
	assert.Len(t, w.messages, 1)
}

func TestKafkaPublisher_GivesUp(t *testing.T) {
	w := &fakeWriter{failures: 10}
	p := newKafkaPublisher(w, "decisions", logger.NopLogger())
	p.policy.InitialInterval = time.Millisecond
	p.policy.MaxInterval = time.Millisecond

	assert.Error(t, p.Publish(context.Background(), sampleMessage()))
	assert.Empty(t, w.messages)
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewPublisher_DisabledWithoutBrokers(t *testing.T) {
	p := NewPublisher(config.KafkaConfig{}, logger.NopLogger())
	assert.IsType(t, NopPublisher{}, p)
	assert.NoError(t, p.Publish(context.Background(), sampleMessage()))
}
