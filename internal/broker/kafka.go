package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"verdict/internal/config"
	"verdict/internal/constants"
	"verdict/internal/logger"
	"verdict/pkg/metrics"
	"verdict/pkg/retry"
	"verdict/pkg/tracing"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	topic  string
	policy retry.Policy
	logger logger.Logger
}

func NewKafkaPublisher(cfg config.KafkaConfig, log logger.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.DecisionTopic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		Async:        false,
	}
	return newKafkaPublisher(w, cfg.DecisionTopic, log)
}

func newKafkaPublisher(w messageWriter, topic string, log logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: w,
		topic:  topic,
		policy: retry.Policy{
			MaxAttempts:     3,
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			Multiplier:      2.0,
		},
		logger: log,
	}
}

// Publish writes msg keyed by its source id, so every decision about one
// message lands on the same partition.
func (p *KafkaPublisher) Publish(ctx context.Context, msg DecisionMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal decision message: %w", err)
	}

	headers := []kafka.Header{
		{Key: "decision_kind", Value: []byte(msg.Decision.Kind)},
	}
	headers = tracing.InjectKafkaHeaders(ctx, headers)

	started := time.Now()
	err = retry.RetryWithCallback(ctx, p.policy, func() error {
		return p.writer.WriteMessages(ctx, kafka.Message{
			Key:     []byte(msg.SourceID),
			Value:   body,
			Headers: headers,
			Time:    msg.DecidedAt,
		})
	}, func(attempt int, err error, nextDelay time.Duration) {
		p.logger.WarnwCtx(ctx, "Retrying decision publish",
			"attempt", attempt,
			"next_delay", nextDelay,
			"error", err,
			"topic", p.topic,
		)
	})
	metrics.ObserveKafkaWriteDuration(p.topic, time.Since(started))
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.IncKafkaMessagesWritten(p.topic)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
