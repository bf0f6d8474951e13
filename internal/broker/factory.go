package broker

import (
	"verdict/internal/config"
	"verdict/internal/logger"
)

// NewPublisher returns a Kafka publisher when brokers are configured and a
// NopPublisher otherwise.
func NewPublisher(cfg config.KafkaConfig, log logger.Logger) Publisher {
	if !cfg.Enabled() {
		log.Infow("Decision publishing disabled, no Kafka brokers configured")
		return NopPublisher{}
	}
	return NewKafkaPublisher(cfg, log)
}
