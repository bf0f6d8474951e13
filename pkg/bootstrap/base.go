// Package bootstrap holds the wiring shared by verdict commands: the
// decision publisher and the stores the pipeline reads from.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"verdict/internal/broker"
	"verdict/internal/config"
	"verdict/internal/logger"
)

type Base struct {
	Config    *config.Config
	Logger    logger.Logger
	Publisher broker.Publisher
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config:    cfg,
		Logger:    log,
		Publisher: broker.NopPublisher{},
	}
}

// InitPublisher replaces the no-op publisher with the configured decision
// stream.
func (b *Base) InitPublisher() {
	b.Publisher = broker.NewPublisher(b.Config.Broker.Kafka, b.Logger)
}

// Shutdown closes the publisher, then runs release. Every failure is
// reported; one does not stop the others.
func (b *Base) Shutdown(ctx context.Context, release func(ctx context.Context) []error) error {
	b.Logger.InfowCtx(ctx, "Shutting down", "pipeline", b.Config.Pipeline.Name)

	var errs []error
	if err := b.Publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("publisher close error: %w", err))
	}
	if release != nil {
		errs = append(errs, release(ctx)...)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown errors: %w", err)
	}
	b.Logger.InfowCtx(ctx, "Shutdown complete")
	return nil
}
