package broker

import (
	"context"
	"time"

	"verdict/pkg/inbound"
)

// DecisionMessage is the audit record published for every rendered decision.
type DecisionMessage struct {
	ID         string                 `json:"id"`
	Pipeline   string                 `json:"pipeline"`
	Source     inbound.Source         `json:"source"`
	SourceID   string                 `json:"source_id"`
	Route      string                 `json:"route,omitempty"`
	Decision   inbound.DecisionRecord `json:"decision"`
	Failures   []string               `json:"failures,omitempty"`
	Violations []string               `json:"violations,omitempty"`
	DecidedAt  time.Time              `json:"decided_at"`
	TraceID    string                 `json:"trace_id,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, msg DecisionMessage) error
	Close() error
}

// NopPublisher discards every message.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, DecisionMessage) error { return nil }
func (NopPublisher) Close() error                                  { return nil }
