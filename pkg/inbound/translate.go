package inbound

import (
	"context"
	"time"

	"verdict/pkg/behavior"
)

// Translate turns an envelope into the initial StepContext of a run: meta is
// normalized through the schema for the envelope's source and the origin is
// bound as an attribute. now stamps envelopes that carry no receive time.
func Translate[T any](ctx context.Context, env Envelope[T], resolver MetaSchemaResolver, now time.Time) behavior.StepContext[T] {
	if resolver == nil {
		resolver = DefaultSchemas()
	}
	received := env.Received()
	if received.IsZero() {
		received = now
	}
	origin := Origin{
		Source:     env.Source(),
		SourceID:   env.SourceID(),
		Meta:       resolver.Resolve(env.Source()).Normalize(env.meta),
		ReceivedAt: received,
	}

	c := behavior.NewContextWith(ctx, env.Payload())
	c = behavior.Set(c, KeyOrigin, origin)
	c = behavior.Set(c, KeyNow, now)
	return c
}
