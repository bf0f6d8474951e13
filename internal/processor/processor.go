// Package processor assembles the configured decision pipeline and runs
// inbound envelopes through it.
package processor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"verdict/internal/broker"
	"verdict/internal/dedup"
	"verdict/internal/logger"
	"verdict/internal/lookup"
	"verdict/pkg/behavior"
	"verdict/pkg/cel"
	"verdict/pkg/gate"
	"verdict/pkg/inbound"
	"verdict/pkg/logging"
	"verdict/pkg/metrics"
	"verdict/pkg/result"
	"verdict/pkg/router"
	"verdict/pkg/tracing"
	"verdict/pkg/violation"
)

// Payload is the decoded message body every pipeline step sees.
type Payload = map[string]any

// Outcome is what a completed run hands back to the host.
type Outcome struct {
	Decision   inbound.ControlDecision
	Violations violation.Violations
	Route      string
	Failures   inbound.Failures
	Attributes map[string]any
	Payload    Payload
}

func (o Outcome) Record() inbound.DecisionRecord {
	return inbound.Record(o.Decision)
}

// Dependencies are the collaborators New cannot build from configuration
// alone. Nil members disable the stages that need them.
type Dependencies struct {
	Evaluator *cel.Evaluator
	Status    gate.StatusReader
	Lookup    lookup.Provider
	Dedup     *dedup.Service
	Claims    gate.ClaimsLookup
	Publisher broker.Publisher
	Logger    logger.Logger
	Clock     func() time.Time

	// Extensions are registered as "ext:<name>" routes.
	Extensions map[string]behavior.Step[Payload]
}

type Processor struct {
	name      string
	schemas   inbound.MetaSchemaResolver
	pipeline  *behavior.Pipeline[Payload]
	gate      *gate.StatefulGate[Payload]
	dedup     *dedup.Service
	publisher broker.Publisher
	logger    logger.Logger
	clock     func() time.Time
}

// Process translates env and runs it through the pipeline and the gate. A
// Failure means the message could not be evaluated; its violations say why.
func (p *Processor) Process(ctx context.Context, env inbound.Envelope[Payload]) result.Result[violation.Violations, Outcome] {
	started := time.Now()

	ctx = logging.WithMessage(tracing.FromMeta(ctx, env.Meta()), env.Source().String(), env.SourceID())
	ctx, span := tracing.GetTracer("verdict-processor").Start(ctx, "verdict.process")
	defer span.End()
	if sc := span.SpanContext(); sc.HasTraceID() {
		ctx = logging.WithTraceID(ctx, sc.TraceID().String())
	}

	var claims *dedup.Claims
	if p.dedup != nil {
		ctx, claims = dedup.WithClaims(ctx)
	}

	initial := inbound.Translate(ctx, env, p.schemas, p.clock())
	verdict := result.FlatMap(p.pipeline.Run(initial), p.gate.Evaluate)
	out := result.Map(verdict, outcomeOf)

	if out.IsFailure() {
		p.release(ctx, claims)
		p.rejected(ctx, out.Err(), time.Since(started))
		return out
	}
	if redelivered(out.Value().Decision) {
		p.release(ctx, claims)
	}
	p.decided(ctx, out.Value(), time.Since(started))
	return out
}

// redelivered reports whether the host is expected to hand the message in
// again after this decision.
func redelivered(d inbound.ControlDecision) bool {
	switch d.Kind() {
	case inbound.KindRetry, inbound.KindFailInternal:
		return true
	default:
		return false
	}
}

// release hands back the duplicate-detection fingerprints claimed by a run
// whose message will come back, so the redelivery is evaluated afresh.
func (p *Processor) release(ctx context.Context, claims *dedup.Claims) {
	if claims == nil {
		return
	}
	if err := p.dedup.Release(ctx, claims); err != nil {
		p.logger.WarnwCtx(ctx, "Failed to release dedup fingerprint", "error", err)
	}
}

func outcomeOf(v gate.Verdict[Payload]) Outcome {
	o := Outcome{
		Decision:   v.Decision,
		Violations: v.Violations,
		Attributes: v.Context.Attributes(),
		Payload:    v.Context.Payload(),
	}
	if key, ok := behavior.Get(v.Context, router.RouteAttr); ok {
		o.Route = key.String()
	}
	o.Failures, _ = behavior.Get(v.Context, inbound.KeyFailures)
	return o
}

func (p *Processor) rejected(ctx context.Context, v violation.Violations, elapsed time.Duration) {
	metrics.ObservePipelineDuration(elapsed, "rejected")
	for _, name := range v.Names() {
		metrics.IncRejection(name)
	}
	p.logger.InfowCtx(ctx, "Message rejected",
		"pipeline", p.name,
		"violations", v.Names(),
		"reason", v.CollectMessages(),
	)
}

func (p *Processor) decided(ctx context.Context, o Outcome, elapsed time.Duration) {
	kind := string(o.Decision.Kind())
	metrics.ObservePipelineDuration(elapsed, kind)
	metrics.IncDecision(kind)
	for _, f := range o.Failures {
		metrics.IncFailure(string(f.Taxonomy))
	}
	if o.Route != "" {
		metrics.IncRouteSelection(o.Route)
	}

	p.logger.InfowCtx(ctx, "Decision rendered",
		"pipeline", p.name,
		"decision", kind,
		"reason", inbound.Reason(o.Decision),
		"route", o.Route,
		"failures", o.Failures.Codes(),
	)

	msg := broker.DecisionMessage{
		ID:         uuid.NewString(),
		Pipeline:   p.name,
		Source:     inbound.SourceOther,
		Route:      o.Route,
		Decision:   o.Record(),
		Failures:   o.Failures.Codes(),
		Violations: o.Violations.Names(),
		DecidedAt:  p.clock(),
		TraceID:    logging.GetTraceID(ctx),
	}
	if origin, ok := behavior.Lookup(o.Attributes, inbound.KeyOrigin); ok {
		msg.Source = origin.Source
		msg.SourceID = origin.SourceID
	}
	if err := p.publisher.Publish(ctx, msg); err != nil {
		p.logger.ErrorwCtx(ctx, "Failed to publish decision", "error", err)
	}
}
