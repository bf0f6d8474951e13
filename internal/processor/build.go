package processor

import (
	"fmt"
	"time"

	"verdict/internal/broker"
	"verdict/internal/config"
	"verdict/internal/constants"
	"verdict/internal/dedup"
	"verdict/internal/logger"
	"verdict/internal/lookup"
	"verdict/pkg/behavior"
	"verdict/pkg/cel"
	"verdict/pkg/correlation"
	"verdict/pkg/gate"
	"verdict/pkg/inbound"
	"verdict/pkg/metrics"
	"verdict/pkg/router"
	"verdict/pkg/schema"
	"verdict/pkg/tracing"
)

const FailureRoutedToDeadLetter = "ROUTED_TO_DEAD_LETTER"

// routeVariables are the names route expressions may reference besides the
// payload root.
var routeVariables = []string{"meta", "source", "source_id", "attrs"}

// New compiles the pipeline described by cfg. Every expression, schema and
// route key is checked here so that a running processor cannot hit a
// configuration fault.
func New(cfg *config.Config, deps Dependencies) (*Processor, error) {
	if deps.Logger == nil {
		deps.Logger = logger.NopLogger()
	}
	if deps.Publisher == nil {
		deps.Publisher = broker.NopPublisher{}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Evaluator == nil {
		ev, err := cel.NewEvaluator()
		if err != nil {
			return nil, fmt.Errorf("failed to create evaluator: %w", err)
		}
		deps.Evaluator = ev
	}

	b := &builder{cfg: cfg, deps: deps, log: deps.Logger.With("pipeline", cfg.Pipeline.Name)}

	schemas, err := b.metaSchemas()
	if err != nil {
		return nil, err
	}
	steps, err := b.preRouteSteps()
	if err != nil {
		return nil, err
	}
	route, err := b.routeStep()
	if err != nil {
		return nil, err
	}
	g, err := b.buildGate()
	if err != nil {
		return nil, err
	}

	return &Processor{
		name:      cfg.Pipeline.Name,
		schemas:   schemas,
		pipeline:  behavior.NewPipeline(steps...).Add(b.observe("route", route)),
		gate:      g,
		dedup:     deps.Dedup,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		clock:     deps.Clock,
	}, nil
}

type builder struct {
	cfg  *config.Config
	deps Dependencies
	log  logger.Logger
}

func (b *builder) observe(name string, step behavior.Step[Payload]) behavior.Step[Payload] {
	return tracing.Traced(name, behavior.Logged(name, step, b.log))
}

func (b *builder) metaSchemas() (inbound.MetaSchemaResolver, error) {
	table := inbound.DefaultSchemas()
	for name, s := range b.cfg.Pipeline.MetaSchemas {
		src, err := inbound.ParseSource(name)
		if err != nil {
			return nil, fmt.Errorf("pipeline.meta_schemas: %w", err)
		}
		table = table.With(src, s)
	}
	return table, nil
}

func document(p Payload) any { return p }

func (b *builder) preRouteSteps() ([]behavior.Step[Payload], error) {
	pc := b.cfg.Pipeline
	var steps []behavior.Step[Payload]

	if pc.PayloadSchema != "" {
		v, err := schema.Compile(pc.PayloadSchema)
		if err != nil {
			return nil, fmt.Errorf("pipeline.payload_schema: %w", err)
		}
		steps = append(steps, b.observe("payload-schema", schema.Step(v, document)))
	}

	if len(pc.Correlation) > 0 {
		if err := correlation.Compile(b.deps.Evaluator, pc.Correlation); err != nil {
			return nil, fmt.Errorf("pipeline.correlation: %w", err)
		}
		steps = append(steps, b.observe("correlation", correlation.Step(b.deps.Evaluator, pc.Correlation, document)))
	}

	if pc.Split.Enabled {
		split, err := splitStep(pc.Split)
		if err != nil {
			return nil, err
		}
		steps = append(steps, b.observe("split", split))
	}
	return steps, nil
}

func splitStep(sc config.SplitConfig) (behavior.Step[Payload], error) {
	attr := sc.Attr
	if attr == "" {
		attr = constants.AttrSplitItems
	}
	key := behavior.Key[[]any](attr)
	minItems := sc.MinItems

	split := router.Split(
		func(behavior.StepContext[Payload]) bool { return true },
		router.JSONItems[Payload](sc.Path),
		func(items []any) bool { return len(items) >= minItems },
		key,
	)
	if sc.ItemSchema == "" {
		return split, nil
	}

	v, err := schema.Compile(sc.ItemSchema)
	if err != nil {
		return nil, fmt.Errorf("pipeline.split.item_schema: %w", err)
	}
	item := schema.Step(v, func(i any) any { return i })
	return behavior.Chain(split, router.Each[Payload](key, item)), nil
}

// routeTable registers the core routes and the embedding program's
// extensions.
func (b *builder) routeTable() *router.RouteTable[Payload] {
	table := router.NewRouteTable[Payload]()

	standard := behavior.Identity[Payload]()
	if b.deps.Dedup != nil {
		dd := b.observe("dedup", dedup.Step(b.deps.Dedup, func(p Payload) map[string]any { return p }))
		standard = dd
		table.Register(router.Deduplicate, dd)
	}
	table.Register(router.Default, standard)

	if b.cfg.Query.Enabled && b.deps.Lookup != nil {
		enrich := behavior.Chain(
			b.querySpecBinder(),
			b.observe("lookup", lookup.Bind[Payload](b.deps.Lookup, b.cfg.Lookup.Timeout)),
			standard,
		)
		table.Register(router.Enrich, enrich)
	}

	table.Register(router.DeadLetter, deadLetter())

	for name, step := range b.deps.Extensions {
		table.Register(router.Extension(name), b.observe("ext:"+name, step))
	}
	return table
}

func deadLetter() behavior.Step[Payload] {
	return func(c behavior.StepContext[Payload]) behavior.Outcome[Payload] {
		return behavior.Pass(inbound.AddFailure(c, inbound.NewFailure(inbound.TaxonomyPermanent,
			FailureRoutedToDeadLetter, "message routed to dead letter")))
	}
}

func (b *builder) routeStep() (behavior.Step[Payload], error) {
	pc := b.cfg.Pipeline
	table := b.routeTable()

	fallback, err := router.ParseRouteKey(pc.DefaultRoute)
	if err != nil {
		return nil, fmt.Errorf("pipeline.default_route: %w", err)
	}
	if _, ok := table.Lookup(fallback); !ok {
		return nil, fmt.Errorf("pipeline.default_route: %s is not registered", fallback)
	}

	if len(pc.Routes) == 0 {
		return router.Select(func(behavior.StepContext[Payload]) router.RouteKey { return fallback }, table.Resolve), nil
	}

	rules := make([]router.RouteRule, 0, len(pc.Routes))
	for i, rc := range pc.Routes {
		key, err := router.ParseRouteKey(rc.Key)
		if err != nil {
			return nil, fmt.Errorf("pipeline.routes[%d]: %w", i, err)
		}
		if _, ok := table.Lookup(key); !ok {
			return nil, fmt.Errorf("pipeline.routes[%d]: %s is not registered", i, key)
		}
		name := rc.Name
		if name == "" {
			name = fmt.Sprintf("route-%d", i)
		}
		rules = append(rules, router.RouteRule{Name: name, Expression: rc.Expression, Priority: rc.Priority, Key: key})
	}

	decider, err := router.ExpressionDecider[Payload](b.deps.Evaluator, rules, fallback, routeBindings, routeVariables,
		func(rule router.RouteRule, err error) {
			metrics.IncRouteRuleError(rule.Name)
			b.log.Warnw("Route rule evaluation failed", "rule", rule.Name, "error", err)
		})
	if err != nil {
		return nil, fmt.Errorf("pipeline.routes: %w", err)
	}
	return router.Select(decider, table.Resolve), nil
}

func routeBindings(c behavior.StepContext[Payload]) (any, map[string]any) {
	origin, _ := behavior.Get(c, inbound.KeyOrigin)
	meta := make(map[string]any, len(origin.Meta))
	for k, v := range origin.Meta {
		meta[k] = v
	}
	return c.Payload(), map[string]any{
		"meta":      meta,
		"source":    origin.Source.String(),
		"source_id": origin.SourceID,
		"attrs":     c.Attributes(),
	}
}

func (b *builder) querySpecBinder() behavior.Step[Payload] {
	qc := b.cfg.Query
	template := inbound.QuerySpec{
		Type:     qc.Type,
		Name:     qc.Name,
		Params:   inbound.QuerySpecParams(qc.Params),
		IntoAttr: qc.Into,
	}
	reqs := make([]gate.Requirement, 0, len(qc.Required))
	for _, name := range qc.Required {
		reqs = append(reqs, gate.Requires(behavior.Key[any](name)))
	}
	return gate.QuerySpecBinder[Payload](template, reqs...)
}

func (b *builder) claimsBinder() (behavior.Step[Payload], error) {
	cc := b.cfg.Claims
	switch cc.Mode {
	case "", constants.ClaimsModeNone:
		return nil, nil
	case constants.ClaimsModeJWT:
		return gate.JWTClaimsBinder[Payload](gate.JWTConfig{
			Required:   cc.Required,
			Issuer:     cc.Issuer,
			Algorithms: cc.Algorithms,
			Keyfunc:    gate.HMACKey([]byte(cc.SigningKey)),
		}), nil
	case constants.ClaimsModeRemote:
		if b.deps.Claims == nil {
			return nil, fmt.Errorf("claims.mode remote requires a claims lookup")
		}
		return gate.RemoteClaimsBinder[Payload](b.deps.Claims, cc.Timeout, cc.Required), nil
	default:
		return nil, fmt.Errorf("claims.mode: unsupported mode %q", cc.Mode)
	}
}

func (b *builder) buildGate() (*gate.StatefulGate[Payload], error) {
	var opts []gate.Option[Payload]

	claims, err := b.claimsBinder()
	if err != nil {
		return nil, err
	}
	if claims != nil {
		opts = append(opts, gate.WithClaimsBinder(b.observe("claims", claims)))
	}
	if b.cfg.Query.Enabled {
		opts = append(opts, gate.WithQuerySpecBinder(b.observe("query-spec", b.querySpecBinder())))
	}
	if b.deps.Status != nil {
		opts = append(opts, gate.WithStatusObserver(b.observe("status", gate.StatusObserver[Payload](b.deps.Status))))
	}

	decider := gate.Decider[Payload](gate.NewRetryPolicy(b.cfg.Decision.Retry), b.deps.Clock)
	return gate.New(b.observe("decide", decider), opts...), nil
}
