package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verdict/pkg/behavior"
	apperrors "verdict/pkg/errors"
	"verdict/pkg/inbound"
	"verdict/pkg/retry"
	"verdict/pkg/task"
)

var (
	fixedNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	secret   = []byte("test-secret")
	policy   = NewRetryPolicy(retry.Policy{MaxAttempts: 3, InitialInterval: time.Second, MaxInterval: time.Minute, Multiplier: 2})
)

func clock() time.Time { return fixedNow }

func inboundContext(meta map[string]string) behavior.StepContext[string] {
	env := inbound.NewEnvelope(inbound.SourceHTTP, "msg-1", meta, "payload")
	return inbound.Translate(context.Background(), env, nil, fixedNow)
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

type memoryStatus map[string]*inbound.Status

func (m memoryStatus) Status(_ context.Context, id string) (*inbound.Status, error) {
	return m[id], nil
}

func TestRetryPolicy_Decide(t *testing.T) {
	transient := inbound.NewFailure(inbound.TaxonomyTransient, "DB_DOWN", "db down")

	tests := []struct {
		name string
		view inbound.DecisionView
		want inbound.ControlDecision
	}{
		{
			name: "no failures acks",
			view: inbound.DecisionView{Now: fixedNow},
			want: inbound.Ack{},
		},
		{
			name: "terminal status wins over failures",
			view: inbound.DecisionView{
				Now:      fixedNow,
				Status:   &inbound.Status{Kind: inbound.StatusAcked},
				Failures: inbound.Failures{transient},
			},
			want: inbound.Noop{Reason: "already ACKED"},
		},
		{
			name: "internal failure",
			view: inbound.DecisionView{
				Now:      fixedNow,
				Failures: inbound.Failures{transient, inbound.NewFailure(inbound.TaxonomyInternal, "BUG", "nil map")},
			},
			want: inbound.FailInternal{Reason: "nil map"},
		},
		{
			name: "duplicate is a noop",
			view: inbound.DecisionView{
				Now:      fixedNow,
				Failures: inbound.Failures{inbound.NewFailure(inbound.TaxonomyDuplicate, "DUP", "seen")},
			},
			want: inbound.Noop{Reason: "duplicate"},
		},
		{
			name: "expired claims dead-letter",
			view: inbound.DecisionView{
				Now:    fixedNow,
				Claims: &inbound.Claims{Expiration: fixedNow.Add(-time.Minute)},
			},
			want: inbound.Dlq{Reason: "claims expired"},
		},
		{
			name: "permanent failure dead-letters",
			view: inbound.DecisionView{
				Now:      fixedNow,
				Failures: inbound.Failures{transient, inbound.NewFailure(inbound.TaxonomyPermanent, "GONE", "order gone")},
			},
			want: inbound.Dlq{Reason: "GONE: order gone"},
		},
		{
			name: "transient failure retries with backoff",
			view: inbound.DecisionView{
				Now:      fixedNow,
				Status:   &inbound.Status{Kind: inbound.StatusRetrying, Attempt: 1},
				Failures: inbound.Failures{transient},
			},
			want: inbound.Retry{NextRetryAt: fixedNow.Add(2 * time.Second), Reason: "DB_DOWN: db down"},
		},
		{
			name: "transient failure out of attempts",
			view: inbound.DecisionView{
				Now:      fixedNow,
				Status:   &inbound.Status{Kind: inbound.StatusRetrying, Attempt: 2},
				Failures: inbound.Failures{transient},
			},
			want: inbound.Dlq{Reason: "max attempts exceeded"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Decide(tt.view))
		})
	}
}

func TestRetryPolicy_Deterministic(t *testing.T) {
	view := inbound.DecisionView{
		Now:      fixedNow,
		Status:   &inbound.Status{Kind: inbound.StatusRetrying, Attempt: 1},
		Failures: inbound.Failures{inbound.NewFailure(inbound.TaxonomyTransient, "X", "x")},
	}

	first := policy.Decide(view)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, policy.Decide(view))
	}
}

func TestDecider_RecoversPanickingPolicy(t *testing.T) {
	panicky := inbound.PolicyFunc(func(inbound.DecisionView) inbound.ControlDecision { panic("broken policy") })

	out := Decider[string](panicky, clock)(inboundContext(nil))

	require.True(t, out.IsSuccess())
	d, ok := inbound.DecisionOf(out.Value())
	require.True(t, ok)
	fi, ok := d.(inbound.FailInternal)
	require.True(t, ok)
	assert.Equal(t, "decision policy panicked", fi.Reason)
	assert.Error(t, fi.Cause)
}

func TestDecider_ClockFallback(t *testing.T) {
	later := fixedNow.Add(time.Hour)
	var seen time.Time
	policy := inbound.PolicyFunc(func(v inbound.DecisionView) inbound.ControlDecision {
		seen = v.Now
		return inbound.Ack{}
	})

	tests := []struct {
		name      string
		ctx       behavior.StepContext[string]
		wantCalls int
		wantNow   time.Time
	}{
		{name: "scope carries a reading", ctx: inboundContext(nil), wantCalls: 0, wantNow: fixedNow},
		{name: "no reading", ctx: behavior.NewContext("payload"), wantCalls: 1, wantNow: later},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			counting := func() time.Time {
				calls++
				return later
			}

			out := Decider[string](policy, counting)(tt.ctx)

			require.True(t, out.IsSuccess())
			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.wantNow, seen)
		})
	}
}

func TestStatefulGate_HappyPath(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"iss": "issuer", "sub": "user-1", "client_id": "svc", "exp": fixedNow.Add(time.Hour).Unix()})

	g := New(Decider[string](policy, clock),
		WithClaimsBinder(JWTClaimsBinder[string](JWTConfig{Required: true, Issuer: "issuer", Keyfunc: HMACKey(secret)})),
		WithStatusObserver(StatusObserver[string](memoryStatus{})),
	)

	out := g.Evaluate(inboundContext(map[string]string{"Authorization": "Bearer " + token}))

	require.True(t, out.IsSuccess())
	verdict := out.Value()
	assert.Equal(t, inbound.Ack{}, verdict.Decision)

	scope := inbound.ScopeOf(verdict.Context)
	require.NotNil(t, scope.Claims)
	assert.Equal(t, "user-1", scope.Claims.Subject)
	assert.Equal(t, "svc", scope.Claims.ClientID)
	require.NotNil(t, scope.Status)
	assert.Equal(t, inbound.StatusPending, scope.Status.Kind)
}

func TestStatefulGate_BinderFailureYieldsNoDecision(t *testing.T) {
	decided := false
	spy := inbound.PolicyFunc(func(inbound.DecisionView) inbound.ControlDecision {
		decided = true
		return inbound.Ack{}
	})
	g := New(Decider[string](spy, clock),
		WithClaimsBinder(JWTClaimsBinder[string](JWTConfig{Required: true, Keyfunc: HMACKey(secret)})),
	)

	out := g.Evaluate(inboundContext(nil))

	require.True(t, out.IsFailure())
	assert.Equal(t, []string{ViolationClaimsMissing}, out.Err().Names())
	assert.Equal(t, "claims-binder", out.Err().All()[0].StepName)
	assert.False(t, decided)
}

func TestStatefulGate_MissingDeciderFailsInternal(t *testing.T) {
	out := New[string](nil).Evaluate(inboundContext(nil))
	require.True(t, out.IsSuccess())
	assert.Equal(t, inbound.KindFailInternal, out.Value().Decision.Kind())
}

func TestJWTClaimsBinder(t *testing.T) {
	expired := signToken(t, jwt.MapClaims{"sub": "u", "exp": fixedNow.Add(-time.Hour).Unix()})
	foreign := signToken(t, jwt.MapClaims{"iss": "someone-else"})
	badSig, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u"}).SignedString([]byte("other"))
	require.NoError(t, err)

	binder := JWTClaimsBinder[string](JWTConfig{Keyfunc: HMACKey(secret)})
	strict := JWTClaimsBinder[string](JWTConfig{Issuer: "issuer", Keyfunc: HMACKey(secret)})

	t.Run("anonymous when optional", func(t *testing.T) {
		out := binder(inboundContext(nil))
		require.True(t, out.IsSuccess())
		assert.Nil(t, inbound.ScopeOf(out.Value()).Claims)
	})

	t.Run("expired token still binds", func(t *testing.T) {
		out := binder(inboundContext(map[string]string{"Authorization": "Bearer " + expired}))
		require.True(t, out.IsSuccess())
		claims := inbound.ScopeOf(out.Value()).Claims
		require.NotNil(t, claims)
		assert.True(t, claims.Expired(fixedNow))
	})

	t.Run("bad signature", func(t *testing.T) {
		out := binder(inboundContext(map[string]string{"Authorization": "Bearer " + badSig}))
		require.True(t, out.IsFailure())
		assert.True(t, out.Err().Has(ViolationClaimsInvalid))
	})

	t.Run("untrusted issuer", func(t *testing.T) {
		out := strict(inboundContext(map[string]string{"Authorization": "Bearer " + foreign}))
		require.True(t, out.IsFailure())
		assert.True(t, out.Err().Has(ViolationClaimsIssuer))
	})
}

func TestExpiredClaimsDeadLetter(t *testing.T) {
	expired := signToken(t, jwt.MapClaims{"sub": "u", "exp": fixedNow.Add(-time.Hour).Unix()})
	g := New(Decider[string](policy, clock), WithClaimsBinder(JWTClaimsBinder[string](JWTConfig{Keyfunc: HMACKey(secret)})))

	out := g.Evaluate(inboundContext(map[string]string{"Authorization": "Bearer " + expired}))

	require.True(t, out.IsSuccess())
	assert.Equal(t, inbound.Dlq{Reason: "claims expired"}, out.Value().Decision)
}

func TestRemoteClaimsBinder_Timeout(t *testing.T) {
	slow := func(ctx context.Context, token string) *task.Task[*inbound.Claims] {
		return task.New(func(ctx context.Context) (*inbound.Claims, error) {
			select {
			case <-time.After(2 * time.Second):
				return &inbound.Claims{Subject: token}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		})
	}
	binder := RemoteClaimsBinder[string](slow, 50*time.Millisecond, true)

	start := time.Now()
	out := binder(inboundContext(map[string]string{"Authorization": "opaque"}))

	require.True(t, out.IsFailure())
	assert.True(t, out.Err().Has(ViolationClaimsTimeout))
	assert.Less(t, time.Since(start), time.Second)
}

func TestRemoteClaimsBinder_Binds(t *testing.T) {
	fast := func(_ context.Context, token string) *task.Task[*inbound.Claims] {
		return task.Completed(&inbound.Claims{Subject: token})
	}

	out := RemoteClaimsBinder[string](fast, time.Second, true)(inboundContext(map[string]string{"Authorization": "Bearer opaque"}))

	require.True(t, out.IsSuccess())
	assert.Equal(t, "opaque", inbound.ScopeOf(out.Value()).Claims.Subject)
}

func TestQuerySpecBinder(t *testing.T) {
	template := inbound.QuerySpec{
		Type:     "postgresql",
		Name:     "customers",
		IntoAttr: "customer",
		Params: inbound.QuerySpecParams{
			"tenant": "${meta.tenant_id}",
			"id":     "${source_id}",
			"limit":  float64(1),
		},
	}

	t.Run("binds resolved spec", func(t *testing.T) {
		binder := QuerySpecBinder[string](template,
			Requires(behavior.Key[string]("tenant")),
			Requires(behavior.Key[int]("limit")),
		)
		out := binder(inboundContext(map[string]string{"X-Tenant-ID": "acme"}))

		require.True(t, out.IsSuccess())
		spec := inbound.ScopeOf(out.Value()).QuerySpec
		require.NotNil(t, spec)
		assert.Equal(t, "acme", spec.Params["tenant"])
		assert.Equal(t, "msg-1", spec.Params["id"])
		assert.Equal(t, "${meta.tenant_id}", template.Params["tenant"])
	})

	t.Run("reports every missing requirement", func(t *testing.T) {
		binder := QuerySpecBinder[string](template,
			Requires(behavior.Key[string]("tenant")),
			Requires(behavior.Key[string]("region")),
		)
		out := binder(inboundContext(nil))

		require.True(t, out.IsFailure())
		assert.Equal(t, 2, out.Err().Len())
		assert.True(t, out.Err().Has(behavior.ViolationMissingAttribute))
	})
}

func TestStatusObserver_ReadErrorRetries(t *testing.T) {
	broken := StatusReaderFunc(func(context.Context, string) (*inbound.Status, error) {
		return nil, errors.New("redis down")
	})
	g := New(Decider[string](policy, clock), WithStatusObserver(StatusObserver[string](broken)))

	out := g.Evaluate(inboundContext(nil))

	require.True(t, out.IsSuccess())
	retryDecision, ok := out.Value().Decision.(inbound.Retry)
	require.True(t, ok)
	assert.Equal(t, fixedNow.Add(time.Second), retryDecision.NextRetryAt)
}

func TestStatusObserver_UsesRecordedStatus(t *testing.T) {
	reader := memoryStatus{"msg-1": {Kind: inbound.StatusDeadLettered, Attempt: 3}}
	g := New(Decider[string](policy, clock), WithStatusObserver(StatusObserver[string](reader)))

	out := g.Evaluate(inboundContext(nil))

	require.True(t, out.IsSuccess())
	assert.Equal(t, inbound.KindNoop, out.Value().Decision.Kind())
}

func TestGuard(t *testing.T) {
	failing := Guard("LOOKUP", func(c behavior.StepContext[string]) (behavior.StepContext[string], error) {
		return c, apperrors.ErrNotFound
	})
	panicking := Guard("LOOKUP", func(c behavior.StepContext[string]) (behavior.StepContext[string], error) {
		panic("nil deref")
	})
	g := New(Decider[string](policy, clock))

	out := behavior.Chain(failing, g.Step())(inboundContext(nil))
	require.True(t, out.IsSuccess())
	d, _ := inbound.DecisionOf(out.Value())
	assert.Equal(t, inbound.KindDlq, d.Kind())

	out = behavior.Chain(panicking, g.Step())(inboundContext(nil))
	require.True(t, out.IsSuccess())
	d, _ = inbound.DecisionOf(out.Value())
	assert.Equal(t, inbound.KindFailInternal, d.Kind())

}
