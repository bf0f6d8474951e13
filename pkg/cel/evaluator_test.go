package cel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvaluator(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)
	assert.NotNil(t, eval)
}

func TestValidate(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		vars      []string
		wantError bool
	}{
		{
			name: "root field comparison",
			expr: `root.status == "active"`,
		},
		{
			name: "declared variable",
			expr: `meta.tenant_id == "acme"`,
			vars: []string{"meta"},
		},
		{
			name: "string extension",
			expr: `root.email.indexOf("@") > 0`,
		},
		{
			name:      "undeclared variable",
			expr:      `meta.tenant_id == "acme"`,
			wantError: true,
		},
		{
			name:      "invalid syntax",
			expr:      `invalid syntax here!!!`,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.Validate(tt.expr, tt.vars...)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateBool(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	assert.NoError(t, eval.ValidateBool(`root.amount > 100.0`))
	assert.NoError(t, eval.ValidateBool(`root.flag`))
	assert.Error(t, eval.ValidateBool(`"constant"`))
}

func TestEvaluate(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	ctx := context.Background()
	root := map[string]any{
		"status": "active",
		"amount": 150.0,
		"email":  "user@example.com",
		"user":   map[string]any{"tier": "premium"},
	}
	vars := map[string]any{
		"meta":   map[string]string{"tenant_id": "acme"},
		"source": "HTTP",
	}

	tests := []struct {
		name      string
		expr      string
		want      any
		wantError bool
	}{
		{name: "field access", expr: `root.status`, want: "active"},
		{name: "nested field", expr: `root.user.tier == "premium"`, want: true},
		{name: "numeric comparison", expr: `root.amount > 200.0`, want: false},
		{name: "variable access", expr: `meta.tenant_id + "/" + source`, want: "acme/HTTP"},
		{name: "presence test", expr: `has(root.user.tier) && !has(root.user.name)`, want: true},
		{name: "string size", expr: `root.email.size()`, want: int64(16)},
		{name: "upperAscii", expr: `root.status.upperAscii()`, want: "ACTIVE"},
		{name: "missing key", expr: `root.nope == 1`, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := eval.Evaluate(ctx, tt.expr, vars, root)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateBool(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	ok, err := eval.EvaluateBool(context.Background(), `root.n % 2 == 0`, nil, map[string]any{"n": 4})
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = eval.EvaluateBool(context.Background(), `root.n`, nil, map[string]any{"n": 4})
	assert.Error(t, err)
}

func TestSetValue(t *testing.T) {
	eval, err := NewEvaluator()
	require.NoError(t, err)

	tests := []struct {
		name      string
		expr      string
		root      any
		want      map[string]any
		wantError bool
	}{
		{
			name: "creates intermediate maps",
			expr: `root.customer.profile.tier`,
			root: map[string]any{},
			want: map[string]any{"customer": map[string]any{"profile": map[string]any{"tier": "gold"}}},
		},
		{
			name: "without root prefix",
			expr: `customer`,
			root: map[string]any{"customer": "old"},
			want: map[string]any{"customer": "gold"},
		},
		{
			name: "index syntax",
			expr: `root["x-y"].z`,
			root: map[string]any{},
			want: map[string]any{"x-y": map[string]any{"z": "gold"}},
		},
		{
			name:      "non-map intermediate",
			expr:      `root.a.b`,
			root:      map[string]any{"a": 1},
			wantError: true,
		},
		{
			name:      "not a path",
			expr:      `root.a + 1`,
			root:      map[string]any{},
			wantError: true,
		},
		{
			name:      "root is not a map",
			expr:      `root.a`,
			root:      []int{1},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := eval.SetValue(tt.expr, tt.root, "gold")
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tt.root)
		})
	}
}
