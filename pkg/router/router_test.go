package router

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verdict/pkg/behavior"
	"verdict/pkg/cel"
	"verdict/pkg/violation"
)

func tag(name string) behavior.Step[map[string]any] {
	return func(c behavior.StepContext[map[string]any]) behavior.Outcome[map[string]any] {
		return behavior.Pass(c.WithAttr("handled_by", name))
	}
}

func TestParseRouteKey(t *testing.T) {
	tests := []struct {
		in        string
		want      RouteKey
		wantError bool
	}{
		{in: "DEFAULT", want: Default},
		{in: "dead_letter", want: DeadLetter},
		{in: "ext:audit", want: Extension("audit")},
		{in: "ext:", wantError: true},
		{in: "SIDEWAYS", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRouteKey(tt.in)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, must(ParseRouteKey(got.String())))
		})
	}
}

func must(k RouteKey, err error) RouteKey {
	if err != nil {
		panic(err)
	}
	return k
}

func TestRouteTable_ResolveMissPanics(t *testing.T) {
	table := NewRouteTable[map[string]any]().Register(Default, tag("default"))

	assert.NotPanics(t, func() { table.Resolve(Default) })
	assert.Panics(t, func() { table.Resolve(Extension("nope")) })
	assert.Panics(t, func() { table.Resolve(DeadLetter) })

	_, ok := table.Lookup(Extension("nope"))
	assert.False(t, ok)
	assert.Equal(t, []RouteKey{Default}, table.Keys())
}

func TestSelect_RunsOneBranch(t *testing.T) {
	table := NewRouteTable[map[string]any]().
		Register(Default, tag("default")).
		Register(Extension("vip"), tag("vip"))

	decider := func(c behavior.StepContext[map[string]any]) RouteKey {
		if c.Payload()["vip"] == true {
			return Extension("vip")
		}
		return Default
	}
	step := Select(decider, table.Resolve)

	out := step(behavior.NewContext(map[string]any{"vip": true}))
	require.True(t, out.IsSuccess())
	handled, _ := out.Value().Attr("handled_by")
	assert.Equal(t, "vip", handled)
	key, _ := behavior.Get(out.Value(), RouteAttr)
	assert.Equal(t, Extension("vip"), key)

	out = step(behavior.NewContext(map[string]any{}))
	handled, _ = out.Value().Attr("handled_by")
	assert.Equal(t, "default", handled)
}

func TestExpressionDecider(t *testing.T) {
	ev, err := cel.NewEvaluator()
	require.NoError(t, err)

	rules := []RouteRule{
		{Name: "big", Expression: `root.amount > 1000.0`, Priority: 1, Key: Extension("review")},
		{Name: "blocked", Expression: `root.country == "XX"`, Priority: 10, Key: DeadLetter},
		{Name: "broken", Expression: `root.missing == 1`, Priority: 5, Key: Extension("never")},
	}
	bind := func(c behavior.StepContext[map[string]any]) (any, map[string]any) { return c.Payload(), nil }

	var failed []string
	decide, err := ExpressionDecider(ev, rules, Default, bind, nil, func(r RouteRule, _ error) {
		failed = append(failed, r.Name)
	})
	require.NoError(t, err)

	assert.Equal(t, DeadLetter, decide(behavior.NewContext(map[string]any{"amount": 5000.0, "country": "XX"})))
	assert.Equal(t, Extension("review"), decide(behavior.NewContext(map[string]any{"amount": 5000.0, "country": "DE"})))
	assert.Equal(t, Default, decide(behavior.NewContext(map[string]any{"amount": 1.0, "country": "DE"})))
	assert.Contains(t, failed, "broken")

	_, err = ExpressionDecider(ev, []RouteRule{{Name: "bad", Expression: `"x"`}}, Default, bind, nil, nil)
	assert.Error(t, err)
}

func TestSplit(t *testing.T) {
	key := behavior.Key[[]any]("lines")
	hasLines := func(c behavior.StepContext[map[string]any]) bool { _, ok := c.Payload()["lines"]; return ok }
	step := Split(hasLines, JSONItems[map[string]any]("lines"), nil, key)

	t.Run("stores items", func(t *testing.T) {
		out := step(behavior.NewContext(map[string]any{"lines": []any{map[string]any{"sku": "a"}, map[string]any{"sku": "b"}}}))
		require.True(t, out.IsSuccess())
		items, ok := behavior.Get(out.Value(), key)
		require.True(t, ok)
		assert.Len(t, items, 2)
	})

	t.Run("predicate not matched", func(t *testing.T) {
		out := step(behavior.NewContext(map[string]any{}))
		require.True(t, out.IsFailure())
		assert.Equal(t, []string{ViolationSplitNotMatched}, out.Err().Names())
	})

	t.Run("empty list rejected by default verifier", func(t *testing.T) {
		out := step(behavior.NewContext(map[string]any{"lines": []any{}}))
		require.True(t, out.IsFailure())
		assert.True(t, out.Err().Has(ViolationSplitRejected))
	})
}

func TestEach_AccumulatesItemFailures(t *testing.T) {
	key := behavior.Key[[]int]("numbers")
	positive := func(c behavior.StepContext[int]) behavior.Outcome[int] {
		if c.Payload() <= 0 {
			return behavior.Fail[int](violation.Violate("NOT_POSITIVE", fmt.Sprintf("item %d must be positive", c.Payload())))
		}
		return behavior.Pass(c.WithPayload(c.Payload() * 10))
	}
	step := Each[string](key, positive)

	ok := step(behavior.Set(behavior.NewContext("parent"), key, []int{1, 2}))
	require.True(t, ok.IsSuccess())
	got, _ := behavior.Get(ok.Value(), key)
	assert.Equal(t, []int{10, 20}, got)

	bad := step(behavior.Set(behavior.NewContext("parent"), key, []int{1, -1, -2}))
	require.True(t, bad.IsFailure())
	assert.Equal(t, 2, bad.Err().Len())
	steps := []string{bad.Err().All()[0].StepName, bad.Err().All()[1].StepName}
	assert.Equal(t, []string{"numbers[1]", "numbers[2]"}, steps)
}

func TestEach_ItemContextsAreIsolated(t *testing.T) {
	key := behavior.Key[[]int]("numbers")
	writer := func(c behavior.StepContext[int]) behavior.Outcome[int] {
		return behavior.Pass(c.WithAttr("seen", c.Payload()))
	}

	out := Each[string](key, writer)(behavior.Set(behavior.NewContext("parent"), key, []int{1, 2}))

	require.True(t, out.IsSuccess())
	_, leaked := out.Value().Attr("seen")
	assert.False(t, leaked)
}
