package behavior

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verdict/pkg/violation"
)

func parseInt() Step[any] {
	return func(c StepContext[any]) Outcome[any] {
		s, _ := c.Payload().(string)
		n, err := strconv.Atoi(s)
		if err != nil {
			return Fail[any](violation.Violate("PARSE_ERROR", "not an integer: "+s))
		}
		return Pass(c.WithPayload(n))
	}
}

func double(calls *int) Step[any] {
	return func(c StepContext[any]) Outcome[any] {
		*calls++
		return Pass(c.WithPayload(c.Payload().(int) * 2))
	}
}

func TestPipeline_Apply(t *testing.T) {
	tests := []struct {
		name          string
		payload       string
		wantValue     int
		wantViolation string
		wantCalls     int
	}{
		{
			name:      "parses and doubles",
			payload:   "42",
			wantValue: 84,
			wantCalls: 1,
		},
		{
			name:          "parse failure short-circuits",
			payload:       "abc",
			wantViolation: "PARSE_ERROR",
			wantCalls:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			projected := 0
			p := NewPipeline(parseInt(), double(&calls))

			got := Apply(p, any(tt.payload), func(c StepContext[any]) int {
				projected++
				return c.Payload().(int)
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantViolation != "" {
				require.True(t, got.IsFailure())
				assert.Equal(t, []string{tt.wantViolation}, got.Err().Names())
				assert.Zero(t, projected)
				return
			}
			require.True(t, got.IsSuccess())
			assert.Equal(t, tt.wantValue, got.Value())
		})
	}
}

func TestChain_ShortCircuits(t *testing.T) {
	var invoked []string
	spy := func(name string, fail bool) Step[int] {
		return func(c StepContext[int]) Outcome[int] {
			invoked = append(invoked, name)
			if fail {
				return Fail[int](violation.Violate(name, "failed"))
			}
			return Pass(c)
		}
	}

	out := Chain(spy("a", false), spy("b", true), spy("c", false))(NewContext(1))

	require.True(t, out.IsFailure())
	assert.Equal(t, []string{"a", "b"}, invoked)
}

func TestChain_StopsOnAbort(t *testing.T) {
	reached := false
	abort := func(c StepContext[int]) Outcome[int] { return Pass(c.Abort()) }
	after := func(c StepContext[int]) Outcome[int] { reached = true; return Pass(c) }

	out := NewPipeline[int](abort, after).Run(NewContext(1))

	assert.False(t, reached)
	require.True(t, out.IsFailure())
	assert.True(t, out.Err().Has(ViolationAborted))
}

func TestWhen(t *testing.T) {
	inc := func(c StepContext[int]) Outcome[int] { return Pass(c.WithPayload(c.Payload() + 1)) }
	even := func(c StepContext[int]) bool { return c.Payload()%2 == 0 }

	step := When(even, Step[int](inc))

	assert.Equal(t, 3, step(NewContext(2)).Value().Payload())
	assert.Equal(t, 3, step(NewContext(3)).Value().Payload())
}

func TestFilter_AppendsToExistingViolations(t *testing.T) {
	warn := func(c StepContext[int]) Outcome[int] {
		return Pass(c.AddViolations(violation.Violate("SOFT", "soft warning", violation.Warning())))
	}
	step := Step[int](warn).Filter(
		func(n int) bool { return n > 10 },
		func(n int) violation.Violations { return violation.Violate("TOO_SMALL", strconv.Itoa(n)) },
	)

	out := step(NewContext(3))

	require.True(t, out.IsFailure())
	assert.Equal(t, []string{"SOFT", "TOO_SMALL"}, out.Err().Names())
	assert.True(t, step(NewContext(30)).IsSuccess())
}

func TestRecover_ClearsViolations(t *testing.T) {
	failing := func(c StepContext[int]) Outcome[int] {
		return Fail[int](violation.Violate("BOOM", "boom"))
	}
	step := Step[int](failing).Recover(func(violation.Violations) (int, bool) { return 7, true })

	out := step(NewContext(1).WithAttr("k", "v").AddViolations(violation.Violate("OLD", "old")))

	require.True(t, out.IsSuccess())
	c := out.Value()
	assert.Equal(t, 7, c.Payload())
	assert.True(t, c.Violations().IsEmpty())
	v, ok := c.Attr("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestRecover_DeclinedKeepsFailure(t *testing.T) {
	failing := func(c StepContext[int]) Outcome[int] {
		return Fail[int](violation.Violate("BOOM", "boom"))
	}
	out := Step[int](failing).Recover(func(violation.Violations) (int, bool) { return 0, false })(NewContext(1))
	assert.True(t, out.IsFailure())
}

func TestPeekAndNamed(t *testing.T) {
	var seen []string
	failing := Step[int](func(c StepContext[int]) Outcome[int] {
		return Fail[int](violation.Violate("BOOM", "boom"))
	}).Named("exploder").PeekOnError(func(v violation.Violations) {
		seen = append(seen, v.All()[0].StepName)
	})
	ok := Identity[int]().Peek(func(c StepContext[int]) { seen = append(seen, "ok") })

	failing(NewContext(1))
	ok(NewContext(1))

	assert.Equal(t, []string{"exploder", "ok"}, seen)
}

func TestStepContext_CopyOnWrite(t *testing.T) {
	base := NewContext(1).WithAttr("a", 1)
	left := base.WithAttr("b", 2)
	right := base.WithAttr("b", 3)

	_, inBase := base.Attr("b")
	assert.False(t, inBase)
	l, _ := left.Attr("b")
	r, _ := right.Attr("b")
	assert.Equal(t, 2, l)
	assert.Equal(t, 3, r)
}
