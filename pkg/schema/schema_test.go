package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verdict/pkg/behavior"
)

const orderSchema = `{
	"type": "object",
	"required": ["id", "amount"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"amount": {"type": "number", "minimum": 0}
	}
}`

func TestCompile_RejectsInvalidSchema(t *testing.T) {
	_, err := Compile(`{"type": 12}`)
	assert.Error(t, err)
}

func TestStep(t *testing.T) {
	v, err := Compile(orderSchema)
	require.NoError(t, err)
	step := Step(v, func(m map[string]any) any { return m })

	tests := []struct {
		name      string
		payload   map[string]any
		wantCount int
	}{
		{name: "valid", payload: map[string]any{"id": "o-1", "amount": 3.5}},
		{name: "missing field", payload: map[string]any{"id": "o-1"}, wantCount: 1},
		{name: "two problems", payload: map[string]any{"id": "", "amount": -1}, wantCount: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := step(behavior.NewContext(tt.payload))
			if tt.wantCount == 0 {
				assert.True(t, out.IsSuccess())
				return
			}
			require.True(t, out.IsFailure())
			assert.Equal(t, tt.wantCount, out.Err().Len())
			for _, name := range out.Err().Names() {
				assert.Equal(t, ViolationSchema, name)
			}
		})
	}
}
