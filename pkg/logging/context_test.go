package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLogFields(t *testing.T) {
	ctx := WithTraceID(context.Background(), "t-1")
	ctx = WithMessage(ctx, "MQ", "msg-7")

	assert.Equal(t, []interface{}{"trace_id", "t-1", "source", "MQ", "source_id", "msg-7"}, GetLogFields(ctx))
	assert.Empty(t, GetLogFields(context.Background()))
	assert.Equal(t, "msg-7", GetSourceID(ctx))
}

func TestEarlyLog(t *testing.T) {
	var buf bytes.Buffer
	exitCode := -1
	l := &EarlyLog{service: "verdict", out: &buf, exit: func(code int) { exitCode = code }}

	l.Error("failed to load config: %v", "missing file")
	assert.Contains(t, buf.String(), "ERROR [verdict] failed to load config: missing file")

	l.Fatal("giving up")
	assert.Contains(t, buf.String(), "FATAL [verdict] giving up")
	assert.Equal(t, 1, exitCode)
}
