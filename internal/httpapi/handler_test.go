package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "verdict/docs"
	"verdict/internal/config"
	"verdict/internal/logger"
	"verdict/internal/processor"
	"verdict/pkg/health"
	"verdict/pkg/inbound"
	"verdict/pkg/ratelimit"
	"verdict/pkg/retry"
)

func newProcessor(t *testing.T) *processor.Processor {
	t.Helper()
	cfg := &config.Config{
		Pipeline: config.PipelineConfig{
			Name:          "orders",
			DefaultRoute:  "DEFAULT",
			PayloadSchema: `{"type": "object", "required": ["order_id"]}`,
			Routes: []config.RouteConfig{
				{Name: "poison", Expression: `root.order_id == "poison"`, Key: "DEAD_LETTER"},
			},
		},
		Decision: config.DecisionConfig{Retry: retry.DefaultPolicy()},
	}
	p, err := processor.New(cfg, processor.Dependencies{
		Clock: func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return p
}

func newServer(t *testing.T, opts RouterOptions) http.Handler {
	t.Helper()
	cfg := &config.Config{Server: config.ServerConfig{MaxBodyBytes: 1024, Swagger: true}}
	return NewRouter(cfg, NewHandler(newProcessor(t), logger.NopLogger()), logger.NopLogger(), opts)
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/decisions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)
	return w
}

func TestDecide(t *testing.T) {
	srv := newServer(t, RouterOptions{})

	tests := []struct {
		name     string
		body     string
		wantCode int
		check    func(t *testing.T, body []byte)
	}{
		{
			name:     "ack",
			body:     `{"source": "HTTP", "source_id": "m-1", "payload": {"order_id": "o-1"}}`,
			wantCode: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var resp DecisionResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, "m-1", resp.SourceID)
				assert.Equal(t, inbound.KindAck, resp.Decision.Kind)
				assert.Equal(t, "DEFAULT", resp.Route)
			},
		},
		{
			name:     "dead letter route",
			body:     `{"source": "MQ", "source_id": "m-2", "payload": {"order_id": "poison"}}`,
			wantCode: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var resp DecisionResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, inbound.KindDlq, resp.Decision.Kind)
				require.Len(t, resp.Failures, 1)
				assert.Equal(t, processor.FailureRoutedToDeadLetter, resp.Failures[0].Code)
			},
		},
		{
			name:     "schema rejection",
			body:     `{"source": "HTTP", "source_id": "m-3", "payload": {}}`,
			wantCode: http.StatusUnprocessableEntity,
			check: func(t *testing.T, body []byte) {
				var resp RejectionResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, ErrorCodeRejected, resp.ErrorCode)
				assert.NotEmpty(t, resp.Violations)
			},
		},
		{
			name:     "malformed json",
			body:     `{"source":`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown source",
			body:     `{"source": "PIGEON", "payload": {}}`,
			wantCode: http.StatusUnprocessableEntity,
			check: func(t *testing.T, body []byte) {
				assert.Contains(t, string(body), "VALIDATION_ERROR")
			},
		},
		{
			name:     "body too large",
			body:     `{"source": "HTTP", "payload": {"blob": "` + strings.Repeat("x", 2048) + `"}}`,
			wantCode: http.StatusRequestEntityTooLarge,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(srv, tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.check != nil {
				tt.check(t, w.Body.Bytes())
			}
		})
	}
}

func TestHealth(t *testing.T) {
	registry := health.NewCheckerRegistry()
	registry.Register(health.NewCheckerFunc("broken", func(context.Context) error { return errors.New("down") }))
	srv := newServer(t, RouterOptions{Health: registry})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "broken")
}

func TestRateLimitedDecisions(t *testing.T) {
	store := ratelimit.NewStore(ratelimit.RateLimitConfig{RPS: 1, Burst: 1})
	srv := newServer(t, RouterOptions{RateLimit: store})
	body := `{"source": "HTTP", "payload": {"order_id": "o-1"}}`

	assert.Equal(t, http.StatusOK, post(srv, body).Code)
	assert.Equal(t, http.StatusTooManyRequests, post(srv, body).Code)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code, "metrics are not rate limited")
}

func TestSwaggerDoc(t *testing.T) {
	srv := newServer(t, RouterOptions{})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/decisions")
	assert.Contains(t, w.Body.String(), "Verdict Decision API")
}
