package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	apperrors "verdict/pkg/errors"
	"verdict/pkg/gate"
	"verdict/pkg/inbound"
	"verdict/pkg/task"
)

// RemoteClaims resolves bearer tokens against an introspection endpoint.
// The token is forwarded in the Authorization header and a 2xx JSON body is
// decoded as claims. 401 and 404 resolve to no claims.
func RemoteClaims(client *http.Client, url string) gate.ClaimsLookup {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return func(ctx context.Context, token string) *task.Task[*inbound.Claims] {
		return task.New(func(taskCtx context.Context) (*inbound.Claims, error) {
			req, err := http.NewRequestWithContext(trace.ContextWithSpanContext(taskCtx, trace.SpanContextFromContext(ctx)), http.MethodGet, url, nil)
			if err != nil {
				return nil, fmt.Errorf("failed to create introspection request: %w", err)
			}
			req.Header.Set("Authorization", "Bearer "+token)
			req.Header.Set("Accept", "application/json")

			resp, err := client.Do(req)
			if err != nil {
				return nil, apperrors.Wrap(err, apperrors.ErrServiceUnavailable.WithMessage("claims introspection unreachable").AsRetryable())
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound:
				return nil, nil
			case resp.StatusCode >= 500:
				return nil, apperrors.ErrServiceUnavailable.WithMessage(fmt.Sprintf("claims introspection returned %d", resp.StatusCode)).AsRetryable()
			case resp.StatusCode < 200 || resp.StatusCode >= 300:
				return nil, fmt.Errorf("claims introspection returned %d", resp.StatusCode)
			}

			var claims inbound.Claims
			if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
				return nil, fmt.Errorf("failed to decode claims: %w", err)
			}
			return &claims, nil
		})
	}
}
