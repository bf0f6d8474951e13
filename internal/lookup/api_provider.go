package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"verdict/internal/constants"
	apperrors "verdict/pkg/errors"
	"verdict/pkg/inbound"
)

// APIProvider resolves a query spec over HTTP. Its name is appended to the
// base URL; {param} placeholders are expanded and the remaining parameters
// become query string values.
type APIProvider struct {
	client  *http.Client
	baseURL string
	method  string
	headers map[string]string
}

func NewAPIProvider(baseURL, method string, headers map[string]string) *APIProvider {
	if method == "" {
		method = http.MethodGet
	}
	return &APIProvider{
		client: &http.Client{
			Timeout: constants.DefaultHTTPTimeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		method:  strings.ToUpper(method),
		headers: headers,
	}
}

func (p *APIProvider) Fetch(ctx context.Context, spec inbound.QuerySpec) (map[string]any, error) {
	path, used := expand(spec.Name, spec.Params)
	target := p.baseURL + "/" + strings.TrimLeft(path, "/")

	query := url.Values{}
	for _, k := range sortedParams(spec.Params, used) {
		query.Set(k, fmt.Sprintf("%v", spec.Params[k]))
	}
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, p.method, target, nil)
	if err != nil {
		return nil, apperrors.ErrBadRequest.WithMessage("failed to create lookup request").WithCause(err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperrors.ErrServiceUnavailable.WithMessage("api request failed").WithCause(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperrors.ErrNotFound.WithMessage(fmt.Sprintf("lookup %s not found", spec.Name))
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, apperrors.ErrUnauthorized.WithMessage("lookup rejected credentials")
	case resp.StatusCode == http.StatusForbidden:
		return nil, apperrors.ErrForbidden.WithMessage("lookup forbidden")
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperrors.ErrRateLimited.WithMessage("lookup rate limited")
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, apperrors.ErrServiceUnavailable.WithMessage(fmt.Sprintf("api returned status: %d", resp.StatusCode))
	case resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax:
		return nil, apperrors.ErrBadRequest.WithMessage(fmt.Sprintf("api returned status: %d", resp.StatusCode))
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperrors.ErrBadRequest.WithMessage("failed to decode lookup response").WithCause(err)
	}

	return result, nil
}
