package gate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"verdict/pkg/behavior"
	apperrors "verdict/pkg/errors"
	"verdict/pkg/inbound"
	"verdict/pkg/task"
	"verdict/pkg/violation"
)

const (
	ViolationClaimsMissing  = "CLAIMS_MISSING"
	ViolationClaimsInvalid  = "CLAIMS_INVALID"
	ViolationClaimsIssuer   = "CLAIMS_ISSUER_MISMATCH"
	ViolationClaimsTimeout  = "CLAIMS_LOOKUP_TIMEOUT"
	ViolationClaimsUnusable = "CLAIMS_LOOKUP_FAILED"
)

// JWTConfig configures the bearer-token claims binder.
type JWTConfig struct {
	// Required rejects messages without a token; otherwise they bind as
	// anonymous.
	Required   bool
	Issuer     string
	Algorithms []string
	Keyfunc    jwt.Keyfunc
}

// HMACKey returns a Keyfunc for a shared secret.
func HMACKey(secret []byte) jwt.Keyfunc {
	return func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}
}

type tokenClaims struct {
	jwt.RegisteredClaims
	ClientID        string `json:"client_id,omitempty"`
	AuthorizedParty string `json:"azp,omitempty"`
	Scope           string `json:"scope,omitempty"`
}

// JWTClaimsBinder verifies the bearer token found in the authorization meta
// entry and binds its claims. Expiry is not checked here: the decision
// policy judges it against the run's clock.
func JWTClaimsBinder[T any](cfg JWTConfig) behavior.Step[T] {
	algs := cfg.Algorithms
	if len(algs) == 0 {
		algs = []string{jwt.SigningMethodHS256.Alg()}
	}
	parser := jwt.NewParser(jwt.WithValidMethods(algs), jwt.WithoutClaimsValidation())

	return func(c behavior.StepContext[T]) behavior.Outcome[T] {
		token, ok := bearerToken(c)
		if !ok {
			if cfg.Required {
				return behavior.Fail[T](violation.Violate(ViolationClaimsMissing, "authorization token is required", violation.Severe()))
			}
			return behavior.Pass(c)
		}

		parsed := &tokenClaims{}
		if _, err := parser.ParseWithClaims(token, parsed, cfg.Keyfunc); err != nil {
			return behavior.Fail[T](violation.Violate(ViolationClaimsInvalid, err.Error(), violation.Severe()))
		}
		if cfg.Issuer != "" && parsed.Issuer != cfg.Issuer {
			return behavior.Fail[T](violation.Violate(ViolationClaimsIssuer,
				fmt.Sprintf("issuer %q is not trusted", parsed.Issuer), violation.Severe()))
		}
		return behavior.Pass(behavior.Set(c, inbound.KeyClaims, parsed.toClaims()))
	}
}

func (t *tokenClaims) toClaims() *inbound.Claims {
	claims := &inbound.Claims{
		Issuer:   t.Issuer,
		Subject:  t.Subject,
		ClientID: t.ClientID,
		TokenID:  t.ID,
	}
	if claims.ClientID == "" {
		claims.ClientID = t.AuthorizedParty
	}
	if t.Scope != "" {
		claims.Scopes = strings.Fields(t.Scope)
	}
	if t.IssuedAt != nil {
		claims.IssuedAt = t.IssuedAt.Time
	}
	if t.ExpiresAt != nil {
		claims.Expiration = t.ExpiresAt.Time
	}
	return claims
}

func bearerToken[T any](c behavior.StepContext[T]) (string, bool) {
	origin, _ := behavior.Get(c, inbound.KeyOrigin)
	header := strings.TrimSpace(origin.Meta[inbound.MetaAuthorization])
	if header == "" {
		return "", false
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		header = strings.TrimSpace(header[7:])
	}
	return header, header != ""
}

// ClaimsLookup resolves a token to claims asynchronously.
type ClaimsLookup func(ctx context.Context, token string) *task.Task[*inbound.Claims]

// RemoteClaimsBinder binds claims resolved by lookup, waiting at most timeout.
func RemoteClaimsBinder[T any](lookup ClaimsLookup, timeout time.Duration, required bool) behavior.Step[T] {
	return func(c behavior.StepContext[T]) behavior.Outcome[T] {
		token, ok := bearerToken(c)
		if !ok {
			if required {
				return behavior.Fail[T](violation.Violate(ViolationClaimsMissing, "authorization token is required", violation.Severe()))
			}
			return behavior.Pass(c)
		}

		claims, err := lookup(c.Context(), token).WithTimeout(timeout).Await(c.Context())
		switch {
		case apperrors.IsTimeout(err):
			return behavior.Fail[T](violation.Violate(ViolationClaimsTimeout, fmt.Sprintf("claims lookup exceeded %s", timeout)))
		case err != nil:
			return behavior.Fail[T](violation.Violate(ViolationClaimsUnusable, err.Error()))
		case claims == nil && required:
			return behavior.Fail[T](violation.Violate(ViolationClaimsInvalid, "token did not resolve to claims", violation.Severe()))
		}
		return behavior.Pass(behavior.Set(c, inbound.KeyClaims, claims))
	}
}
