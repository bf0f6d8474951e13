// Package dedup detects repeated deliveries of the same message and reports
// them to the gate as DUPLICATE failures.
package dedup

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"verdict/internal/config"
	"verdict/internal/constants"
	"verdict/internal/logger"
	"verdict/pkg/behavior"
	"verdict/pkg/inbound"
	"verdict/pkg/metrics"
	"verdict/pkg/tracing"
)

const (
	FailureDuplicateMessage = "DUPLICATE_MESSAGE"
	FailureDedupUnavailable = "DEDUP_UNAVAILABLE"
	FailureDedupHashFailed  = "DEDUP_HASH_FAILED"
)

// KeyHash holds the fingerprint of the current message.
var KeyHash = behavior.Key[string](constants.AttrDedupHash)

type Service struct {
	repo         Repository
	hasher       *Hasher
	fieldsToHash []string
	ttl          time.Duration
	onRedisError string
	logger       logger.Logger
}

func NewService(repo Repository, cfg config.DedupConfig, log logger.Logger) *Service {
	fieldsToHash := cfg.FieldsToHash
	if len(fieldsToHash) == 0 {
		fieldsToHash = []string{"source", "source_id"}
		log.Infow("No fields_to_hash configured, using defaults", "fields", fieldsToHash)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = constants.DefaultDedupTTL
	}

	return &Service{
		repo:         repo,
		hasher:       NewHasher(cfg.HashAlgorithm),
		fieldsToHash: fieldsToHash,
		ttl:          ttl,
		onRedisError: strings.ToLower(cfg.OnRedisError),
		logger:       log,
	}
}

// Check claims the fingerprint of msg. unique is false when the fingerprint
// was already claimed within the TTL.
func (s *Service) Check(ctx context.Context, msg map[string]any) (unique bool, hash string, err error) {
	hash, err = s.hasher.ComputeHash(msg, s.fieldsToHash)
	if err != nil {
		return false, "", err
	}

	key := constants.CacheKeyPrefixDedup + hash
	unique, err = s.repo.SetNX(ctx, key, time.Now().Unix(), s.ttl)
	if err != nil {
		metrics.IncDedupCheck("error")
		return false, hash, err
	}
	if unique {
		metrics.IncDedupCheck("unique")
		if claims, ok := ctx.Value(claimsKey{}).(*Claims); ok {
			claims.add(key)
		}
	} else {
		metrics.IncDedupCheck("duplicate")
	}
	return unique, hash, nil
}

type claimsKey struct{}

// Claims collects the fingerprints claimed during one run so the host can
// hand them back when the message will be delivered again.
type Claims struct {
	mu   sync.Mutex
	keys []string
}

func (c *Claims) add(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, key)
}

// Keys returns the claimed fingerprint keys.
func (c *Claims) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.keys...)
}

// WithClaims returns a context under which Check records every fingerprint
// it claims into the returned Claims.
func WithClaims(ctx context.Context) (context.Context, *Claims) {
	claims := &Claims{}
	return context.WithValue(ctx, claimsKey{}, claims), claims
}

// Release drops the fingerprints in claims so that a redelivery of the same
// message is not reported as a duplicate.
func (s *Service) Release(ctx context.Context, claims *Claims) error {
	if claims == nil {
		return nil
	}
	claims.mu.Lock()
	keys := claims.keys
	claims.keys = nil
	claims.mu.Unlock()
	if len(keys) == 0 {
		return nil
	}
	if err := s.repo.Delete(ctx, keys...); err != nil {
		metrics.IncDedupCheck("release_error")
		return err
	}
	metrics.IncDedupCheck("released")
	return nil
}

// Step fingerprints the message (origin source and id merged with the
// payload) and records a DUPLICATE failure for repeats. When Redis fails the
// message is let through if on_redis_error is "allow"; otherwise a
// TRANSIENT failure asks for a retry.
func Step[T any](s *Service, payload func(T) map[string]any) behavior.Step[T] {
	return func(c behavior.StepContext[T]) behavior.Outcome[T] {
		ctx, span := tracing.GetTracer("verdict-dedup").Start(c.Context(), "dedup.check")
		defer span.End()

		origin, _ := behavior.Get(c, inbound.KeyOrigin)
		msg := make(map[string]any)
		for k, v := range payload(c.Payload()) {
			msg[k] = v
		}
		msg["source"] = origin.Source.String()
		msg["source_id"] = origin.SourceID

		unique, hash, err := s.Check(ctx, msg)
		if hash != "" {
			c = behavior.Set(c, KeyHash, hash)
		}

		switch {
		case err != nil && hash == "":
			return behavior.Pass(inbound.AddFailure(c, inbound.NewFailure(inbound.TaxonomyPermanent, FailureDedupHashFailed, err.Error())))
		case err != nil:
			return behavior.Pass(onRedisError(ctx, s, c, err))
		case !unique:
			s.logger.InfowCtx(ctx, "Duplicate message detected", "hash", hash)
			return behavior.Pass(inbound.AddFailure(c, inbound.NewFailure(inbound.TaxonomyDuplicate, FailureDuplicateMessage,
				fmt.Sprintf("message %s already seen", origin.SourceID))))
		default:
			return behavior.Pass(c)
		}
	}
}

func onRedisError[T any](ctx context.Context, s *Service, c behavior.StepContext[T], err error) behavior.StepContext[T] {
	if s.onRedisError == constants.FallbackAllow {
		metrics.IncFallbackUsage("dedup", "allow_on_error", "redis_error")
		s.logger.WarnwCtx(ctx, "Redis error during dedup check, allowing message (fallback: allow)",
			"error", err,
		)
		return c
	}
	metrics.IncFallbackUsage("dedup", "retry_on_error", "redis_error")
	return inbound.AddFailure(c, inbound.NewFailure(inbound.TaxonomyTransient, FailureDedupUnavailable, err.Error()))
}
