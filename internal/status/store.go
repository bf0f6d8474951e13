// Package status reads the processing state the host records for each
// message, for the gate's status observer.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "verdict/pkg/errors"
	"verdict/pkg/inbound"
)

// MemoryStore keeps statuses in process. It suits tests and single-node
// hosts that record status themselves.
type MemoryStore struct {
	mu       sync.RWMutex
	statuses map[string]inbound.Status
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{statuses: make(map[string]inbound.Status)}
}

func (s *MemoryStore) Status(_ context.Context, sourceID string) (*inbound.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statuses[sourceID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *MemoryStore) Put(_ context.Context, sourceID string, st inbound.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[sourceID] = st
	return nil
}

// RedisStore keeps one JSON document per message under prefix+sourceID.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) Status(ctx context.Context, sourceID string) (*inbound.Status, error) {
	raw, err := s.client.Get(ctx, s.prefix+sourceID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.ErrServiceUnavailable.WithMessage("status read failed").WithCause(err)
	}

	var st inbound.Status
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("corrupt status for %s: %w", sourceID, err)
	}
	if _, err := inbound.ParseStatusKind(string(st.Kind)); err != nil {
		return nil, fmt.Errorf("corrupt status for %s: %w", sourceID, err)
	}
	return &st, nil
}

func (s *RedisStore) Put(ctx context.Context, sourceID string, st inbound.Status) error {
	body, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+sourceID, body, s.ttl).Err(); err != nil {
		return apperrors.ErrServiceUnavailable.WithMessage("status write failed").WithCause(err)
	}
	return nil
}
