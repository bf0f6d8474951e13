package inbound

import (
	"fmt"
	"strings"
	"time"
)

// StatusKind is the processing state recorded for a message by the host.
type StatusKind string

const (
	StatusPending      StatusKind = "PENDING"
	StatusInProgress   StatusKind = "IN_PROGRESS"
	StatusRetrying     StatusKind = "RETRYING"
	StatusAcked        StatusKind = "ACKED"
	StatusDeadLettered StatusKind = "DEAD_LETTERED"
	StatusFailed       StatusKind = "FAILED"
)

func ParseStatusKind(s string) (StatusKind, error) {
	kind := StatusKind(strings.ToUpper(strings.TrimSpace(s)))
	switch kind {
	case StatusPending, StatusInProgress, StatusRetrying, StatusAcked, StatusDeadLettered, StatusFailed:
		return kind, nil
	}
	return "", fmt.Errorf("unknown status kind %q", s)
}

// Terminal reports whether no further processing is expected.
func (k StatusKind) Terminal() bool {
	return k == StatusAcked || k == StatusDeadLettered
}

// Status is the last known processing state of a message. Attempt counts
// completed attempts, starting at zero.
type Status struct {
	Kind          StatusKind `json:"kind"`
	Attempt       int        `json:"attempt"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	LastUpdatedAt time.Time  `json:"last_updated_at"`
	Description   string     `json:"description,omitempty"`
}

// FirstAttempt is the status assumed for a message with no recorded state.
func FirstAttempt(now time.Time) *Status {
	return &Status{Kind: StatusPending, LastUpdatedAt: now}
}
