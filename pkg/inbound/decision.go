package inbound

import (
	"encoding/json"
	"fmt"
	"time"
)

type DecisionKind string

const (
	KindAck          DecisionKind = "ack"
	KindNoop         DecisionKind = "noop"
	KindRetry        DecisionKind = "retry"
	KindDlq          DecisionKind = "dlq"
	KindFailInternal DecisionKind = "fail_internal"
)

// ControlDecision tells the host transport what to do with a message. The
// set of implementations is closed: Ack, Noop, Retry, Dlq and FailInternal.
type ControlDecision interface {
	Kind() DecisionKind
	sealed()
}

type Ack struct{}

type Noop struct {
	Reason string
}

type Retry struct {
	NextRetryAt time.Time
	Reason      string
}

type Dlq struct {
	Reason string
}

type FailInternal struct {
	Reason string
	Cause  error
}

func (Ack) Kind() DecisionKind          { return KindAck }
func (Noop) Kind() DecisionKind         { return KindNoop }
func (Retry) Kind() DecisionKind        { return KindRetry }
func (Dlq) Kind() DecisionKind          { return KindDlq }
func (FailInternal) Kind() DecisionKind { return KindFailInternal }

func (Ack) sealed()          {}
func (Noop) sealed()         {}
func (Retry) sealed()        {}
func (Dlq) sealed()          {}
func (FailInternal) sealed() {}

// Reason returns the human-readable reason carried by d.
func Reason(d ControlDecision) string {
	switch v := d.(type) {
	case Ack:
		return ""
	case Noop:
		return v.Reason
	case Retry:
		return v.Reason
	case Dlq:
		return v.Reason
	case FailInternal:
		return v.Reason
	default:
		panic(fmt.Sprintf("inbound: unknown control decision %T", d))
	}
}

// DecisionRecord is the serialized form of a ControlDecision.
type DecisionRecord struct {
	Kind        DecisionKind `json:"kind"`
	Reason      string       `json:"reason,omitempty"`
	NextRetryAt *time.Time   `json:"next_retry_at,omitempty"`
	Cause       string       `json:"cause,omitempty"`
}

func Record(d ControlDecision) DecisionRecord {
	rec := DecisionRecord{Kind: d.Kind(), Reason: Reason(d)}
	switch v := d.(type) {
	case Retry:
		at := v.NextRetryAt
		rec.NextRetryAt = &at
	case FailInternal:
		if v.Cause != nil {
			rec.Cause = v.Cause.Error()
		}
	}
	return rec
}

// Decision rebuilds the ControlDecision. A recorded cause is restored as a
// plain error.
func (r DecisionRecord) Decision() (ControlDecision, error) {
	switch r.Kind {
	case KindAck:
		return Ack{}, nil
	case KindNoop:
		return Noop{Reason: r.Reason}, nil
	case KindRetry:
		if r.NextRetryAt == nil {
			return nil, fmt.Errorf("retry decision without next_retry_at")
		}
		return Retry{NextRetryAt: *r.NextRetryAt, Reason: r.Reason}, nil
	case KindDlq:
		return Dlq{Reason: r.Reason}, nil
	case KindFailInternal:
		fi := FailInternal{Reason: r.Reason}
		if r.Cause != "" {
			fi.Cause = fmt.Errorf("%s", r.Cause)
		}
		return fi, nil
	default:
		return nil, fmt.Errorf("unknown decision kind %q", r.Kind)
	}
}

func MarshalDecision(d ControlDecision) ([]byte, error) {
	return json.Marshal(Record(d))
}

func UnmarshalDecision(data []byte) (ControlDecision, error) {
	var rec DecisionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return rec.Decision()
}
