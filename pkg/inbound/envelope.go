package inbound

import "time"

// Envelope is an inbound message before translation.
type Envelope[T any] struct {
	source     Source
	sourceID   string
	meta       map[string]string
	payload    T
	receivedAt time.Time
}

func NewEnvelope[T any](source Source, sourceID string, meta map[string]string, payload T) Envelope[T] {
	cp := make(map[string]string, len(meta))
	for k, v := range meta {
		cp[k] = v
	}
	return Envelope[T]{source: source, sourceID: sourceID, meta: cp, payload: payload}
}

// ReceivedAt returns a copy of e stamped with t.
func (e Envelope[T]) ReceivedAt(t time.Time) Envelope[T] {
	e.receivedAt = t
	return e
}

func (e Envelope[T]) Source() Source  { return e.source }
func (e Envelope[T]) SourceID() string { return e.sourceID }
func (e Envelope[T]) Payload() T       { return e.payload }
func (e Envelope[T]) Received() time.Time {
	return e.receivedAt
}

// Meta returns a copy of the raw transport metadata.
func (e Envelope[T]) Meta() map[string]string {
	cp := make(map[string]string, len(e.meta))
	for k, v := range e.meta {
		cp[k] = v
	}
	return cp
}

// Origin is the payload-independent part of an envelope after translation.
type Origin struct {
	Source     Source            `json:"source"`
	SourceID   string            `json:"source_id"`
	Meta       map[string]string `json:"meta"`
	ReceivedAt time.Time         `json:"received_at"`
}
