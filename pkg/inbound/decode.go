package inbound

import (
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	apperrors "verdict/pkg/errors"
)

// DecodeEnvelope reads a JSON envelope of the form
//
//	{"source": "MQ", "source_id": "...", "meta": {...}, "received_at": "...", "payload": {...}}
//
// Meta values of any JSON type are kept as their string form. A missing
// source_id is replaced by a random UUID.
func DecodeEnvelope(raw []byte) (Envelope[map[string]any], error) {
	var zero Envelope[map[string]any]
	if !gjson.ValidBytes(raw) {
		return zero, apperrors.ErrBadRequest.WithMessage("envelope is not valid JSON")
	}

	fields := gjson.GetManyBytes(raw, "source", "source_id", "meta", "received_at", "payload")

	source, err := ParseSource(fields[0].String())
	if err != nil {
		return zero, apperrors.ErrValidation.WithMessage(err.Error()).WithDetail("field", "source")
	}

	sourceID := fields[1].String()
	if sourceID == "" {
		sourceID = uuid.NewString()
	}

	meta := make(map[string]string)
	if fields[2].Exists() {
		if !fields[2].IsObject() {
			return zero, apperrors.ErrValidation.WithMessage("meta must be an object").WithDetail("field", "meta")
		}
		fields[2].ForEach(func(key, value gjson.Result) bool {
			meta[key.String()] = value.String()
			return true
		})
	}

	if !fields[4].IsObject() {
		return zero, apperrors.ErrValidation.WithMessage("payload must be an object").WithDetail("field", "payload")
	}
	payload, _ := fields[4].Value().(map[string]interface{})

	env := NewEnvelope(source, sourceID, meta, payload)
	if fields[3].Exists() {
		received, err := time.Parse(time.RFC3339Nano, fields[3].String())
		if err != nil {
			return zero, apperrors.ErrValidation.WithMessage("received_at must be RFC 3339").WithDetail("field", "received_at")
		}
		env = env.ReceivedAt(received)
	}
	return env, nil
}
