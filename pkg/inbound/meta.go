package inbound

import "strings"

// Canonical meta keys produced by the default schemas.
const (
	MetaAuthorization = "authorization"
	MetaContentType   = "content_type"
	MetaRequestID     = "request_id"
	MetaCorrelationID = "correlation_id"
	MetaTenantID      = "tenant_id"
	MetaTraceParent   = "traceparent"
	MetaMessageID     = "message_id"
	MetaReplyTo       = "reply_to"
	MetaTopic         = "topic"
	MetaDeliveryCount = "delivery_count"
	MetaFileName      = "file_name"
	MetaScheduleID    = "schedule_id"
)

// MetaSchema whitelists and renames transport metadata. Keys are matched
// case-insensitively.
type MetaSchema struct {
	Allow       []string          `mapstructure:"allow" json:"allow"`
	Rename      map[string]string `mapstructure:"rename" json:"rename"`
	PassThrough bool              `mapstructure:"pass_through" json:"pass_through"`
}

// Normalize lowercases keys, drops those not whitelisted and applies renames.
// Empty values are dropped.
func (s MetaSchema) Normalize(raw map[string]string) map[string]string {
	allowed := make(map[string]struct{}, len(s.Allow))
	for _, k := range s.Allow {
		allowed[strings.ToLower(k)] = struct{}{}
	}
	rename := make(map[string]string, len(s.Rename))
	for from, to := range s.Rename {
		rename[strings.ToLower(from)] = to
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		if v == "" || key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok && !s.PassThrough {
			continue
		}
		if to, ok := rename[key]; ok {
			key = to
		}
		out[key] = v
	}
	return out
}

// MetaSchemaResolver picks the schema for a source.
type MetaSchemaResolver interface {
	Resolve(source Source) MetaSchema
}

type ResolverFunc func(Source) MetaSchema

func (f ResolverFunc) Resolve(s Source) MetaSchema { return f(s) }

// SchemaTable is a static resolver. Sources without an entry fall back to
// the SourceOther entry.
type SchemaTable map[Source]MetaSchema

func (t SchemaTable) Resolve(s Source) MetaSchema {
	if schema, ok := t[s]; ok {
		return schema
	}
	return t[SourceOther]
}

// With returns a copy of t with s mapped to schema.
func (t SchemaTable) With(s Source, schema MetaSchema) SchemaTable {
	out := make(SchemaTable, len(t)+1)
	for k, v := range t {
		out[k] = v
	}
	out[s] = schema
	return out
}

func DefaultSchemas() SchemaTable {
	return SchemaTable{
		SourceHTTP: {
			Allow: []string{"authorization", "content-type", "x-request-id", "x-correlation-id", "x-tenant-id", "traceparent", "user-agent"},
			Rename: map[string]string{
				"content-type":     MetaContentType,
				"x-request-id":     MetaRequestID,
				"x-correlation-id": MetaCorrelationID,
				"x-tenant-id":      MetaTenantID,
				"user-agent":       "user_agent",
			},
		},
		SourceMQTT: {
			Allow: []string{"topic", "qos", "retain", "client_id", "correlation-data", "response-topic", "authorization"},
			Rename: map[string]string{
				"correlation-data": MetaCorrelationID,
				"response-topic":   MetaReplyTo,
			},
		},
		SourceMQ: {
			Allow: []string{"message-id", "correlation-id", "reply-to", "delivery-count", "content-type", "priority", "authorization", "traceparent"},
			Rename: map[string]string{
				"message-id":     MetaMessageID,
				"correlation-id": MetaCorrelationID,
				"reply-to":       MetaReplyTo,
				"delivery-count": MetaDeliveryCount,
				"content-type":   MetaContentType,
			},
		},
		SourceFile: {
			Allow:  []string{"filename", "path", "size", "modified-at", "content-type"},
			Rename: map[string]string{"filename": MetaFileName, "modified-at": "modified_at", "content-type": MetaContentType},
		},
		SourceScheduled: {
			Allow:  []string{"schedule-id", "fired-at", "job"},
			Rename: map[string]string{"schedule-id": MetaScheduleID, "fired-at": "fired_at"},
		},
		SourceOther:            {PassThrough: true},
		SourceEmptyHTTPContext: {},
	}
}
