package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout   = 10 * time.Second
	DefaultLookupTimeout = 2 * time.Second
	DefaultMaxBodyBytes  = 1 << 20
)

const (
	CacheKeyPrefixDedup  = "verdict:dedup:"
	CacheKeyPrefixLookup = "verdict:lookup:"
	CacheKeyPrefixStatus = "verdict:status:"
)

const (
	DefaultCacheTTL = 5 * time.Minute
	DefaultDedupTTL = time.Hour
)

const (
	DefaultDecisionTopic = "verdict_decisions"
)

const (
	DefaultMongoDBName = "verdict"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

// Attribute keys written by host-level steps.
const (
	AttrSplitItems   = "split.items"
	AttrLookupResult = "lookup.result"
	AttrDedupHash    = "dedup.hash"
)

const (
	FallbackAllow = "allow"
	FallbackRetry = "retry"
)

const (
	ClaimsModeNone   = "none"
	ClaimsModeJWT    = "jwt"
	ClaimsModeRemote = "remote"
)

const (
	StatusBackendMemory = "memory"
	StatusBackendRedis  = "redis"
)

const (
	ProviderNameMongoDB    = "mongodb"
	ProviderNamePostgreSQL = "postgresql"
	ProviderNameCache      = "cache"
	ProviderNameAPI        = "api"
)
