package config

import (
	"time"

	"verdict/pkg/correlation"
	"verdict/pkg/inbound"
	"verdict/pkg/retry"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Broker         BrokerConfig         `mapstructure:"broker"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`
	Pipeline       PipelineConfig       `mapstructure:"pipeline"`
	Claims         ClaimsConfig         `mapstructure:"claims"`
	Query          QueryConfig          `mapstructure:"query"`
	Lookup         LookupConfig         `mapstructure:"lookup"`
	Decision       DecisionConfig       `mapstructure:"decision"`
	Dedup          DedupConfig          `mapstructure:"dedup"`
	Status         StatusConfig         `mapstructure:"status"`
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
	MaxBodyBytes        int64         `mapstructure:"max_body_bytes"`
	Swagger             bool          `mapstructure:"swagger"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MongoDB  MongoDBConfig  `mapstructure:"mongodb"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type BrokerConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// KafkaConfig configures the decision audit stream. Publishing is off when
// no brokers are configured.
type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	DecisionTopic string   `mapstructure:"decision_topic"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

// PipelineConfig describes the validation and routing stages that run
// before the gate.
type PipelineConfig struct {
	Name          string                        `mapstructure:"name"`
	PayloadSchema string                        `mapstructure:"payload_schema"`
	MetaSchemas   map[string]inbound.MetaSchema `mapstructure:"meta_schemas"`
	Correlation   []correlation.Rule            `mapstructure:"correlation"`
	Routes        []RouteConfig                 `mapstructure:"routes"`
	DefaultRoute  string                        `mapstructure:"default_route"`
	Split         SplitConfig                   `mapstructure:"split"`
}

// RouteConfig selects Key when Expression holds. Higher priority wins.
type RouteConfig struct {
	Name       string `mapstructure:"name"`
	Expression string `mapstructure:"expression"`
	Priority   int    `mapstructure:"priority"`
	Key        string `mapstructure:"key"`
}

type SplitConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	Attr       string `mapstructure:"attr"`
	ItemSchema string `mapstructure:"item_schema"`
	MinItems   int    `mapstructure:"min_items"`
}

type ClaimsConfig struct {
	Mode       string        `mapstructure:"mode"` // "none", "jwt" or "remote"
	Required   bool          `mapstructure:"required"`
	Issuer     string        `mapstructure:"issuer"`
	Algorithms []string      `mapstructure:"algorithms"`
	SigningKey string        `mapstructure:"signing_key"`
	RemoteURL  string        `mapstructure:"remote_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type QueryConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Type     string         `mapstructure:"type"`
	Name     string         `mapstructure:"name"`
	Params   map[string]any `mapstructure:"params"`
	Into     string         `mapstructure:"into"`
	Required []string       `mapstructure:"required"`
}

type LookupConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	Timeout time.Duration     `mapstructure:"timeout"`
	Cache   LookupCacheConfig `mapstructure:"cache"`
	API     APIConfig         `mapstructure:"api"`
}

type LookupCacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type APIConfig struct {
	BaseURL string            `mapstructure:"base_url"`
	Method  string            `mapstructure:"method"`
	Headers map[string]string `mapstructure:"headers"`
}

type DecisionConfig struct {
	Retry retry.Policy `mapstructure:"retry"`
}

type DedupConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	HashAlgorithm string        `mapstructure:"hash_algorithm"`
	TTL           time.Duration `mapstructure:"ttl"`
	OnRedisError  string        `mapstructure:"on_redis_error"`
	FieldsToHash  []string      `mapstructure:"fields_to_hash"`
}

type StatusConfig struct {
	Backend   string `mapstructure:"backend"` // "memory" or "redis"
	KeyPrefix string `mapstructure:"key_prefix"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
