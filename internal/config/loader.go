package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"verdict/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout_seconds", "10s")
	viper.SetDefault("server.write_timeout_seconds", "10s")
	viper.SetDefault("server.max_body_bytes", constants.DefaultMaxBodyBytes)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("pipeline.name", "default")
	viper.SetDefault("pipeline.default_route", "DEFAULT")
	viper.SetDefault("pipeline.split.attr", constants.AttrSplitItems)

	viper.SetDefault("claims.mode", constants.ClaimsModeNone)
	viper.SetDefault("claims.algorithms", []string{"HS256"})
	viper.SetDefault("claims.timeout", constants.DefaultLookupTimeout)

	viper.SetDefault("query.into", constants.AttrLookupResult)
	viper.SetDefault("lookup.timeout", constants.DefaultLookupTimeout)
	viper.SetDefault("lookup.cache.ttl", constants.DefaultCacheTTL)
	viper.SetDefault("lookup.api.method", "GET")

	viper.SetDefault("decision.retry.max_attempts", 5)
	viper.SetDefault("decision.retry.initial_interval", "1s")
	viper.SetDefault("decision.retry.max_interval", "5m")
	viper.SetDefault("decision.retry.multiplier", 2.0)

	viper.SetDefault("dedup.hash_algorithm", "sha256")
	viper.SetDefault("dedup.ttl", constants.DefaultDedupTTL)
	viper.SetDefault("dedup.on_redis_error", constants.FallbackAllow)

	viper.SetDefault("status.backend", constants.StatusBackendMemory)
	viper.SetDefault("status.key_prefix", constants.CacheKeyPrefixStatus)

	viper.SetDefault("broker.kafka.decision_topic", constants.DefaultDecisionTopic)

	viper.SetDefault("circuit_breaker.max_requests", 3)
	viper.SetDefault("circuit_breaker.interval", "60s")
	viper.SetDefault("circuit_breaker.timeout", "30s")
	viper.SetDefault("circuit_breaker.failure_ratio", 0.5)
	viper.SetDefault("circuit_breaker.min_requests", 3)
}

func bindEnvVariables() {
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.decision_topic", "BROKER_KAFKA_DECISION_TOPIC")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("claims.signing_key", "CLAIMS_SIGNING_KEY")
	viper.BindEnv("lookup.api.base_url", "LOOKUP_API_BASE_URL")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(cfg *Config) {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}
}
