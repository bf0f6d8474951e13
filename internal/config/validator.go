package config

import (
	"fmt"
	"strings"

	"verdict/internal/constants"
	"verdict/pkg/inbound"
	"verdict/pkg/router"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	validators := []func(*Config) error{
		func(c *Config) error { return validateServer(c.Server) },
		func(c *Config) error { return validateBroker(c.Broker) },
		func(c *Config) error { return validateDatabase(c.Database) },
		func(c *Config) error { return validatePipeline(c.Pipeline) },
		func(c *Config) error { return validateClaims(c.Claims) },
		validateQuery,
		func(c *Config) error { return validateDecision(c.Decision) },
		validateDedup,
		validateStatus,
	}
	for _, validate := range validators {
		if err := validate(cfg); err != nil {
			errors = append(errors, err)
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	if !cfg.Kafka.Enabled() {
		return nil
	}

	for i, broker := range cfg.Kafka.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.Kafka.DecisionTopic == "" {
		return &ValidationError{
			Field:   "broker.kafka.decision_topic",
			Message: "decision topic is required when brokers are configured",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Postgres.Host != "" || cfg.Postgres.Port > 0 {
		if err := validatePostgres(cfg.Postgres); err != nil {
			return err
		}
	}

	if cfg.Redis.Host != "" || cfg.Redis.Port > 0 {
		if err := validateRedis(cfg.Redis); err != nil {
			return err
		}
	}

	if cfg.MongoDB.URI != "" {
		if err := validateMongoDB(cfg.MongoDB); err != nil {
			return err
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.postgres.host",
			Message: "PostgreSQL host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{
			Field:   "database.postgres.user",
			Message: "PostgreSQL user is required",
		}
	}

	if cfg.DBName == "" {
		return &ValidationError{
			Field:   "database.postgres.dbname",
			Message: "PostgreSQL database name is required",
		}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", cfg.SSLMode),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if cfg.URI == "" {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI is required",
		}
	}

	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
		}
	}

	if cfg.Database == "" {
		return &ValidationError{
			Field:   "database.mongodb.database",
			Message: "MongoDB database name is required",
		}
	}

	return nil
}

func validatePipeline(cfg PipelineConfig) error {
	if _, err := router.ParseRouteKey(cfg.DefaultRoute); err != nil {
		return &ValidationError{
			Field:   "pipeline.default_route",
			Message: err.Error(),
		}
	}

	for i, route := range cfg.Routes {
		if strings.TrimSpace(route.Expression) == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("pipeline.routes[%d].expression", i),
				Message: "route expression is required",
			}
		}
		if _, err := router.ParseRouteKey(route.Key); err != nil {
			return &ValidationError{
				Field:   fmt.Sprintf("pipeline.routes[%d].key", i),
				Message: err.Error(),
			}
		}
	}

	for name := range cfg.MetaSchemas {
		if _, err := inbound.ParseSource(name); err != nil {
			return &ValidationError{
				Field:   "pipeline.meta_schemas." + name,
				Message: err.Error(),
			}
		}
	}

	for i, rule := range cfg.Correlation {
		if rule.Field == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("pipeline.correlation[%d].field", i),
				Message: "correlation field is required",
			}
		}
	}

	if cfg.Split.Enabled {
		if cfg.Split.Path == "" {
			return &ValidationError{
				Field:   "pipeline.split.path",
				Message: "split path is required when split is enabled",
			}
		}
		if cfg.Split.MinItems < 0 {
			return &ValidationError{
				Field:   "pipeline.split.min_items",
				Message: "min_items must be non-negative",
			}
		}
	}

	return nil
}

func validateClaims(cfg ClaimsConfig) error {
	switch strings.ToLower(cfg.Mode) {
	case "", constants.ClaimsModeNone:
		return nil
	case constants.ClaimsModeJWT:
		if cfg.SigningKey == "" {
			return &ValidationError{
				Field:   "claims.signing_key",
				Message: "signing key is required in jwt mode",
			}
		}
	case constants.ClaimsModeRemote:
		if cfg.RemoteURL == "" {
			return &ValidationError{
				Field:   "claims.remote_url",
				Message: "remote URL is required in remote mode",
			}
		}
	default:
		return &ValidationError{
			Field:   "claims.mode",
			Message: fmt.Sprintf("unknown claims mode: %s (valid: none, jwt, remote)", cfg.Mode),
		}
	}

	if cfg.Timeout < 0 {
		return &ValidationError{
			Field:   "claims.timeout",
			Message: "timeout must be non-negative",
		}
	}

	return nil
}

func validateQuery(cfg *Config) error {
	if !cfg.Query.Enabled {
		return nil
	}

	if cfg.Query.Name == "" {
		return &ValidationError{
			Field:   "query.name",
			Message: "query name is required",
		}
	}

	if !cfg.Lookup.Enabled {
		return nil
	}

	switch cfg.Query.Type {
	case constants.ProviderNameAPI:
		if cfg.Lookup.API.BaseURL == "" {
			return &ValidationError{
				Field:   "lookup.api.base_url",
				Message: "base URL is required for api lookups",
			}
		}
	case constants.ProviderNameCache:
		if cfg.Database.Redis.Host == "" {
			return &ValidationError{
				Field:   "database.redis.host",
				Message: "Redis is required for cache lookups",
			}
		}
	case constants.ProviderNameMongoDB:
		if cfg.Database.MongoDB.URI == "" {
			return &ValidationError{
				Field:   "database.mongodb.uri",
				Message: "MongoDB is required for mongodb lookups",
			}
		}
	case constants.ProviderNamePostgreSQL:
		if cfg.Database.Postgres.Host == "" {
			return &ValidationError{
				Field:   "database.postgres.host",
				Message: "PostgreSQL is required for postgresql lookups",
			}
		}
	default:
		return &ValidationError{
			Field:   "query.type",
			Message: fmt.Sprintf("unknown lookup type: %s (valid: api, cache, mongodb, postgresql)", cfg.Query.Type),
		}
	}

	if cfg.Lookup.Timeout < 0 {
		return &ValidationError{
			Field:   "lookup.timeout",
			Message: "timeout must be non-negative",
		}
	}

	return nil
}

func validateDecision(cfg DecisionConfig) error {
	r := cfg.Retry
	if r.MaxAttempts < 0 {
		return &ValidationError{
			Field:   "decision.retry.max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if r.InitialInterval < 0 || r.MaxInterval < 0 {
		return &ValidationError{
			Field:   "decision.retry",
			Message: "intervals must be non-negative",
		}
	}

	if r.MaxInterval > 0 && r.InitialInterval > 0 && r.MaxInterval < r.InitialInterval {
		return &ValidationError{
			Field:   "decision.retry.max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if r.Multiplier < 0 {
		return &ValidationError{
			Field:   "decision.retry.multiplier",
			Message: "multiplier must be non-negative",
		}
	}

	return nil
}

func validateDedup(cfg *Config) error {
	d := cfg.Dedup
	if !d.Enabled {
		return nil
	}

	if cfg.Database.Redis.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis is required when dedup is enabled",
		}
	}

	validAlgorithms := map[string]bool{"md5": true, "sha256": true}
	if d.HashAlgorithm != "" && !validAlgorithms[strings.ToLower(d.HashAlgorithm)] {
		return &ValidationError{
			Field:   "dedup.hash_algorithm",
			Message: fmt.Sprintf("invalid hash algorithm: %s (valid: md5, sha256)", d.HashAlgorithm),
		}
	}

	if d.TTL <= 0 {
		return &ValidationError{
			Field:   "dedup.ttl",
			Message: "TTL must be positive",
		}
	}

	validOnError := map[string]bool{constants.FallbackAllow: true, constants.FallbackRetry: true}
	if d.OnRedisError != "" && !validOnError[strings.ToLower(d.OnRedisError)] {
		return &ValidationError{
			Field:   "dedup.on_redis_error",
			Message: fmt.Sprintf("invalid on_redis_error value: %s (valid: allow, retry)", d.OnRedisError),
		}
	}

	return nil
}

func validateStatus(cfg *Config) error {
	switch strings.ToLower(cfg.Status.Backend) {
	case "", constants.StatusBackendMemory:
		return nil
	case constants.StatusBackendRedis:
		if cfg.Database.Redis.Host == "" {
			return &ValidationError{
				Field:   "database.redis.host",
				Message: "Redis is required for the redis status backend",
			}
		}
		return nil
	default:
		return &ValidationError{
			Field:   "status.backend",
			Message: fmt.Sprintf("unknown status backend: %s (valid: memory, redis)", cfg.Status.Backend),
		}
	}
}
