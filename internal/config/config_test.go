package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verdict/pkg/inbound"
)

const sampleConfig = `
server:
  port: 9090
logging:
  level: debug
pipeline:
  name: orders
  payload_schema: '{"type":"object","required":["order"]}'
  meta_schemas:
    MQ:
      allow: ["message-id", "tenant"]
      rename:
        message-id: message_id
  correlation:
    - name: amount-positive
      field: order.amount
      required_present: true
      value_test: "value > 0"
  routes:
    - name: duplicates
      expression: "has(root.order.replay) && root.order.replay"
      priority: 10
      key: DEDUPLICATE
    - name: archive
      expression: "source == 'FILE'"
      key: "ext:archive"
  default_route: DEFAULT
claims:
  mode: jwt
  signing_key: secret
  issuer: https://issuer.example
decision:
  retry:
    max_attempts: 4
    initial_interval: 2s
    max_interval: 1m
    multiplier: 3
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeoutSeconds)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "orders", cfg.Pipeline.Name)
	require.Len(t, cfg.Pipeline.Routes, 2)
	assert.Equal(t, "DEDUPLICATE", cfg.Pipeline.Routes[0].Key)
	assert.Equal(t, 10, cfg.Pipeline.Routes[0].Priority)
	require.Len(t, cfg.Pipeline.Correlation, 1)
	assert.True(t, cfg.Pipeline.Correlation[0].RequiredPresent)
	assert.Equal(t, []string{"message-id", "tenant"}, cfg.Pipeline.MetaSchemas["mq"].Allow)
	assert.Equal(t, "jwt", cfg.Claims.Mode)
	assert.Equal(t, 4, cfg.Decision.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Decision.Retry.InitialInterval)
	assert.Equal(t, "memory", cfg.Status.Backend)
	assert.False(t, cfg.Broker.Kafka.Enabled())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("BROKER_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Broker.Kafka.Brokers)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, ReadTimeoutSeconds: time.Second, WriteTimeoutSeconds: time.Second},
		Pipeline: PipelineConfig{
			DefaultRoute: "DEFAULT",
		},
		Dedup: DedupConfig{TTL: time.Hour},
	}
}

func TestValidateStatic(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "unknown default route",
			mutate:  func(c *Config) { c.Pipeline.DefaultRoute = "NOWHERE" },
			wantErr: "pipeline.default_route",
		},
		{
			name: "route without expression",
			mutate: func(c *Config) {
				c.Pipeline.Routes = []RouteConfig{{Key: "DEFAULT"}}
			},
			wantErr: "pipeline.routes[0].expression",
		},
		{
			name:    "unknown meta schema source",
			mutate:  func(c *Config) { c.Pipeline.MetaSchemas = map[string]inbound.MetaSchema{"fax": {}} },
			wantErr: "pipeline.meta_schemas.fax",
		},
		{
			name:    "jwt without key",
			mutate:  func(c *Config) { c.Claims.Mode = "jwt" },
			wantErr: "claims.signing_key",
		},
		{
			name:    "unknown claims mode",
			mutate:  func(c *Config) { c.Claims.Mode = "magic" },
			wantErr: "claims.mode",
		},
		{
			name: "dedup without redis",
			mutate: func(c *Config) {
				c.Dedup.Enabled = true
			},
			wantErr: "dedup",
		},
		{
			name: "lookup type unknown",
			mutate: func(c *Config) {
				c.Query = QueryConfig{Enabled: true, Name: "customers", Type: "ftp"}
				c.Lookup.Enabled = true
			},
			wantErr: "query.type",
		},
		{
			name:    "kafka without topic",
			mutate:  func(c *Config) { c.Broker.Kafka.Brokers = []string{"k:9092"} },
			wantErr: "broker.kafka.decision_topic",
		},
		{
			name:    "redis status without redis",
			mutate:  func(c *Config) { c.Status.Backend = "redis" },
			wantErr: "database.redis.host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := ValidateStatic(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
