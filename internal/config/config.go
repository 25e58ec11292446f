package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration for the RescueDesk server.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Backoffice BackofficeConfig
	Messaging  MessagingConfig
	Pipeline   PipelineConfig
	Policy     PolicyConfig
}

type ServerConfig struct {
	Port               int
	Env                string
	RateLimitPerMinute int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// KafkaConfig is optional: with no brokers the event consumer and outcome
// producer are not started.
type KafkaConfig struct {
	Brokers        []string
	IncidentsTopic string
	OutcomesTopic  string
	OutboundTopic  string
	GroupID        string
	Workers        int
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// BackofficeConfig selects and configures the collaborator implementations.
type BackofficeConfig struct {
	Backend        string
	RecordsBackend string
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
}

type MessagingConfig struct {
	Channel        string
	DefaultChannel string
}

type PipelineConfig struct {
	RunTimeout     time.Duration
	StatusTTL      time.Duration
	DedupeTTL      time.Duration
	PolicyCacheTTL time.Duration
}

var validBackends = map[string]bool{
	"mock": true,
	"http": true,
}

var validRecordsBackends = map[string]bool{
	"postgres": true,
	"http":     true,
}

var validChannels = map[string]bool{
	"log":   true,
	"http":  true,
	"kafka": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:               envInt("RESCUE_PORT", 8080),
			Env:                envString("RESCUE_ENV", "development"),
			RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 60),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Kafka: KafkaConfig{
			Brokers:        envList("KAFKA_BROKERS"),
			IncidentsTopic: envString("KAFKA_INCIDENTS_TOPIC", "rescue-incidents"),
			OutcomesTopic:  envString("KAFKA_OUTCOMES_TOPIC", "rescue-outcomes"),
			OutboundTopic:  envString("KAFKA_OUTBOUND_TOPIC", "rescue-outbound-messages"),
			GroupID:        envString("KAFKA_GROUP_ID", "rescuedesk"),
			Workers:        envInt("KAFKA_WORKERS", 4),
		},
		Backoffice: BackofficeConfig{
			Backend:        envString("COLLAB_BACKEND", "mock"),
			RecordsBackend: envString("RECORDS_BACKEND", "postgres"),
			BaseURL:        os.Getenv("BACKOFFICE_BASE_URL"),
			APIKey:         os.Getenv("BACKOFFICE_API_KEY"),
			Timeout:        envDuration("BACKOFFICE_TIMEOUT", 15*time.Second),
		},
		Messaging: MessagingConfig{
			Channel:        envString("MESSAGING_CHANNEL", "log"),
			DefaultChannel: envString("MESSAGING_DEFAULT_CHANNEL", "email"),
		},
		Pipeline: PipelineConfig{
			RunTimeout:     envDuration("PIPELINE_RUN_TIMEOUT", 0),
			StatusTTL:      envDuration("PIPELINE_STATUS_TTL", 30*time.Minute),
			DedupeTTL:      envDuration("PIPELINE_DEDUPE_TTL", 24*time.Hour),
			PolicyCacheTTL: envDuration("POLICY_CACHE_TTL", 10*time.Minute),
		},
	}

	policy, err := LoadPolicy(os.Getenv("RESCUE_POLICY_FILE"))
	if err != nil {
		return nil, err
	}
	cfg.Policy = policy

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !validBackends[c.Backoffice.Backend] {
		return fmt.Errorf("COLLAB_BACKEND must be one of mock, http; got %q", c.Backoffice.Backend)
	}
	if !validRecordsBackends[c.Backoffice.RecordsBackend] {
		return fmt.Errorf("RECORDS_BACKEND must be one of postgres, http; got %q", c.Backoffice.RecordsBackend)
	}
	if !validChannels[c.Messaging.Channel] {
		return fmt.Errorf("MESSAGING_CHANNEL must be one of log, http, kafka; got %q", c.Messaging.Channel)
	}

	needsBackoffice := c.Backoffice.Backend == "http" ||
		c.Backoffice.RecordsBackend == "http" ||
		c.Messaging.Channel == "http"
	if needsBackoffice {
		if c.Backoffice.BaseURL == "" {
			return fmt.Errorf("BACKOFFICE_BASE_URL is required when a collaborator uses the http backend")
		}
		if !strings.HasPrefix(c.Backoffice.BaseURL, "http://") && !strings.HasPrefix(c.Backoffice.BaseURL, "https://") {
			return fmt.Errorf("BACKOFFICE_BASE_URL must start with http:// or https://, got %q", c.Backoffice.BaseURL)
		}
	}

	if c.Messaging.Channel == "kafka" && !c.Kafka.Enabled() {
		return fmt.Errorf("KAFKA_BROKERS is required when MESSAGING_CHANNEL is kafka")
	}
	if c.Kafka.Enabled() && c.Kafka.Workers <= 0 {
		return fmt.Errorf("KAFKA_WORKERS must be positive, got %d", c.Kafka.Workers)
	}

	if c.Pipeline.RunTimeout < 0 {
		return fmt.Errorf("PIPELINE_RUN_TIMEOUT must not be negative")
	}

	return c.Policy.validate()
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// envList splits a comma-separated variable, dropping empty elements.
func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envDecimal(key string, defaultVal decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return defaultVal
	}
	return d
}
