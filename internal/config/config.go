package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPPort    string `envconfig:"HTTP_PORT" default:"8000"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	// APIKey protects the HTTP API via the X-API-Key header. When empty
	// the API runs open (development mode).
	APIKey      string `envconfig:"API_KEY"`
	CORSOrigins string `envconfig:"CORS_ORIGINS" default:"*"`

	DB       DatabaseConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig

	LLM       LLMConfig
	Luna      LunaConfig
	Scheduler SchedulerConfig

	// MaxRetries bounds how many times a failed queue item is retried
	// before it is marked failed for good.
	MaxRetries int `envconfig:"MAX_RETRIES" default:"3"`
}

// DatabaseConfig holds the postgres connection settings.
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"`
	Name     string `envconfig:"DB_NAME" default:"vibra"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns int32  `envconfig:"DB_MAX_CONNS" default:"10"`
}

// GetDSN assembles the postgres connection string.
func (c DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password),
		c.Host, c.Port, c.Name, c.SSLMode)
}

// GetMaskedDSN returns the DSN with the password hidden, for logging.
func (c DatabaseConfig) GetMaskedDSN() string {
	return fmt.Sprintf("postgres://%s:***@%s:%s/%s?sslmode=%s",
		url.QueryEscape(c.User), c.Host, c.Port, c.Name, c.SSLMode)
}

// RedisConfig holds the read-cache settings.
type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	TTL      time.Duration `envconfig:"CACHE_TTL" default:"5m"`
}

// RabbitMQConfig holds the event publisher settings. An empty URL
// disables publishing.
type RabbitMQConfig struct {
	URL      string `envconfig:"RABBITMQ_URL"`
	Exchange string `envconfig:"RABBITMQ_EXCHANGE" default:"interpretation.events"`
}

// LLMConfig holds provider credentials and the default routing used when
// a template carries no llm_config of its own.
type LLMConfig struct {
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	GroqAPIKey   string `envconfig:"GROQ_API_KEY"`
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`

	DefaultProvider  string        `envconfig:"LLM_DEFAULT_PROVIDER" default:"groq"`
	DefaultModel     string        `envconfig:"LLM_DEFAULT_MODEL" default:"llama-3.3-70b-versatile"`
	FallbackProvider string        `envconfig:"LLM_FALLBACK_PROVIDER" default:"openai"`
	FallbackModel    string        `envconfig:"LLM_FALLBACK_MODEL" default:"gpt-4.1-mini"`
	RequestTimeout   time.Duration `envconfig:"LLM_REQUEST_TIMEOUT" default:"120s"`
}

// LunaConfig holds the post-processing model settings.
type LunaConfig struct {
	Provider    string  `envconfig:"LUNA_PROVIDER" default:"openai"`
	Model       string  `envconfig:"LUNA_MODEL" default:"gpt-4.1-mini"`
	Temperature float64 `envconfig:"LUNA_TEMPERATURE" default:"0.3"`
	MaxTokens   int     `envconfig:"LUNA_MAX_TOKENS" default:"4000"`
}

// SchedulerConfig holds the background queue sweeper settings.
type SchedulerConfig struct {
	Enabled   bool          `envconfig:"SCHEDULER_ENABLED" default:"true"`
	Interval  time.Duration `envconfig:"SCHEDULER_INTERVAL" default:"60s"`
	BatchSize int           `envconfig:"SCHEDULER_BATCH_SIZE" default:"10"`
	// StaleTimeout is how long an item may sit in processing before a
	// sweep assumes its worker died and returns it to pending.
	StaleTimeout time.Duration `envconfig:"STALE_PROCESSING_TIMEOUT" default:"10m"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}
	return &cfg, nil
}
