package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port             string
	Environment      string
	LogLevel         string
	AllowedOrigins   []string
	AllowCredentials bool

	MongoURI string
	MongoDB  string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	KafkaBrokers    []string
	LeadEventsTopic string

	GeoIPDatabase string

	EngageDelay    time.Duration
	WelcomeText    string
	WebhookWorkers int
	WebhookTimeout time.Duration

	RateLimitEvents int
	RateLimitWindow time.Duration
}

func LoadConfig() *Config {
	allowedOrigins := []string{"*"}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		allowedOrigins = strings.Split(origins, ",")
		for i, origin := range allowedOrigins {
			allowedOrigins[i] = strings.TrimSpace(origin)
		}
	}

	kafkaBrokers := []string{"localhost:9092"}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		kafkaBrokers = strings.Split(brokers, ",")
		for i, broker := range kafkaBrokers {
			kafkaBrokers[i] = strings.TrimSpace(broker)
		}
	}

	return &Config{
		Port:             getEnv("PORT", "8082"),
		Environment:      getEnv("ENVIRONMENT", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: getEnv("ALLOW_CREDENTIALS", "false") == "true",

		MongoURI: getEnv("MONGO_URI", ""),
		MongoDB:  getEnv("MONGO_DB", "engage"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		KafkaBrokers:    kafkaBrokers,
		LeadEventsTopic: getEnv("LEAD_EVENTS_TOPIC", "lead-events"),

		GeoIPDatabase: getEnv("GEOIP_DB", ""),

		EngageDelay:    getEnvDuration("ENGAGE_DELAY_SECONDS", 10*time.Second),
		WelcomeText:    getEnv("WELCOME_TEXT", "Hey 👋 Can I help you?"),
		WebhookWorkers: getEnvInt("WEBHOOK_WORKERS", 4),
		WebhookTimeout: getEnvDuration("WEBHOOK_TIMEOUT_SECONDS", 5*time.Second),

		RateLimitEvents: getEnvInt("RATE_LIMIT_EVENTS", 5),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW_MS", time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			unit := time.Second
			if strings.HasSuffix(key, "_MS") {
				unit = time.Millisecond
			}
			return time.Duration(n) * unit
		}
	}
	return defaultValue
}

// GetCORSOrigins returns CORS origins as a comma-separated string.
func (c *Config) GetCORSOrigins() string {
	if c.Environment == "production" && len(c.AllowedOrigins) > 0 && c.AllowedOrigins[0] != "*" {
		return strings.Join(c.AllowedOrigins, ",")
	}
	return "*"
}

// IsDevelopment returns true if environment is development.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if environment is production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
