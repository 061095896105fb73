package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	RabbitMQ   RabbitMQConfig
	Dispatcher DispatcherConfig
	CRM        CRMConfig
}

type ServerConfig struct {
	Port string
	Host string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	// SubscriptionTTL bounds how long cached subscription lists are served
	// before falling back to Postgres
	SubscriptionTTL time.Duration
}

type RabbitMQConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	VHost    string
}

type DispatcherConfig struct {
	// BatchSize is the maximum number of pending tasks claimed per sweep
	BatchSize int
	// MaxAttempts is the number of failed tries before a task is failed
	MaxAttempts int
	// HTTPTimeout bounds each outbound delivery, in seconds
	HTTPTimeout int
	// MaxResponseBodySize caps how much of a receiver's response is logged
	MaxResponseBodySize int
	// SweepInterval is the period of the in-process scheduled sweep
	SweepInterval time.Duration
	// DispatchSecret guards the on-demand dispatch endpoint
	DispatchSecret string
	// Delivery queue wiring for the immediate-delivery path
	DeliveryExchange   string
	DeliveryRoutingKey string
	DeliveryQueue      string
	PrefetchCount      int
}

type CRMConfig struct {
	BaseURL string
	Token   string
}

func Load() (*Config, error) {
	var missing []string

	get := func(key string) string {
		val := os.Getenv(key)
		if val == "" {
			missing = append(missing, key)
		}
		return val
	}

	getOr := func(key, fallback string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		return fallback
	}

	getIntOr := func(key string, fallback int) int {
		if val := os.Getenv(key); val != "" {
			if n, err := strconv.Atoi(val); err == nil && n > 0 {
				return n
			}
		}
		return fallback
	}

	config := &Config{
		Server: ServerConfig{
			Port: get("SERVER_PORT"),
			Host: getOr("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     get("DB_HOST"),
			Port:     get("DB_PORT"),
			User:     get("DB_USER"),
			Password: get("DB_PASSWORD"),
			DBName:   get("DB_NAME"),
			SSLMode:  getOr("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:            get("REDIS_ADDR"),
			Password:        os.Getenv("REDIS_PASSWORD"),
			SubscriptionTTL: time.Duration(getIntOr("REDIS_SUBSCRIPTION_TTL_SECONDS", 60)) * time.Second,
		},
		RabbitMQ: RabbitMQConfig{
			URL:      os.Getenv("RABBITMQ_URL"),
			Host:     get("RABBITMQ_HOST"),
			Port:     get("RABBITMQ_PORT"),
			User:     get("RABBITMQ_USER"),
			Password: get("RABBITMQ_PASSWORD"),
			VHost:    get("RABBITMQ_VHOST"),
		},
		Dispatcher: DispatcherConfig{
			BatchSize:           getIntOr("DISPATCH_BATCH_SIZE", 10),
			MaxAttempts:         getIntOr("DISPATCH_MAX_ATTEMPTS", 3),
			HTTPTimeout:         getIntOr("DISPATCH_HTTP_TIMEOUT_SECONDS", 15),
			MaxResponseBodySize: getIntOr("DISPATCH_MAX_RESPONSE_BODY_BYTES", 4096),
			SweepInterval:       time.Duration(getIntOr("DISPATCH_SWEEP_INTERVAL_SECONDS", 120)) * time.Second,
			DispatchSecret:      get("WEBHOOK_DISPATCH_SECRET"),
			DeliveryExchange:    getOr("DELIVERY_EXCHANGE", "webhooks"),
			DeliveryRoutingKey:  getOr("DELIVERY_ROUTING_KEY", "webhooks.deliver"),
			DeliveryQueue:       getOr("DELIVERY_QUEUE", "webhook_delivery"),
			PrefetchCount:       getIntOr("DELIVERY_PREFETCH_COUNT", 10),
		},
		CRM: CRMConfig{
			BaseURL: get("CRM_API_URL"),
			Token:   get("CRM_API_TOKEN"),
		},
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}

	return config, nil
}

func (c *RabbitMQConfig) ConnectionURL() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%s%s",
		c.User, c.Password, c.Host, c.Port, c.VHost)
}
