package appconfig

import (
	"errors"
	"fmt"
	"time"

	"storyline/core/profile/adapters/events"
	"storyline/modules/db/mongo"
	"storyline/modules/db/postgres"
	"storyline/modules/db/redis"
	"storyline/modules/middleware/ratelimit"
	"storyline/modules/telemetry"

	"github.com/caarlos0/env/v11"
)

type StoreDriver string

const (
	DriverPostgres StoreDriver = "postgres"
	DriverMongo    StoreDriver = "mongo"
	DriverMemory   StoreDriver = "memory"
)

type Config struct {
	Env      string `env:"ENV"       envDefault:"dev"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	HTTP  HTTPConfig  `envPrefix:"HTTP_"`
	Store StoreConfig `envPrefix:"STORE_"`

	// --- core infra ----
	Redis    redis.RedisConfig       `envPrefix:"REDIS_"`
	Postgres postgres.PostgresConfig `envPrefix:"POSTGRES_"`
	Mongo    mongo.MongoConfig       `envPrefix:"MONGO_"`
	Kafka    events.KafkaConfig      `envPrefix:"KAFKA_"`

	// --- middlewares ----
	RateLimit ratelimit.RestHTTPConfig `envPrefix:"RATE_LIMIT_"`

	// --- otel ----
	// since it has special naming conventions, we do not use prefix here
	Otel telemetry.Config
}

type HTTPConfig struct {
	Host            string        `env:"HOST"             envDefault:"0.0.0.0"`
	Port            int           `env:"PORT"             envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT"     envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT"    envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// ValidateRequests checks requests against the embedded OpenAPI document.
	ValidateRequests bool `env:"VALIDATE_REQUESTS" envDefault:"true"`
}

type StoreConfig struct {
	Driver StoreDriver `env:"DRIVER" envDefault:"memory"`
	// MemorySeedFile is a JSON document loaded into the memory store on startup.
	MemorySeedFile string `env:"MEMORY_SEED_FILE"`

	// CascadeTimeout bounds one profile replacement including the rename cascade.
	CascadeTimeout      time.Duration `env:"CASCADE_TIMEOUT"      envDefault:"5s"`
	CompensationWorkers int           `env:"COMPENSATION_WORKERS" envDefault:"4"`
	// LocalLockTimeout bounds the wait for the in-process rename lock.
	LocalLockTimeout time.Duration `env:"LOCAL_LOCK_TIMEOUT" envDefault:"2s"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(c *Config) error {
	var errs []error
	switch c.Store.Driver {
	case DriverPostgres, DriverMongo, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER: unknown driver %q", c.Store.Driver))
	}
	if c.Store.Driver == DriverMongo && c.Mongo.URI == "" {
		errs = append(errs, errors.New("MONGO_URI: required for the mongo driver"))
	}
	if c.Store.CascadeTimeout <= 0 {
		errs = append(errs, errors.New("STORE_CASCADE_TIMEOUT: must be positive"))
	}
	if c.Redis.Enabled && c.Redis.URL == "" {
		errs = append(errs, errors.New("REDIS_URL: required when redis is enabled"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("KAFKA_TOPIC: required when brokers are set"))
	}
	return errors.Join(errs...)
}
