// Package config centraliza o carregamento de configurações do serviço.
//
// Ordem de precedência: defaults < arquivo YAML < .env < variáveis de ambiente.
// A configuração é carregada uma vez no startup e não muda depois.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"service-template/middleware/ratelimit/domain"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App         App         `yaml:"app"`
	Log         Log         `yaml:"log"`
	Server      Server      `yaml:"server"`
	RateLimiter RateLimiter `yaml:"rate_limiter"`
	Redis       Redis       `yaml:"redis"`
	Cache       Cache       `yaml:"cache"`
	Database    Database    `yaml:"database"`
	Events      Events      `yaml:"events"`
	Stats       Stats       `yaml:"stats"`
}

type App struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Env     string `yaml:"env"` // development, testing, staging, production
	Debug   bool   `yaml:"debug"`
}

type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type Server struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`

	// MaxInFlight limita requisições simultâneas no processo (0 = sem limite).
	MaxInFlight    int           `yaml:"max_in_flight"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
}

type RateLimiter struct {
	Enabled     bool     `yaml:"enabled"`
	Rate        string   `yaml:"rate"` // "<N>/<unidade>", ex: 60/minute
	Mode        string   `yaml:"mode"` // fixed ou sliding
	ExemptPaths []string `yaml:"exempt_paths"`

	// Só ligar atrás de um proxy confiável.
	KeyHeader          string `yaml:"key_header"`
	TrustXForwardedFor bool   `yaml:"trust_x_forwarded_for"`
}

type Redis struct {
	URL                  string        `yaml:"url"`
	PoolSize             int           `yaml:"pool_size"`
	SocketTimeout        time.Duration `yaml:"socket_timeout"`
	SocketConnectTimeout time.Duration `yaml:"socket_connect_timeout"`
}

type Cache struct {
	TTL       time.Duration `yaml:"ttl"`
	KeyPrefix string        `yaml:"key_prefix"`
}

type Database struct {
	Driver      string `yaml:"driver"` // mongo ou memory
	URL         string `yaml:"url"`
	Name        string `yaml:"name"`
	MinPoolSize uint64 `yaml:"min_pool_size"`
	MaxPoolSize uint64 `yaml:"max_pool_size"`
}

type Events struct {
	// Topic é o stream onde os eventos de Example são publicados.
	Topic string `yaml:"topic"`
	// Topics são os streams lidos pelo consumer.
	Topics        []string      `yaml:"topics"`
	ConsumerGroup string        `yaml:"consumer_group"`
	ConsumerName  string        `yaml:"consumer_name"`
	StreamMaxLen  int64         `yaml:"stream_max_len"`
	MaxPerSecond  float64       `yaml:"max_per_second"`
	Block         time.Duration `yaml:"block"`
	// MaxAttempts: falhas do handler antes de descartar a mensagem.
	MaxAttempts int `yaml:"max_attempts"`
}

type Stats struct {
	RedisEnabled bool          `yaml:"redis_enabled"`
	Prefix       string        `yaml:"prefix"`
	TTL          time.Duration `yaml:"ttl"`
	Bucket       string        `yaml:"bucket"` // minute ou none
	TrackKeys    bool          `yaml:"track_keys"`
}

func Default() Config {
	return Config{
		App: App{
			Name:    "service-template",
			Version: "0.1.0",
			Env:     "development",
		},
		Log: Log{Level: "info"},
		Server: Server{
			Addr:         ":8000",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxInFlight:  100,
		},
		RateLimiter: RateLimiter{
			Enabled:     true,
			Rate:        "60/minute",
			Mode:        string(domain.FixedWindow),
			ExemptPaths: []string{"/health", "/metrics"},
		},
		Redis: Redis{
			URL:                  "redis://localhost:6379/0",
			PoolSize:             50,
			SocketTimeout:        5 * time.Second,
			SocketConnectTimeout: 5 * time.Second,
		},
		Cache: Cache{
			TTL:       300 * time.Second,
			KeyPrefix: "service-template:",
		},
		Database: Database{
			Driver:      "mongo",
			URL:         "mongodb://localhost:27017",
			Name:        "service_template",
			MinPoolSize: 10,
			MaxPoolSize: 50,
		},
		Events: Events{
			Topic:         "examples",
			Topics:        []string{"examples"},
			ConsumerGroup: "service-template_consumer_group",
			ConsumerName:  "consumer-1",
			StreamMaxLen:  10000,
			MaxPerSecond:  100,
			Block:         5 * time.Second,
			MaxAttempts:   5,
		},
		Stats: Stats{
			Prefix: "ratelimit:stats",
			TTL:    24 * time.Hour,
			Bucket: "minute",
		},
	}
}

// Load monta a configuração. path vazio pula o arquivo YAML.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// .env é opcional
	_ = godotenv.Load()

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validEnvs = map[string]struct{}{
	"development": {},
	"testing":     {},
	"staging":     {},
	"production":  {},
}

func (c Config) Validate() error {
	var errs []error

	if _, ok := validEnvs[c.App.Env]; !ok {
		errs = append(errs, fmt.Errorf("app.env: unknown environment %q", c.App.Env))
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.MaxInFlight < 0 {
		errs = append(errs, errors.New("server.max_in_flight must be >= 0"))
	}
	if _, err := c.RateLimit(); err != nil {
		errs = append(errs, fmt.Errorf("rate_limiter: %w", err))
	}
	if strings.TrimSpace(c.Redis.URL) == "" {
		errs = append(errs, errors.New("redis.url is required"))
	}
	if c.Cache.TTL < time.Second {
		errs = append(errs, fmt.Errorf("cache.ttl must be at least 1s, got %s", c.Cache.TTL))
	}
	switch c.Database.Driver {
	case "mongo":
		if c.Database.URL == "" || c.Database.Name == "" {
			errs = append(errs, errors.New("database.url and database.name are required for the mongo driver"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver))
	}
	if c.Events.Topic == "" {
		errs = append(errs, errors.New("events.topic is required"))
	}
	if c.Events.MaxPerSecond <= 0 {
		errs = append(errs, errors.New("events.max_per_second must be > 0"))
	}
	if c.Events.MaxAttempts < 1 {
		errs = append(errs, errors.New("events.max_attempts must be >= 1"))
	}

	return errors.Join(errs...)
}

// RateLimit converte a seção rate_limiter na configuração do middleware.
// O prefixo das chaves é o mesmo do cache: <cache.key_prefix>rate:<cliente>.
func (c Config) RateLimit() (domain.Config, error) {
	rule, err := domain.ParseRate(c.RateLimiter.Rate)
	if err != nil {
		return domain.Config{}, err
	}
	mode := domain.WindowMode(strings.ToLower(strings.TrimSpace(c.RateLimiter.Mode)))
	if mode == "" {
		mode = domain.FixedWindow
	}

	rl := domain.Config{
		Enabled:     c.RateLimiter.Enabled,
		Rule:        rule,
		Mode:        mode,
		Prefix:      c.Cache.KeyPrefix,
		ExemptPaths: c.RateLimiter.ExemptPaths,
	}
	if err := rl.Validate(); err != nil {
		return domain.Config{}, err
	}
	return rl, nil
}

func (c Config) IsProduction() bool { return c.App.Env == "production" }
