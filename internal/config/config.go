package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"shiptwin/internal/webhooks"
)

// DefaultConfigFilename is read when no path is given. Its absence is not an error.
const DefaultConfigFilename = "shiptwin.yaml"

type Config struct {
	Server   ServerConfig  `yaml:"server"`
	LogLevel string        `yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	Engine   EngineConfig  `yaml:"engine"`
	Rate     RateConfig    `yaml:"rate_limit"`
	Redis    RedisConfig   `yaml:"redis"`
	RabbitMQ RabbitConfig  `yaml:"rabbitmq"`
	MQTT     MQTTConfig    `yaml:"mqtt"`
	Webhooks WebhookConfig `yaml:"webhooks"`
	Relay    RelayConfig   `yaml:"relay"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

type EngineConfig struct {
	// HistorySize bounds the per-twin location history.
	HistorySize int `yaml:"history_size" validate:"gte=1"`
}

// RateConfig limits telemetry requests per device.
type RateConfig struct {
	RPS   float64 `yaml:"rps" validate:"gt=0"`
	Burst int     `yaml:"burst" validate:"gte=1"`
}

type RedisConfig struct {
	URL    string `yaml:"url" validate:"omitempty,url"`
	Prefix string `yaml:"prefix"`
}

type RabbitConfig struct {
	URL      string `yaml:"url" validate:"omitempty,url"`
	Exchange string `yaml:"exchange"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker" validate:"omitempty,url"`
	ClientID string `yaml:"client_id"`
}

type WebhookConfig struct {
	MaxAttempts int               `yaml:"max_attempts" validate:"gte=1"`
	Targets     []webhooks.Target `yaml:"targets" validate:"dive"`
}

// RelayConfig sizes the per-sink buffers between the engine and brokers.
type RelayConfig struct {
	Buffer  int           `yaml:"buffer" validate:"gte=1"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		LogLevel: "info",
		Engine:   EngineConfig{HistorySize: 50},
		Rate:     RateConfig{RPS: 10, Burst: 20},
		Redis:    RedisConfig{Prefix: "shiptwin"},
		RabbitMQ: RabbitConfig{Exchange: "shiptwin.alerts"},
		MQTT:     MQTTConfig{ClientID: "shiptwin"},
		Webhooks: WebhookConfig{MaxAttempts: webhooks.DefaultMaxAttempts},
		Relay:    RelayConfig{Buffer: 256, Timeout: 2 * time.Second},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path means DefaultConfigFilename, which may
// be absent.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}
	contents, err := os.ReadFile(filepath.Clean(path))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(contents, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges and formats.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("LOG_LEVEL", &cfg.LogLevel)
	str("REDIS_URL", &cfg.Redis.URL)
	str("RABBITMQ_URL", &cfg.RabbitMQ.URL)
	str("MQTT_BROKER", &cfg.MQTT.Broker)

	for key, dst := range map[string]*int{
		"PORT":                 &cfg.Server.Port,
		"HISTORY_SIZE":         &cfg.Engine.HistorySize,
		"RATE_BURST":           &cfg.Rate.Burst,
		"WEBHOOK_MAX_ATTEMPTS": &cfg.Webhooks.MaxAttempts,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup("RATE_RPS"); ok && v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_RPS: %w", err)
		}
		cfg.Rate.RPS = rps
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}
