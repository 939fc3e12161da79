// Package config loads correlator and export settings from an optional YAML
// file, an optional .env file and EVENTRPC_-prefixed environment variables,
// in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	berr "github.com/next-trace/scg-event-rpc/contract/errors"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "EVENTRPC_"

// Export kinds.
const (
	ExportNone     = "none"
	ExportMemory   = "memory"
	ExportNATS     = "nats"
	ExportRabbitMQ = "rabbitmq"
	ExportKafka    = "kafka"
)

// Config is the runtime configuration of an event-rpc node.
type Config struct {
	// SelfID is the correlator identity; empty means generate one.
	SelfID      string        `yaml:"selfId"      env:"SELF_ID"`
	CallTimeout time.Duration `yaml:"callTimeout" env:"CALL_TIMEOUT"`
	LogLevel    string        `yaml:"logLevel"    env:"LOG_LEVEL"`
	Export      Export        `yaml:"export"      envPrefix:"EXPORT_"`
}

// Export selects and configures the envelope export tap.
type Export struct {
	Kind          string `yaml:"kind"          env:"KIND"`
	SubjectPrefix string `yaml:"subjectPrefix" env:"SUBJECT_PREFIX"`
	Strict        bool   `yaml:"strict"        env:"STRICT"`
	// Timeout bounds one export; zero disables the bound.
	Timeout      time.Duration `yaml:"timeout"      env:"TIMEOUT"`
	NATSURL      string        `yaml:"natsUrl"      env:"NATS_URL"`
	AMQPURL      string        `yaml:"amqpUrl"      env:"AMQP_URL"`
	Exchange     string        `yaml:"exchange"     env:"EXCHANGE"`
	KafkaBrokers []string      `yaml:"kafkaBrokers" env:"KAFKA_BROKERS" envSeparator:","`
	ClientID     string        `yaml:"clientId"     env:"CLIENT_ID"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		CallTimeout: 5 * time.Second,
		LogLevel:    "info",
		Export: Export{
			Kind:          ExportNone,
			SubjectPrefix: "events.",
			Timeout:       2 * time.Second,
			Exchange:      "events",
			ClientID:      "scg-event-rpc",
		},
	}
}

// Load builds a Config from defaults, then path (skipped when empty), then
// envFiles (".env" when none given; missing files are ignored), then the
// process environment. The result is validated.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}

	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate reports the first inconsistent setting, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	if c.CallTimeout <= 0 {
		return fmt.Errorf("%w: callTimeout must be positive, got %s", berr.ErrInvalidConfig, c.CallTimeout)
	}

	if c.Export.Timeout < 0 {
		return fmt.Errorf("%w: export.timeout must not be negative, got %s", berr.ErrInvalidConfig, c.Export.Timeout)
	}

	if _, err := c.Level(); err != nil {
		return fmt.Errorf("%w: logLevel: %w", berr.ErrInvalidConfig, err)
	}

	switch c.Export.Kind {
	case "", ExportNone, ExportMemory:
	case ExportNATS:
		if c.Export.NATSURL == "" {
			return fmt.Errorf("%w: export.natsUrl required for kind %q", berr.ErrInvalidConfig, c.Export.Kind)
		}
	case ExportRabbitMQ:
		if c.Export.AMQPURL == "" {
			return fmt.Errorf("%w: export.amqpUrl required for kind %q", berr.ErrInvalidConfig, c.Export.Kind)
		}
	case ExportKafka:
		if len(c.Export.KafkaBrokers) == 0 {
			return fmt.Errorf("%w: export.kafkaBrokers required for kind %q", berr.ErrInvalidConfig, c.Export.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown export kind %q", berr.ErrInvalidConfig, c.Export.Kind)
	}

	return nil
}

// Level parses LogLevel; empty means info.
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}

	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, err
	}

	return lvl, nil
}
