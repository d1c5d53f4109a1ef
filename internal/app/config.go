package app

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so yaml values can be written as "2s",
// "45m" and so on.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the service configuration. Defaults suit local development;
// a YAML file named by CONFIG_FILE overrides them, and the usual
// environment variables (OPENAI_API_KEY, QDRANT_URL, REDIS_ADDR, ...)
// configure the platform clients separately.
type Config struct {
	Port    string `yaml:"port"`
	LogMode string `yaml:"log_mode"`
	Version string `yaml:"version"`
	Env     string `yaml:"environment"`

	Generation GenerationConfig `yaml:"generation"`
	Worker     WorkerConfig     `yaml:"worker"`
}

type GenerationConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	Backoff     Duration `yaml:"backoff"`
	CallTimeout Duration `yaml:"call_timeout"`
	RunTimeout  Duration `yaml:"run_timeout"`
}

type WorkerConfig struct {
	Concurrency       int      `yaml:"concurrency"`
	PollInterval      Duration `yaml:"poll_interval"`
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
	StaleAfter        Duration `yaml:"stale_after"`
}

func DefaultConfig() Config {
	return Config{
		Port:    "8080",
		LogMode: "development",
		Version: "dev",
		Env:     "local",
		Generation: GenerationConfig{
			MaxAttempts: 3,
			Backoff:     Duration(2 * time.Second),
			CallTimeout: Duration(2 * time.Minute),
			RunTimeout:  Duration(45 * time.Minute),
		},
		Worker: WorkerConfig{
			Concurrency:       2,
			PollInterval:      Duration(time.Second),
			HeartbeatInterval: Duration(15 * time.Second),
			StaleAfter:        Duration(2 * time.Minute),
		},
	}
}

// LoadConfig reads CONFIG_FILE when set, otherwise returns defaults with
// PORT and LOG_MODE env overrides applied.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("LOG_MODE"); v != "" {
		cfg.LogMode = v
	}
	return cfg, nil
}
