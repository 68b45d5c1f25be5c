package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PLANTDOC_CLASSIFIER_ENDPOINT.
const EnvPrefix = "PLANTDOC"

// Config is the application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Session    SessionConfig    `mapstructure:"session"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
}

type ClassifierConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	HealthEndpoint string        `mapstructure:"health_endpoint"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type SessionConfig struct {
	Capacity   int           `mapstructure:"capacity"`
	TTL        time.Duration `mapstructure:"ttl"`
	CookieName string        `mapstructure:"cookie_name"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.max_upload_bytes", int64(10<<20))
	v.SetDefault("classifier.endpoint", "http://localhost:5000/predict")
	v.SetDefault("classifier.health_endpoint", "http://localhost:5000/health")
	v.SetDefault("classifier.timeout", time.Duration(0))
	v.SetDefault("session.capacity", 1024)
	v.SetDefault("session.ttl", time.Hour)
	v.SetDefault("session.cookie_name", "plantdoc_session")
	v.SetDefault("log.level", "info")
}

// Load reads the YAML file at path, if any, then applies environment
// overrides on top of the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config failed: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server addr is required")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.New("server max_upload_bytes must be positive")
	}
	if err := validateURL("classifier endpoint", c.Classifier.Endpoint); err != nil {
		return err
	}
	if c.Classifier.HealthEndpoint != "" {
		if err := validateURL("classifier health_endpoint", c.Classifier.HealthEndpoint); err != nil {
			return err
		}
	}
	if c.Classifier.Timeout < 0 {
		return errors.New("classifier timeout must not be negative")
	}
	if c.Session.Capacity <= 0 {
		return errors.New("session capacity must be positive")
	}
	if c.Session.CookieName == "" {
		return errors.New("session cookie_name is required")
	}
	return nil
}

func validateURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL", name)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}
