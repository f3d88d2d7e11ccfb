// Package config loads gateway configuration from a YAML file with
// environment variable overrides, following the pattern of the stack's
// per-service viper configs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigurationError wraps a fatal, startup-only configuration failure.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Config is the gateway's full configuration.
type Config struct {
	Broker      BrokerConfig      `mapstructure:"broker"`
	Backend     BackendConfig     `mapstructure:"backend"`
	Validation  ValidationConfig  `mapstructure:"validation"`
	Command     CommandConfig     `mapstructure:"command"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// BrokerConfig configures the embedded mTLS listener (C6).
type BrokerConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	CAFile   string `mapstructure:"ca_file"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// BackendConfig configures the egress HTTP client (C7).
type BackendConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	HTTPTimeout       time.Duration `mapstructure:"http_timeout"`
	ForwardErrorBody  bool          `mapstructure:"forward_error_body"`
	SurfaceFailureAck bool          `mapstructure:"surface_failure_ack"`
}

// ValidationConfig configures the message validator (C5) and replay cache (C2).
type ValidationConfig struct {
	SkewBudgetSeconds int64         `mapstructure:"skew_budget_seconds"`
	ReplayCacheSize   int           `mapstructure:"replay_cache_size"`
	MessageDeadline   time.Duration `mapstructure:"message_deadline"`
}

// CommandConfig configures the backend-to-device command ingress (C9).
type CommandConfig struct {
	ListenAddr  string `mapstructure:"listen_addr"`
	BearerToken string `mapstructure:"bearer_token"`
}

// CredentialsConfig configures the credential store (C1).
type CredentialsConfig struct {
	DriverDSN string `mapstructure:"dsn"`
}

// LoggingConfig configures process-wide structured logging.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig configures the /metrics and /healthz listener.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// Load reads configuration from the given file path (if non-empty) and from
// environment variables prefixed GATEWAY_, falling back to defaults
// matching spec.md §6.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/iot-gateway")
	}

	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &ConfigurationError{Reason: "failed to read config file", Err: err}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigurationError{Reason: "failed to unmarshal config", Err: err}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Credentials.DriverDSN == "" {
		return &ConfigurationError{Reason: "credentials.dsn is required"}
	}
	if c.Command.BearerToken == "" {
		return &ConfigurationError{Reason: "command.bearer_token is required"}
	}
	if c.Backend.BaseURL == "" {
		return &ConfigurationError{Reason: "backend.base_url is required"}
	}
	if c.Validation.SkewBudgetSeconds < 0 {
		return &ConfigurationError{Reason: "validation.skew_budget_seconds must be non-negative"}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("broker.host", "0.0.0.0")
	v.SetDefault("broker.port", 8883)

	v.SetDefault("backend.http_timeout", "10s")
	v.SetDefault("backend.forward_error_body", true)
	v.SetDefault("backend.surface_failure_ack", false)

	v.SetDefault("validation.skew_budget_seconds", 300)
	v.SetDefault("validation.replay_cache_size", 1000)
	v.SetDefault("validation.message_deadline", "15s")

	v.SetDefault("command.listen_addr", ":8443")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.listen_addr", ":9100")
}
