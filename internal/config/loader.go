package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jittakal/kafeventexport/internal/config/dto"
	"github.com/spf13/viper"
)

// Loader handles configuration loading and validation
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load loads configuration from file and environment variables
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	// Set defaults
	l.setDefaults()

	// Load from file if provided
	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Expand environment variables in config values
	// Only expand if the value contains ${...} pattern
	for _, key := range l.v.AllKeys() {
		value := l.v.GetString(key)
		if strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}

	// Unmarshal configuration
	var config dto.ApplicationConfig
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	// Application defaults
	l.v.SetDefault("application.name", "kafka-event-export")
	l.v.SetDefault("application.version", "1.0.0")
	l.v.SetDefault("application.environment", "development")

	// Kafka defaults
	l.v.SetDefault("kafka.security_protocol", "SASL_SSL")
	l.v.SetDefault("kafka.sasl_mechanism", "PLAIN")
	l.v.SetDefault("kafka.consumer.auto_offset_reset", "earliest")
	l.v.SetDefault("kafka.consumer.enable_auto_commit", false)
	l.v.SetDefault("kafka.consumer.max_poll_records", 1000)
	l.v.SetDefault("kafka.consumer.max_poll_interval_ms", 300000)
	l.v.SetDefault("kafka.consumer.session_timeout_ms", 30000)
	l.v.SetDefault("kafka.consumer.heartbeat_interval_ms", 10000)
	l.v.SetDefault("kafka.dlq.enabled", true)
	l.v.SetDefault("kafka.dlq.topic_suffix", "-dlq")
	l.v.SetDefault("kafka.dlq.max_retries", 3)

	// Sink defaults
	l.v.SetDefault("sink.backend", "postgres")
	l.v.SetDefault("sink.postgres.pool_max_conns", 4)
	l.v.SetDefault("sink.postgres.connect_timeout_seconds", 10)
	l.v.SetDefault("sink.s3.use_path_style", false)
	l.v.SetDefault("sink.s3.sse_enabled", true)

	// Rotation defaults
	l.v.SetDefault("rotation.max_batch_size_mb", 16)
	l.v.SetDefault("rotation.max_frames_per_batch", 50000)
	l.v.SetDefault("rotation.max_batch_age_seconds", 300)
	l.v.SetDefault("rotation.strategy", "any")

	// Processing defaults
	l.v.SetDefault("processing.worker_pool_size", 10)
	l.v.SetDefault("processing.flush_interval_seconds", 10)
	l.v.SetDefault("processing.max_concurrent_uploads", 5)

	// Retry defaults
	l.v.SetDefault("retry.enabled", true)
	l.v.SetDefault("retry.max_attempts", 5)
	l.v.SetDefault("retry.initial_backoff_ms", 100)
	l.v.SetDefault("retry.max_backoff_ms", 30000)
	l.v.SetDefault("retry.backoff_multiplier", 2.0)
	l.v.SetDefault("retry.jitter", true)

	// Observability defaults
	l.v.SetDefault("observability.logging.level", "info")
	l.v.SetDefault("observability.logging.format", "json")
	l.v.SetDefault("observability.logging.output", "stdout")
	l.v.SetDefault("observability.server.port", 8080)
	l.v.SetDefault("observability.server.metrics_enabled", true)
	l.v.SetDefault("observability.server.metrics_path", "/metrics")
	l.v.SetDefault("observability.server.liveness_path", "/health/live")
	l.v.SetDefault("observability.server.readiness_path", "/health/ready")

	// Shutdown defaults
	l.v.SetDefault("shutdown.grace_period_seconds", 30)
	l.v.SetDefault("shutdown.force_timeout_seconds", 60)
}

// Validate validates the configuration
func (l *Loader) Validate(config *dto.ApplicationConfig) error {
	// Kafka validation
	if len(config.Kafka.BootstrapServers) == 0 {
		return errors.New("kafka.bootstrap_servers is required")
	}
	if len(config.Kafka.Consumer.Topics) == 0 {
		return errors.New("kafka.consumer.topics is required")
	}
	if config.Kafka.Consumer.GroupID == "" {
		return errors.New("kafka.consumer.group_id is required")
	}

	// Hook validation; rule entries themselves are validated by the hook
	// factory at startup
	if len(config.Hooks) == 0 {
		return errors.New("hooks is required")
	}
	for i, h := range config.Hooks {
		if h.Type == "" {
			return fmt.Errorf("hooks[%d].type is required", i)
		}
	}

	// Sink validation
	switch config.Sink.Backend {
	case "postgres":
		if config.Sink.Postgres.DSN == "" {
			return errors.New("sink.postgres.dsn is required for postgres backend")
		}
		if config.Sink.Postgres.Table == "" {
			return errors.New("sink.postgres.table is required for postgres backend")
		}
		if len(config.Sink.Postgres.Columns) == 0 {
			return errors.New("sink.postgres.columns is required for postgres backend")
		}
	case "s3":
		if config.Sink.S3.Bucket == "" {
			return errors.New("sink.s3.bucket is required for S3 backend")
		}
		if config.Sink.S3.Region == "" {
			return errors.New("sink.s3.region is required for S3 backend")
		}
	case "file":
		if config.Sink.File.BasePath == "" {
			return errors.New("sink.file.base_path is required for file backend")
		}
	default:
		return fmt.Errorf("unsupported sink backend: %s", config.Sink.Backend)
	}

	// Rotation validation
	if config.Rotation.Strategy != "any" && config.Rotation.Strategy != "all" {
		return fmt.Errorf("unsupported rotation strategy: %s", config.Rotation.Strategy)
	}

	// Port validation
	if config.Observability.Server.Port < 1 || config.Observability.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Observability.Server.Port)
	}

	return nil
}
