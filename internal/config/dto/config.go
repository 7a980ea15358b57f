package dto

import (
	"fmt"
	"time"
)

// ApplicationConfig is the root configuration structure
type ApplicationConfig struct {
	Application   ApplicationInfo     `mapstructure:"application"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Hooks         []HookConfig        `mapstructure:"hooks"`
	Sink          SinkConfig          `mapstructure:"sink"`
	Rotation      RotationConfig      `mapstructure:"rotation"`
	Processing    ProcessingConfig    `mapstructure:"processing"`
	Retry         RetryConfig         `mapstructure:"retry"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Shutdown      ShutdownConfig      `mapstructure:"shutdown"`
}

// ApplicationInfo contains application metadata
type ApplicationInfo struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// KafkaConfig contains Kafka-related configuration
type KafkaConfig struct {
	BootstrapServers []string       `mapstructure:"bootstrap_servers"`
	SecurityProtocol string         `mapstructure:"security_protocol"`
	SASLMechanism    string         `mapstructure:"sasl_mechanism"`
	SASLUsername     string         `mapstructure:"sasl_username"`
	SASLPassword     string         `mapstructure:"sasl_password"`
	Consumer         ConsumerConfig `mapstructure:"consumer"`
	DLQ              DLQConfig      `mapstructure:"dlq"`
}

// ConsumerConfig contains Kafka consumer configuration
type ConsumerConfig struct {
	GroupID             string   `mapstructure:"group_id"`
	Topics              []string `mapstructure:"topics"`
	AutoOffsetReset     string   `mapstructure:"auto_offset_reset"`
	EnableAutoCommit    bool     `mapstructure:"enable_auto_commit"`
	MaxPollRecords      int      `mapstructure:"max_poll_records"`
	MaxPollIntervalMS   int      `mapstructure:"max_poll_interval_ms"`
	SessionTimeoutMS    int      `mapstructure:"session_timeout_ms"`
	HeartbeatIntervalMS int      `mapstructure:"heartbeat_interval_ms"`
}

// DLQConfig contains dead letter queue configuration
type DLQConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	TopicSuffix string `mapstructure:"topic_suffix"`
	MaxRetries  int    `mapstructure:"max_retries"`
}

// HookConfig configures one transformation hook. Jpointers carries the
// raw rule entries exactly as they appear in the configuration file;
// the hook normalizes and validates them at startup.
type HookConfig struct {
	Type      string `mapstructure:"type"`
	Jpointers []any  `mapstructure:"jpointers"`
}

// SinkConfig contains sink backend configuration
type SinkConfig struct {
	Backend  string         `mapstructure:"backend"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	File     FileConfig     `mapstructure:"file"`
	S3       S3Config       `mapstructure:"s3"`
}

// PostgresConfig contains PostgreSQL sink configuration
type PostgresConfig struct {
	DSN                   string   `mapstructure:"dsn"`
	Table                 string   `mapstructure:"table"`
	Columns               []string `mapstructure:"columns"`
	PoolMaxConns          int      `mapstructure:"pool_max_conns"`
	ConnectTimeoutSeconds int      `mapstructure:"connect_timeout_seconds"`
}

// FileConfig contains local filesystem sink configuration
type FileConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// S3Config contains AWS S3 sink configuration
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	BasePath     string `mapstructure:"base_path"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	SSEEnabled   bool   `mapstructure:"sse_enabled"`
	SSEKMSKeyID  string `mapstructure:"sse_kms_key_id"`
}

// RotationConfig contains batch rotation settings
type RotationConfig struct {
	MaxBatchSizeMB     int64  `mapstructure:"max_batch_size_mb"`
	MaxFramesPerBatch  int    `mapstructure:"max_frames_per_batch"`
	MaxBatchAgeSeconds int    `mapstructure:"max_batch_age_seconds"`
	Strategy           string `mapstructure:"strategy"`
}

// ProcessingConfig contains processing settings
type ProcessingConfig struct {
	WorkerPoolSize       int `mapstructure:"worker_pool_size"`
	FlushIntervalSeconds int `mapstructure:"flush_interval_seconds"`
	MaxConcurrentUploads int `mapstructure:"max_concurrent_uploads"`
}

// RetryConfig contains sink retry settings
type RetryConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	MaxAttempts       int     `mapstructure:"max_attempts"`
	InitialBackoffMS  int     `mapstructure:"initial_backoff_ms"`
	MaxBackoffMS      int     `mapstructure:"max_backoff_ms"`
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier"`
	Jitter            bool    `mapstructure:"jitter"`
}

// ObservabilityConfig contains observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Server  ServerConfig  `mapstructure:"server"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ServerConfig contains the combined health and metrics HTTP server settings
type ServerConfig struct {
	Port           int    `mapstructure:"port"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	MetricsPath    string `mapstructure:"metrics_path"`
	LivenessPath   string `mapstructure:"liveness_path"`
	ReadinessPath  string `mapstructure:"readiness_path"`
}

// ShutdownConfig contains shutdown settings
type ShutdownConfig struct {
	GracePeriodSeconds  int `mapstructure:"grace_period_seconds"`
	ForceTimeoutSeconds int `mapstructure:"force_timeout_seconds"`
}

// GracePeriod returns the shutdown grace period as a duration.
func (c *ShutdownConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodSeconds) * time.Second
}

// ForceTimeout returns the forced shutdown timeout as a duration.
func (c *ShutdownConfig) ForceTimeout() time.Duration {
	return time.Duration(c.ForceTimeoutSeconds) * time.Second
}

// FlushInterval returns the buffer flush interval as a duration.
func (c *ProcessingConfig) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalSeconds) * time.Second
}

// ConnectTimeout returns the connection timeout as a duration.
func (c *PostgresConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.Application.Name == "" {
		return fmt.Errorf("application name is required")
	}
	if len(c.Kafka.BootstrapServers) == 0 {
		return fmt.Errorf("kafka bootstrap servers are required")
	}
	if c.Kafka.Consumer.GroupID == "" {
		return fmt.Errorf("kafka consumer group ID is required")
	}
	if len(c.Hooks) == 0 {
		return fmt.Errorf("at least one hook is required")
	}
	if c.Sink.Backend == "" {
		return fmt.Errorf("sink backend is required")
	}
	return nil
}

// Validate validates Postgres configuration.
func (c *PostgresConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("postgres DSN is required")
	}
	if c.Table == "" {
		return fmt.Errorf("postgres table is required")
	}
	if len(c.Columns) == 0 {
		return fmt.Errorf("postgres columns are required")
	}
	return nil
}

// Validate validates S3 configuration.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 region is required")
	}
	return nil
}

// Validate validates file configuration.
func (c *FileConfig) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("file base path is required")
	}
	return nil
}
