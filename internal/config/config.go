// Package config loads runtime configuration from a .env file (if
// present) plus environment variables, applying typed defaults for
// anything unset.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the WAL core.
type Config struct {
	WAL     WALConfig
	Storage StorageConfig
	Kafka   KafkaConfig
	Logging LoggingConfig
}

// WALConfig holds segment-directory and durability knobs.
type WALConfig struct {
	Dir                     string
	Prefix                  string
	MaxSegmentBytes         int64
	SyncOnWrite             bool
	CheckpointEveryRecords  uint64
	CheckpointEveryInterval time.Duration
	StaleLockAfter          time.Duration
	ReplayMaxGapTolerance   uint64
}

// StorageConfig holds the pebble-backed segment index and outbox
// ledger locations. IndexDir is loaded but not used by any package:
// the segment index always lives in a ".<prefix>.index" subdirectory
// of WAL.Dir.
type StorageConfig struct {
	IndexDir  string
	OutboxDir string
}

// KafkaConfig holds broadcaster connection settings.
type KafkaConfig struct {
	Enabled  bool
	Brokers  []string
	Topic    string
	Interval time.Duration
}

// LoggingConfig holds logging knobs.
type LoggingConfig struct {
	Level string
	File  string
}

// Load reads a .env file if present, then environment variables,
// applying defaults for anything unset.
func Load() (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env doesn't exist.

	cfg := &Config{
		WAL:     loadWALConfig(),
		Storage: loadStorageConfig(),
		Kafka:   loadKafkaConfig(),
		Logging: loadLoggingConfig(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadWALConfig() WALConfig {
	return WALConfig{
		Dir:                     getEnvString("VZWL_WAL_DIR", "./wal_data"),
		Prefix:                  getEnvString("VZWL_WAL_PREFIX", "wal"),
		MaxSegmentBytes:         getEnvInt64("VZWL_WAL_MAX_SEGMENT_BYTES", 64<<20),
		SyncOnWrite:             getEnvBool("VZWL_WAL_SYNC_ON_WRITE", true),
		CheckpointEveryRecords:  getEnvUint64("VZWL_WAL_CHECKPOINT_EVERY_RECORDS", 100000),
		CheckpointEveryInterval: getEnvDuration("VZWL_WAL_CHECKPOINT_EVERY_INTERVAL", 60*time.Second),
		StaleLockAfter:          getEnvDuration("VZWL_WAL_STALE_LOCK_AFTER", 30*time.Second),
		ReplayMaxGapTolerance:   getEnvUint64("VZWL_WAL_REPLAY_MAX_GAP_TOLERANCE", 0),
	}
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		IndexDir:  getEnvString("VZWL_INDEX_DIR", "./wal_data"),
		OutboxDir: getEnvString("VZWL_OUTBOX_DIR", "./wal_data/.outbox"),
	}
}

func loadKafkaConfig() KafkaConfig {
	brokers := getEnvString("VZWL_KAFKA_BROKERS", "")
	var list []string
	if brokers != "" {
		list = strings.Split(brokers, ",")
	}
	return KafkaConfig{
		Enabled:  getEnvBool("VZWL_KAFKA_ENABLED", false),
		Brokers:  list,
		Topic:    getEnvString("VZWL_KAFKA_TOPIC", "order-events"),
		Interval: getEnvDuration("VZWL_KAFKA_POLL_INTERVAL", 250*time.Millisecond),
	}
}

func loadLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level: getEnvString("VZWL_LOG_LEVEL", "info"),
		File:  getEnvString("VZWL_LOG_FILE", ""), // empty = stdout
	}
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// Validate checks that the loaded configuration is internally
// consistent.
func (c *Config) Validate() error {
	if c.WAL.Dir == "" {
		return fmt.Errorf("config: WAL dir must not be empty")
	}
	if c.WAL.MaxSegmentBytes <= 0 {
		return fmt.Errorf("config: invalid max segment bytes: %d", c.WAL.MaxSegmentBytes)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka enabled but no brokers configured")
	}
	return nil
}

// String returns a safe, log-friendly summary.
func (c *Config) String() string {
	return fmt.Sprintf(
		"WAL{Dir:%s, MaxSegmentBytes:%d, SyncOnWrite:%v}, Kafka{Enabled:%v, Topic:%s}",
		c.WAL.Dir, c.WAL.MaxSegmentBytes, c.WAL.SyncOnWrite, c.Kafka.Enabled, c.Kafka.Topic,
	)
}
