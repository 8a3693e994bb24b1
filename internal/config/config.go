package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Feed modes.
const (
	FeedModeMock = "mock"
	FeedModeLive = "live"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	DBPath string

	// Feed configuration.
	FeedMode        string
	FeedInterval    time.Duration
	MockSampleCount int
	MockChangeRatio float64
	MockSeed        *int64
	RegionFile      string
	LiveWindow      time.Duration

	// Kafka snapshot publishing.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaSamplesTopic  string
	BatchSize          int
	BatchFlushInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	feedInterval, err := parsePositiveDuration("FEED_INTERVAL", "2s")
	if err != nil {
		return nil, err
	}

	liveWindow, err := parsePositiveDuration("LIVE_WINDOW", "24h")
	if err != nil {
		return nil, err
	}

	sampleCount, err := strconv.Atoi(sharedcfg.EnvOrDefault("MOCK_SAMPLE_COUNT", "1000"))
	if err != nil || sampleCount <= 0 {
		return nil, errors.New("invalid MOCK_SAMPLE_COUNT")
	}

	changeRatio, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("MOCK_CHANGE_RATIO", "0.2"), 64)
	if err != nil || changeRatio < 0 || changeRatio > 1 {
		return nil, errors.New("invalid MOCK_CHANGE_RATIO: must be within [0, 1]")
	}

	var seed *int64
	if s := os.Getenv("MOCK_SEED"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, errors.New("invalid MOCK_SEED")
		}
		seed = &v
	}

	brokersEnv := os.Getenv("KAFKA_BROKERS")
	kafkaEnabled := brokersEnv != ""
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DBPath: sharedcfg.EnvOrDefault("DB_PATH", "noise.db"),

		FeedMode:        sharedcfg.EnvOrDefault("FEED_MODE", FeedModeMock),
		FeedInterval:    feedInterval,
		MockSampleCount: sampleCount,
		MockChangeRatio: changeRatio,
		MockSeed:        seed,
		RegionFile:      os.Getenv("REGION_FILE"),
		LiveWindow:      liveWindow,

		KafkaEnabled:       kafkaEnabled,
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSamplesTopic:  sharedcfg.EnvOrDefault("KAFKA_SAMPLES_TOPIC", "noise-samples"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if cfg.FeedMode != FeedModeMock && cfg.FeedMode != FeedModeLive {
		return nil, fmt.Errorf("invalid FEED_MODE %q: must be %q or %q", cfg.FeedMode, FeedModeMock, FeedModeLive)
	}
	if cfg.DBPath == "" {
		return nil, errors.New("DB_PATH is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaSamplesTopic == "" {
		return nil, errors.New("KAFKA_SAMPLES_TOPIC is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}
