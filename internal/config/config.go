package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	PathPrefix      string
	LogLevel        string
	LogFormat       string
	LogFile         string
	LogMaxSizeMB    int
	LogMaxBackups   int
	ShutdownTimeout time.Duration

	// Key-value store.
	StoreBackend string
	RedisURL     string
	PostgresDSN  string

	// Kafka change events and device feed.
	KafkaBrokers        []string
	ChangeEventsEnabled bool
	ChangeTopic         string
	FeedEnabled         bool
	FeedTopic           string
	FeedGroupID         string
	FeedEntities        []string

	// Simulator defaults.
	SimulationSteps int

	// Mapbox reverse geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("MAPBOX_TIMEOUT", "5s"))
	if err != nil || mapboxTimeout <= 0 {
		return nil, errors.New("invalid MAPBOX_TIMEOUT")
	}

	simulationSteps, err := parsePositiveInt("SIMULATION_STEPS", 20)
	if err != nil {
		return nil, err
	}
	logMaxSize, err := parsePositiveInt("LOG_MAX_SIZE_MB", 100)
	if err != nil {
		return nil, err
	}
	logMaxBackups, err := parsePositiveInt("LOG_MAX_BACKUPS", 3)
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		PathPrefix:      strings.TrimRight(os.Getenv("PATH_PREFIX"), "/"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		LogFile:         os.Getenv("LOG_FILE"),
		LogMaxSizeMB:    logMaxSize,
		LogMaxBackups:   logMaxBackups,
		ShutdownTimeout: shutdownTimeout,

		StoreBackend: strings.ToLower(sharedcfg.EnvOrDefault("STORE_BACKEND", BackendMemory)),
		RedisURL:     sharedcfg.EnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),

		KafkaBrokers:        sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		ChangeEventsEnabled: os.Getenv("CHANGE_EVENTS_ENABLED") == "true",
		ChangeTopic:         sharedcfg.EnvOrDefault("KAFKA_CHANGE_TOPIC", "friend-relay-changes"),
		FeedEnabled:         os.Getenv("FEED_ENABLED") == "true",
		FeedTopic:           sharedcfg.EnvOrDefault("KAFKA_FEED_TOPIC", "device-positions"),
		FeedGroupID:         sharedcfg.EnvOrDefault("KAFKA_FEED_GROUP_ID", "friend-relay"),
		FeedEntities:        parseList(os.Getenv("FEED_ENTITIES")),

		SimulationSteps: simulationSteps,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return errors.New("STORE_BACKEND is postgres but POSTGRES_DSN is not set")
		}
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q", c.StoreBackend)
	}
	if (c.ChangeEventsEnabled || c.FeedEnabled) && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if c.ChangeEventsEnabled && c.ChangeTopic == "" {
		return errors.New("KAFKA_CHANGE_TOPIC is required")
	}
	if c.FeedEnabled && c.FeedTopic == "" {
		return errors.New("KAFKA_FEED_TOPIC is required")
	}
	if c.FeedEnabled && len(c.FeedEntities) == 0 {
		return errors.New("FEED_ENABLED is true but FEED_ENTITIES is empty")
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	return nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
