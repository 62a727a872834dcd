package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers      []string
	KafkaGroupID      string
	RawFindingsTopic  string
	ClassifiedTopic   string
	WorkerBatchWindow time.Duration

	// OIDC (optional; empty issuer disables auth on the HTTP surface)
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string

	// Rule catalogs
	ContaminantCatalogPath string
	LabRangesPath          string

	// Pipeline defaults
	EpisodeGapDays      int
	RelevanceMethod     string
	DaysBeforeBaseline  int
	DaysAfterBaseline   int
	HospPastWindowsDays []int

	// Feature store
	FeatureCacheTTL time.Duration

	// HTTP hardening
	RateLimitRPS   int
	RateLimitBurst int
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 60*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 32*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "bsi"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "bsi123"),
		PostgresDB:       getEnv("POSTGRES_DB", "bsi_study"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:      getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "bsi-pipeline"),
		RawFindingsTopic:  getEnv("KAFKA_RAW_FINDINGS_TOPIC", "bsi.findings.raw"),
		ClassifiedTopic:   getEnv("KAFKA_CLASSIFIED_TOPIC", "bsi.findings.classified"),
		WorkerBatchWindow: getDuration("WORKER_BATCH_WINDOW", 5*time.Second),

		OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),

		ContaminantCatalogPath: getEnv("CONTAMINANT_CATALOG_PATH", ""),
		LabRangesPath:          getEnv("LAB_RANGES_PATH", ""),

		EpisodeGapDays:      getIntEnv("EPISODE_GAP_DAYS", 30),
		RelevanceMethod:     getEnv("RELEVANCE_METHOD", "bottle"),
		DaysBeforeBaseline:  getIntEnv("DAYS_BEFORE_BASELINE", 365),
		DaysAfterBaseline:   getIntEnv("DAYS_AFTER_BASELINE", 365),
		HospPastWindowsDays: getIntSliceEnv("HOSP_PAST_WINDOWS_DAYS", []int{30, 90, 365}),

		FeatureCacheTTL: getDuration("FEATURE_CACHE_TTL", 10*time.Minute),

		RateLimitRPS:   getIntEnv("RATE_LIMIT_RPS", 50),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 100),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getIntSliceEnv(key string, defaultValue []int) []int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []int
	for _, part := range strings.Split(value, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
