// Package config reads the MASC_* environment variables named in the
// specification into a typed Config, following the teacher's
// config-struct-plus-envOrDefault shape.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds every tunable the server reads at startup.
type Config struct {
	StorageType string // memory | fs | redis | postgres
	RedisURL    string
	PostgresURL string
	Root        string // MASC_ROOT / MASC_BASE_PATH
	ClusterName string
	Port        string

	Token          string
	EncryptionKey  string // 32-byte hex, empty disables at-rest encryption
	LogLevel       string // debug | info | warn | error

	HeartbeatTTL  time.Duration
	ZombieTTL     time.Duration
	HandoffTTL    time.Duration
	HandoffConsumeTTL time.Duration
	InterruptTTL  time.Duration
	DrainTimeout  time.Duration

	DriftThreshold     float64
	DriftJaccardWeight float64
	DriftCosineWeight  float64

	TempoBase             time.Duration
	TempoConcurrencyTarget int
}

// Load builds a Config from the process environment, applying the
// defaults given in spec.md §6.
func Load() Config {
	root := envOrDefault("MASC_ROOT", envOrDefault("MASC_BASE_PATH", "./.masc-data"))
	cluster := envOrDefault("MASC_CLUSTER_NAME", filepath.Base(root))

	return Config{
		StorageType: envOrDefault("MASC_STORAGE_TYPE", "memory"),
		RedisURL:    envOrDefault("MASC_REDIS_URL", ""),
		PostgresURL: envOrDefault("MASC_POSTGRES_URL", ""),
		Root:        root,
		ClusterName: cluster,
		Port:        envOrDefault("MASC_PORT", "8935"),

		Token:         envOrDefault("MASC_TOKEN", ""),
		EncryptionKey: envOrDefault("MASC_ENCRYPTION_KEY", ""),
		LogLevel:      envOrDefault("MASC_LOG_LEVEL", "info"),

		HeartbeatTTL:      envDurationSeconds("MASC_HEARTBEAT_TTL", 30*time.Second),
		ZombieTTL:         envDurationSeconds("MASC_ZOMBIE_TTL", 120*time.Second),
		HandoffTTL:        envDurationSeconds("MASC_HANDOFF_TTL", 3600*time.Second),
		HandoffConsumeTTL: envDurationSeconds("MASC_HANDOFF_CONSUME_TTL", 900*time.Second),
		InterruptTTL:      envDurationSeconds("MASC_INTERRUPT_TTL", 600*time.Second),
		DrainTimeout:      envDurationSeconds("MASC_DRAIN_TIMEOUT", 30*time.Second),

		DriftThreshold:     envFloat("MASC_DRIFT_THRESHOLD", 0.85),
		DriftJaccardWeight: envFloat("MASC_DRIFT_JACCARD_WEIGHT", 0.5),
		DriftCosineWeight:  envFloat("MASC_DRIFT_COSINE_WEIGHT", 0.5),

		TempoBase:              envDurationSeconds("MASC_TEMPO_BASE", 30*time.Second),
		TempoConcurrencyTarget: envInt("MASC_TEMPO_CONCURRENCY_TARGET", 10),
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envDurationSeconds(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs * float64(time.Second))
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
