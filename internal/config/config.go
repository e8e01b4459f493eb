// Package config loads the Kernox agent's environment-driven configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// OutputMode selects how the transport delivers events.
type OutputMode string

const (
	OutputStdout OutputMode = "stdout"
	OutputHTTP   OutputMode = "http"
)

// Config holds the agent's runtime configuration, loaded once at startup.
type Config struct {
	EndpointID string     `json:"endpoint_id"`
	BackendURL string     `json:"backend_url"`
	OutputMode OutputMode `json:"output_mode"`

	HeartbeatInterval time.Duration `json:"heartbeat_interval"`
	LogLevel          string        `json:"log_level"`
	PIDFile           string        `json:"pid_file"`

	RulesDir           string        `json:"rules_dir"`
	AuthLogPath        string        `json:"auth_log_path"`
	FallbackSpoolPath  string        `json:"fallback_spool_path"`
	DebugListenAddr    string        `json:"debug_listen_addr"`
	DetectorCooldown   time.Duration `json:"detector_cooldown"`
	QueueCapacity      int           `json:"queue_capacity"`
	NATSURL            string        `json:"nats_url"`
	RingMapDir         string        `json:"ring_map_dir"`
}

// Load reads configuration from the environment, applying the defaults
// documented in SPEC_FULL.md §6.
func Load() (*Config, error) {
	cfg := &Config{
		EndpointID: getEnv("KERNOX_ENDPOINT_ID", ""),
		BackendURL: getEnv("KERNOX_BACKEND_URL", ""),
		OutputMode: OutputMode(getEnv("KERNOX_OUTPUT_MODE", "stdout")),

		HeartbeatInterval: getDurationSecEnv("KERNOX_HEARTBEAT_INTERVAL", 30*time.Second),
		LogLevel:          getEnv("KERNOX_LOG_LEVEL", "info"),
		PIDFile:           getEnv("KERNOX_PID_FILE", "/var/run/kernox.pid"),

		RulesDir:          getEnv("KERNOX_RULES_DIR", "agent/rules"),
		AuthLogPath:       getEnv("KERNOX_AUTH_LOG_PATH", "/var/log/auth.log"),
		FallbackSpoolPath: getEnv("KERNOX_FALLBACK_SPOOL_PATH", "/var/lib/kernox/fallback.jsonl"),
		DebugListenAddr:   getEnv("KERNOX_DEBUG_LISTEN_ADDR", ""),
		DetectorCooldown:  getDurationEnv("KERNOX_DETECTOR_COOLDOWN", 30*time.Second),
		QueueCapacity:     getIntEnv("KERNOX_QUEUE_CAPACITY", 10000),
		NATSURL:           getEnv("KERNOX_NATS_URL", ""),
		RingMapDir:        getEnv("KERNOX_RING_MAP_DIR", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that required fields are present for the selected mode.
func (c *Config) Validate() error {
	if c.EndpointID == "" {
		return fmt.Errorf("endpoint_id cannot be empty")
	}
	switch c.OutputMode {
	case OutputStdout:
	case OutputHTTP:
		if c.BackendURL == "" {
			return fmt.Errorf("backend_url cannot be empty when output_mode is http")
		}
	default:
		return fmt.Errorf("output_mode must be one of stdout|http, got %q", c.OutputMode)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive")
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("queue_capacity must be positive")
	}
	return nil
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

// getDurationSecEnv parses a plain integer number of seconds, matching the
// KERNOX_HEARTBEAT_INTERVAL wire contract in SPEC_FULL.md §6.
func getDurationSecEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

// getDurationEnv parses a Go duration string (e.g. "30s"), used by the FULL
// additions that are not part of the original six spec.md variables.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
