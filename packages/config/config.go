// Package config loads server configuration from environment variables, an
// optional .env file, and an optional YAML file for list-valued settings.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all settings for the reqpad server.
type Config struct {
	BindAddr string
	LogLevel string
	LogFile  string

	CacheTTLSeconds int
	CacheCapacity   int

	AllowedPorts    []int
	PreviewCapBytes int64

	SendRPS        float64 // 0 disables rate limiting
	MaxUploadBytes int64

	HistoryPath string // empty disables the dispatch log

	// File is the YAML config path; its settings override the environment.
	File string
}

// Load reads configuration from environment variables, an optional .env file,
// and the YAML file named by REQPAD_CONFIG_FILE (default reqpad.yml, applied
// only when it exists).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		BindAddr:        getEnvOrDefault("REQPAD_BIND_ADDR", "127.0.0.1:8199"),
		LogLevel:        strings.ToLower(getEnvOrDefault("REQPAD_LOG_LEVEL", "info")),
		LogFile:         getEnvOrDefault("REQPAD_LOG_FILE", "logs/reqpad.log"),
		CacheTTLSeconds: getEnvIntOrDefault("REQPAD_CACHE_TTL_SECONDS", 300),
		CacheCapacity:   getEnvIntOrDefault("REQPAD_CACHE_CAPACITY", 100),
		AllowedPorts:    parsePorts(getEnvOrDefault("REQPAD_ALLOWED_PORTS", "80,443")),
		PreviewCapBytes: int64(getEnvIntOrDefault("REQPAD_PREVIEW_CAP_BYTES", 2*1024*1024)),
		SendRPS:         getEnvFloatOrDefault("REQPAD_SEND_RPS", 0),
		MaxUploadBytes:  int64(getEnvIntOrDefault("REQPAD_MAX_UPLOAD_MB", 50)) * 1024 * 1024,
		HistoryPath:     getEnvOrDefault("REQPAD_HISTORY_PATH", ""),
		File:            getEnvOrDefault("REQPAD_CONFIG_FILE", "reqpad.yml"),
	}

	if cfg.File != "" {
		if _, err := os.Stat(cfg.File); err == nil {
			if err := cfg.applyFile(cfg.File); err != nil {
				return nil, err
			}
		}
	}

	if len(cfg.AllowedPorts) == 0 {
		cfg.AllowedPorts = []int{80, 443}
	}
	return cfg, nil
}

// fileConfig mirrors Config in YAML form. Pointer fields distinguish "unset"
// from zero values.
type fileConfig struct {
	BindAddr        *string  `yaml:"bind_addr"`
	LogLevel        *string  `yaml:"log_level"`
	LogFile         *string  `yaml:"log_file"`
	CacheTTLSeconds *int     `yaml:"cache_ttl_seconds"`
	CacheCapacity   *int     `yaml:"cache_capacity"`
	AllowedPorts    []int    `yaml:"allowed_ports"`
	PreviewCapBytes *int64   `yaml:"preview_cap_bytes"`
	SendRPS         *float64 `yaml:"send_rps"`
	MaxUploadMB     *int64   `yaml:"max_upload_mb"`
	HistoryPath     *string  `yaml:"history_path"`
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if fc.BindAddr != nil {
		c.BindAddr = *fc.BindAddr
	}
	if fc.LogLevel != nil {
		c.LogLevel = strings.ToLower(*fc.LogLevel)
	}
	if fc.LogFile != nil {
		c.LogFile = *fc.LogFile
	}
	if fc.CacheTTLSeconds != nil {
		c.CacheTTLSeconds = *fc.CacheTTLSeconds
	}
	if fc.CacheCapacity != nil {
		c.CacheCapacity = *fc.CacheCapacity
	}
	if len(fc.AllowedPorts) > 0 {
		c.AllowedPorts = fc.AllowedPorts
	}
	if fc.PreviewCapBytes != nil {
		c.PreviewCapBytes = *fc.PreviewCapBytes
	}
	if fc.SendRPS != nil {
		c.SendRPS = *fc.SendRPS
	}
	if fc.MaxUploadMB != nil {
		c.MaxUploadBytes = *fc.MaxUploadMB * 1024 * 1024
	}
	if fc.HistoryPath != nil {
		c.HistoryPath = *fc.HistoryPath
	}
	return nil
}

func parsePorts(s string) []int {
	var ports []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if p, err := strconv.Atoi(part); err == nil && p > 0 && p < 65536 {
			ports = append(ports, p)
		}
	}
	return ports
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloatOrDefault(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
