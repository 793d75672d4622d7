/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration. Values come from an
// optional YAML file (SEGUE_CONFIG_FILE) overridden by environment
// variables; env always wins.
type Config struct {
	Environment string `yaml:"environment"`
	HTTPBind    string `yaml:"http_bind"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsBind string `yaml:"metrics_bind"`

	DBBackend DatabaseBackend `yaml:"db_backend"`
	DBDSN     string          `yaml:"db_dsn"`

	MediaRoot string `yaml:"media_root"`

	// Initial playback settings; later changes arrive via the API.
	Volume            float64 `yaml:"volume"`
	CrossfadeEnabled  bool    `yaml:"crossfade_enabled"`
	CrossfadeDuration int     `yaml:"crossfade_duration_seconds"`
	AudioDevice       string  `yaml:"audio_device"`
	Subtitles         bool    `yaml:"subtitles"`

	LogBufferCapacity int `yaml:"log_buffer_capacity"`
}

// Load reads the optional YAML file, applies environment overrides and
// defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:       "development",
		HTTPBind:          "0.0.0.0",
		HTTPPort:          8080,
		MetricsBind:       "127.0.0.1:9000",
		DBBackend:         DatabaseSQLite,
		DBDSN:             "segue.db",
		MediaRoot:         "./media",
		Volume:            1.0,
		CrossfadeEnabled:  false,
		CrossfadeDuration: 5,
		LogBufferCapacity: 10000,
	}

	if path := os.Getenv("SEGUE_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.Environment = getEnv("SEGUE_ENV", cfg.Environment)
	cfg.HTTPBind = getEnv("SEGUE_HTTP_BIND", cfg.HTTPBind)
	cfg.HTTPPort = getEnvInt("SEGUE_HTTP_PORT", cfg.HTTPPort)
	cfg.MetricsBind = getEnv("SEGUE_METRICS_BIND", cfg.MetricsBind)
	cfg.DBBackend = DatabaseBackend(getEnv("SEGUE_DB_BACKEND", string(cfg.DBBackend)))
	cfg.DBDSN = getEnv("SEGUE_DB_DSN", cfg.DBDSN)
	cfg.MediaRoot = getEnv("SEGUE_MEDIA_ROOT", cfg.MediaRoot)
	cfg.Volume = getEnvFloat("SEGUE_VOLUME", cfg.Volume)
	cfg.CrossfadeEnabled = getEnvBool("SEGUE_CROSSFADE_ENABLED", cfg.CrossfadeEnabled)
	cfg.CrossfadeDuration = getEnvInt("SEGUE_CROSSFADE_DURATION_SECONDS", cfg.CrossfadeDuration)
	cfg.AudioDevice = getEnv("SEGUE_AUDIO_DEVICE", cfg.AudioDevice)
	cfg.Subtitles = getEnvBool("SEGUE_SUBTITLES", cfg.Subtitles)
	cfg.LogBufferCapacity = getEnvInt("SEGUE_LOG_BUFFER_CAPACITY", cfg.LogBufferCapacity)

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("SEGUE_DB_DSN must be provided")
	}
	if cfg.Volume < 0 || cfg.Volume > 1 {
		return nil, fmt.Errorf("volume %v out of range [0,1]", cfg.Volume)
	}
	if cfg.CrossfadeDuration < 1 || cfg.CrossfadeDuration > 20 {
		return nil, fmt.Errorf("crossfade duration %d out of range [1,20] seconds", cfg.CrossfadeDuration)
	}

	return cfg, nil
}

// HTTPAddr returns the bind address for the HTTP listener.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return def
}
