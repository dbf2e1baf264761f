package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ============================================================
// Configuration
// ============================================================

type Config struct {
	Port           string   `yaml:"port"`
	Environment    string   `yaml:"env"`
	ReadTimeout    int      `yaml:"read_timeout"`
	WriteTimeout   int      `yaml:"write_timeout"`
	DBPath         string   `yaml:"db_path"`
	MigrationsPath string   `yaml:"migrations"`
	OpenAPIPath    string   `yaml:"openapi"`
	CORSOrigins    []string `yaml:"cors_origins"`
}

func defaults() *Config {
	return &Config{
		Port:           "3000",
		Environment:    "development",
		ReadTimeout:    10,
		WriteTimeout:   10,
		DBPath:         "data/db/sketches.db",
		MigrationsPath: "migrations/001_init_sketches.sql",
		OpenAPIPath:    "docs/sketch.openapi.yaml",
		CORSOrigins:    []string{"*"},
	}
}

// Load загружает конфигурацию: .env, затем YAML из SKETCH_CONFIG (если задан),
// затем переменные окружения поверх.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("SKETCH_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Environment = getEnv("ENV", c.Environment)
	c.ReadTimeout = getEnvAsInt("READ_TIMEOUT", c.ReadTimeout)
	c.WriteTimeout = getEnvAsInt("WRITE_TIMEOUT", c.WriteTimeout)
	c.DBPath = getEnv("SKETCH_DB_PATH", c.DBPath)
	c.MigrationsPath = getEnv("SKETCH_MIGRATIONS", c.MigrationsPath)
	c.OpenAPIPath = getEnv("SKETCH_OPENAPI", c.OpenAPIPath)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.CORSOrigins = splitList(origins)
	}
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
