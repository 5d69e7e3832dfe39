package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig holds all process configuration. Values come from an optional
// YAML file (ARENA_CONFIG) overridden by environment variables.
type AppConfig struct {
	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`

	AgentGatewayURL  string        `yaml:"agent_gateway_url"`
	AgentGatewayKey  string        `yaml:"agent_gateway_key"`
	AgentMoveTimeout time.Duration `yaml:"agent_move_timeout"`

	EloK          int `yaml:"elo_k"`
	DefaultRating int `yaml:"default_rating"`

	PokerStartingChips int `yaml:"poker_starting_chips"`
}

func defaults() *AppConfig {
	return &AppConfig{
		AgentMoveTimeout:   30 * time.Second,
		EloK:               32,
		DefaultRating:      1200,
		PokerStartingChips: 1000,
	}
}

func Load() (*AppConfig, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("ARENA_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("AGENT_GATEWAY_URL")); v != "" {
		cfg.AgentGatewayURL = v
	}
	if v := strings.TrimSpace(os.Getenv("AGENT_GATEWAY_KEY")); v != "" {
		cfg.AgentGatewayKey = v
	}
	if v := strings.TrimSpace(os.Getenv("AGENT_MOVE_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.AgentMoveTimeout = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("ELO_K")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EloK = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("DEFAULT_RATING")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DefaultRating = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("POKER_STARTING_CHIPS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PokerStartingChips = n
		}
	}

	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	return cfg, nil
}
