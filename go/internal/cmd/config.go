package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/mattiabrun/fantalega/go/internal/models"
)

// Config is the optional market settings file. Environment variables cover
// connection settings; the YAML file carries league-level auction defaults.
type Config struct {
	Market struct {
		TimerSeconds  int      `yaml:"timer_seconds"`
		RoleSequence  []string `yaml:"role_sequence"`
		OutboxStream  string   `yaml:"outbox_stream"`
		SubjectPrefix string   `yaml:"subject_prefix"`
	} `yaml:"market"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&config)
	return &config, nil
}

func defaultConfig() *Config {
	var config Config
	applyDefaults(&config)
	return &config
}

func applyDefaults(config *Config) {
	if config.Market.OutboxStream == "" {
		config.Market.OutboxStream = "AUCTION_EVENTS"
	}
	if config.Market.SubjectPrefix == "" {
		config.Market.SubjectPrefix = "auction.events"
	}
	if config.Market.TimerSeconds <= 0 {
		config.Market.TimerSeconds = getEnvAsInt("AUCTION_TIMER_SECONDS", 0)
	}
}

// roleSequence parses the configured sequence, falling back to P→D→C→A.
func (c *Config) roleSequence() ([]models.Role, error) {
	if len(c.Market.RoleSequence) == 0 {
		return models.DefaultRoleSequence, nil
	}
	seq := make([]models.Role, 0, len(c.Market.RoleSequence))
	for _, raw := range c.Market.RoleSequence {
		role, err := models.ParseRole(raw)
		if err != nil {
			return nil, fmt.Errorf("config role sequence: %w", err)
		}
		seq = append(seq, role)
	}
	return seq, nil
}
