// Package config manages the scanledger application configuration. It handles
// loading, validating, and providing access to settings from YAML files, with
// defaults for every value.
package config

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server struct {
		Host            string   `yaml:"host"`
		HTTPPort        int      `yaml:"httpPort"`
		BannerPort      int      `yaml:"bannerPort"`
		Flag            string   `yaml:"flag"`
		AllowedOrigins  []string `yaml:"allowedOrigins"`
		ReadTimeout     int      `yaml:"readTimeout"`
		WriteTimeout    int      `yaml:"writeTimeout"`
		ShutdownTimeout int      `yaml:"shutdownTimeout"`
	} `yaml:"server"`

	Ingest struct {
		OutJSONL   string `yaml:"outJsonl"`
		OutDB      string `yaml:"outDb"`
		BundleOut  string `yaml:"bundleOut"`
		SamplesDir string `yaml:"samplesDir"`
	} `yaml:"ingest"`

	Reward struct {
		BaseReward       float64 `yaml:"baseReward"`
		DecayRate        float64 `yaml:"decayRate"`
		PenaltyRedundant float64 `yaml:"penaltyRedundant"`
		PenaltyError     float64 `yaml:"penaltyError"`
		MaxRepeats       int     `yaml:"maxRepeats"`
		MinInfoGain      float64 `yaml:"minInfoGain"`
	} `yaml:"reward"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	path string
	mu   sync.RWMutex
}

var (
	instance *Config
	once     sync.Once
)

// GetConfig returns the singleton configuration instance.
func GetConfig() *Config {
	once.Do(func() {
		instance = &Config{}
		setDefaults(instance)
	})
	return instance
}

// LoadConfig loads configuration from a YAML file.
func (c *Config) LoadConfig(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.path = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("configuration file does not exist: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read configuration file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse configuration file: %w", err)
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.Info().Str("path", path).Msg("Configuration loaded successfully")
	return nil
}

// Reload reloads the configuration from the file it was loaded from.
func (c *Config) Reload() error {
	if c.path == "" {
		return errors.New("configuration was not loaded from a file")
	}
	return c.LoadConfig(c.path)
}

// SaveConfig saves the current configuration to a file.
func (c *Config) SaveConfig(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.BannerPort <= 0 || c.Server.BannerPort > 65535 {
		return fmt.Errorf("invalid banner port: %d", c.Server.BannerPort)
	}
	if c.Ingest.OutJSONL == "" {
		return errors.New("ingest JSONL output path is required")
	}
	if c.Ingest.OutDB == "" {
		return errors.New("ingest database output path is required")
	}
	if c.Reward.DecayRate < 0 {
		return fmt.Errorf("invalid reward decay rate: %f", c.Reward.DecayRate)
	}
	if c.Reward.MaxRepeats <= 0 {
		return fmt.Errorf("invalid reward max repeats: %d", c.Reward.MaxRepeats)
	}
	return nil
}

// setDefaults initializes the configuration with default values.
func setDefaults(c *Config) {
	c.Server.Host = "127.0.0.1"
	c.Server.HTTPPort = 8080
	c.Server.BannerPort = 31337
	c.Server.Flag = "FLAG{example_flag}"
	c.Server.AllowedOrigins = []string{"*"}
	c.Server.ReadTimeout = 30
	c.Server.WriteTimeout = 30
	c.Server.ShutdownTimeout = 10

	c.Ingest.OutJSONL = "knowledge.jsonl"
	c.Ingest.OutDB = "knowledge.db"
	c.Ingest.BundleOut = "output/nmap_knowledge.json"
	c.Ingest.SamplesDir = "samples"

	c.Reward.BaseReward = 1.0
	c.Reward.DecayRate = 0.005
	c.Reward.PenaltyRedundant = 0.3
	c.Reward.PenaltyError = 0.5
	c.Reward.MaxRepeats = 3
	c.Reward.MinInfoGain = 0.01

	c.Logging.Level = "info"
}
