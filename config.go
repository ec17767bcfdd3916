package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gnsslab/ubertrack/galileo"
	"github.com/gnsslab/ubertrack/tracking"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Source     SourceConfig     `yaml:"source"`
	Tracking   tracking.Config  `yaml:"tracking"`
	Channels   []ChannelConfig  `yaml:"channels"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	CodesFile  string           `yaml:"codes_file"`
}

// ServerConfig contains web server settings
type ServerConfig struct {
	Listen     string `yaml:"listen"`
	EnableCORS bool   `yaml:"enable_cors"`
}

// SourceConfig describes the recorded IQ stream fed to the channels
type SourceConfig struct {
	Path         string  `yaml:"path"`           // file path, .gz transparently decompressed, "-" for stdin
	SampleRateHz float64 `yaml:"sample_rate_hz"` // must match tracking.fs_in
	ChunkEpochs  int     `yaml:"chunk_epochs"`   // epochs worth of samples per read (default: 4)
}

// ChannelConfig carries one satellite's acquisition handoff
type ChannelConfig struct {
	PRN              int     `yaml:"prn"`
	DopplerHz        float64 `yaml:"doppler_hz"`
	CodePhaseSamples float64 `yaml:"code_phase_samples"`
	SampleStamp      uint64  `yaml:"sample_stamp"`
}

// MQTTConfig contains MQTT broker settings for event publishing
type MQTTConfig struct {
	Enabled            bool   `yaml:"enabled"`
	Broker             string `yaml:"broker"` // e.g. tcp://localhost:1883
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	TopicPrefix        string `yaml:"topic_prefix"` // default: ubertrack
	QoS                byte   `yaml:"qos"`
	StatusIntervalSecs int    `yaml:"status_interval_secs"` // periodic channel status (default: 10)
}

// PrometheusConfig contains metrics endpoint settings
type PrometheusConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoadConfig loads and validates the configuration from a YAML file
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate fills defaults and checks cross-field consistency
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Source.Path == "" {
		return fmt.Errorf("source.path is required")
	}
	if c.Source.SampleRateHz <= 0 {
		return fmt.Errorf("source.sample_rate_hz must be positive, got %g", c.Source.SampleRateHz)
	}
	if c.Source.ChunkEpochs <= 0 {
		c.Source.ChunkEpochs = 4
	}
	if c.CodesFile == "" {
		return fmt.Errorf("codes_file is required")
	}

	if c.Tracking.FsIn == 0 {
		c.Tracking.FsIn = c.Source.SampleRateHz
	}
	if c.Tracking.FsIn != c.Source.SampleRateHz {
		return fmt.Errorf("tracking.fs_in (%g) does not match source.sample_rate_hz (%g)",
			c.Tracking.FsIn, c.Source.SampleRateHz)
	}
	if c.Tracking.VectorLength == 0 {
		c.Tracking.VectorLength = int(c.Tracking.FsIn*galileo.CodePeriodSeconds + 0.5)
	}
	if err := c.Tracking.Validate(); err != nil {
		return err
	}

	if len(c.Channels) == 0 {
		return fmt.Errorf("at least one channel is required")
	}
	seen := make(map[int]bool)
	for i, ch := range c.Channels {
		if ch.PRN < galileo.MinPRN || ch.PRN > galileo.MaxPRN {
			return fmt.Errorf("channel %d: PRN %d out of range [%d, %d]",
				i, ch.PRN, galileo.MinPRN, galileo.MaxPRN)
		}
		if seen[ch.PRN] {
			return fmt.Errorf("channel %d: duplicate PRN %d", i, ch.PRN)
		}
		seen[ch.PRN] = true
		if ch.CodePhaseSamples < 0 {
			return fmt.Errorf("channel %d: code_phase_samples must not be negative", i)
		}
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		if c.MQTT.TopicPrefix == "" {
			c.MQTT.TopicPrefix = "ubertrack"
		}
		if c.MQTT.StatusIntervalSecs <= 0 {
			c.MQTT.StatusIntervalSecs = 10
		}
	}

	return nil
}
