// Package config loads and validates the device model and runtime
// configuration the sensor-graph engine is built with — buffer
// capacities, node/streamer limits, logging, and RPC throttling — from a
// YAML file, mirroring the teacher's Load*Config/validate idiom.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DeviceModel bounds the resources a SensorGraph may consume, enforced at
// graph-build time (spec.md §5 — exceeding a limit raises
// ResourceUsageError, never during tick processing).
type DeviceModel struct {
	MaxNodes          int `yaml:"max_nodes"`
	MaxStreamers      int `yaml:"max_streamers"`
	StorageCapacity   int `yaml:"storage_capacity"`
	StreamingCapacity int `yaml:"streaming_capacity"`
}

// RuntimeConfig is the full on-disk configuration for a sensor-graph
// runtime instance.
type RuntimeConfig struct {
	Device    DeviceModel     `yaml:"device"`
	Vars      ConfigVars      `yaml:"config_vars"`
	Logging   LoggingConfig   `yaml:"logging"`
	Throttle  ThrottleConfig  `yaml:"throttle"`
	EventLog  EventLogConfig  `yaml:"event_log"`
	HostStats HostStatsConfig `yaml:"host_stats"`
}

// LoggingConfig configures the shared structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// ThrottleConfig bounds the RPC ingestion path's reading rate.
// ReadingsPerSec <= 0 disables throttling.
type ThrottleConfig struct {
	ReadingsPerSec int `yaml:"readings_per_sec"`
}

// EventLogConfig configures the diagnostic event trail.
type EventLogConfig struct {
	Path     string `yaml:"path"`
	RingSize int    `yaml:"ring_size"`
	MaxLines int    `yaml:"max_lines"`
}

// HostStatsConfig configures the optional gopsutil-backed constant-stream
// sampler. IntervalSeconds <= 0 disables sampling entirely.
type HostStatsConfig struct {
	IntervalSeconds int    `yaml:"interval_seconds"`
	CPUStream       uint16 `yaml:"cpu_stream"`
	MemStream       uint16 `yaml:"mem_stream"`
}

// Load reads and validates the YAML configuration file at path.
func Load(path string) (*RuntimeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %q: %w", path, err)
	}

	var cfg RuntimeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %q: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validating %q: %w", path, err)
	}

	return &cfg, nil
}

func (c *RuntimeConfig) validate() error {
	if c.Device.MaxNodes <= 0 {
		return fmt.Errorf("device.max_nodes must be positive")
	}
	if c.Device.MaxStreamers <= 0 {
		return fmt.Errorf("device.max_streamers must be positive")
	}
	if c.Device.StorageCapacity <= 0 {
		return fmt.Errorf("device.storage_capacity must be positive")
	}
	if c.Device.StreamingCapacity <= 0 {
		return fmt.Errorf("device.streaming_capacity must be positive")
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.EventLog.RingSize <= 0 {
		c.EventLog.RingSize = 500
	}
	if c.EventLog.MaxLines <= 0 {
		c.EventLog.MaxLines = 10000
	}

	if c.Throttle.ReadingsPerSec < 0 {
		return fmt.Errorf("throttle.readings_per_sec must not be negative")
	}

	if c.HostStats.IntervalSeconds < 0 {
		return fmt.Errorf("host_stats.interval_seconds must not be negative")
	}

	return nil
}
