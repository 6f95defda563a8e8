// Package config holds the file-backed configuration shared by the
// run and serve commands.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds configuration for scheduler runs and the inspection
// server. Zero values fall back to the defaults at load time.
type Config struct {
	// Scheduler parameters
	TimerFreq  int  `yaml:"timer_freq"`  // timer ticks per second
	TimeSlice  int  `yaml:"time_slice"`  // ticks per scheduling quantum
	MaxThreads int  `yaml:"max_threads"` // thread arena capacity
	MLFQS      bool `yaml:"mlfqs"`       // MLFQS policy instead of priority scheduling

	// Run driver
	TickInterval string `yaml:"tick_interval"` // wall-clock pacing per tick, e.g. "1ms"; empty runs unpaced
	MaxTicks     int64  `yaml:"max_ticks"`     // stop a run after this many ticks; 0 waits for the scenario

	// Persistence and serving
	DBPath    string `yaml:"db_path"`    // SQLite database path, ":memory:" for testing
	Addr      string `yaml:"addr"`       // inspection server listen address
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text, json
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		TimerFreq:  100,
		TimeSlice:  4,
		MaxThreads: 64,
		MaxTicks:   10000,
		DBPath:     "kosched.db",
		Addr:       ":8080",
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

// Load reads a YAML config file and fills unset fields with defaults.
// A missing path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("config file %s: %w", path, err)
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.merge(file)
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// merge overlays non-zero fields from file onto the defaults.
func (c *Config) merge(file Config) {
	if file.TimerFreq != 0 {
		c.TimerFreq = file.TimerFreq
	}
	if file.TimeSlice != 0 {
		c.TimeSlice = file.TimeSlice
	}
	if file.MaxThreads != 0 {
		c.MaxThreads = file.MaxThreads
	}
	if file.MLFQS {
		c.MLFQS = true
	}
	if file.TickInterval != "" {
		c.TickInterval = file.TickInterval
	}
	if file.MaxTicks != 0 {
		c.MaxTicks = file.MaxTicks
	}
	if file.DBPath != "" {
		c.DBPath = file.DBPath
	}
	if file.Addr != "" {
		c.Addr = file.Addr
	}
	if file.LogLevel != "" {
		c.LogLevel = file.LogLevel
	}
	if file.LogFormat != "" {
		c.LogFormat = file.LogFormat
	}
}

func (c *Config) validate() error {
	if c.TimerFreq < 1 {
		return fmt.Errorf("timer_freq must be positive, got %d", c.TimerFreq)
	}
	if c.TimeSlice < 1 {
		return fmt.Errorf("time_slice must be positive, got %d", c.TimeSlice)
	}
	if c.MaxThreads < 2 {
		return fmt.Errorf("max_threads must be at least 2, got %d", c.MaxThreads)
	}
	if c.MaxTicks < 0 {
		return fmt.Errorf("max_ticks must not be negative, got %d", c.MaxTicks)
	}
	return nil
}
