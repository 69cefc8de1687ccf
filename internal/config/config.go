// Package config defines the engine host's configuration surface and
// loads it from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so config values can be written as
// human-readable strings ("5s", "1m30s") in YAML. yaml.v3 has no
// built-in support for unmarshaling a string into the int64-kinded
// time.Duration, so this type supplies it via UnmarshalYAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

type Config struct {
	Net struct {
		Listen    string `yaml:"listen"`
		Publish   string `yaml:"publish"`
		Watermark int    `yaml:"watermark"`
	} `yaml:"net"`

	Core struct {
		Protocol     int `yaml:"protocol"`
		HistoryDepth int `yaml:"history_depth"`
	} `yaml:"core"`

	Manifest struct {
		Name  string `yaml:"name"`
		Slave string `yaml:"slave"`
	} `yaml:"manifest"`

	Profile struct {
		StartupTimeout   Duration `yaml:"startup_timeout"`
		HeartbeatTimeout Duration `yaml:"heartbeat_timeout"`
		PoolCeiling      int      `yaml:"pool_ceiling"`
		Isolate          struct {
			Type string                 `yaml:"type"`
			Args map[string]interface{} `yaml:"args"`
		} `yaml:"isolate"`
		Limits struct {
			MemoryMB  int `yaml:"memory_mb"`
			CPUShares int `yaml:"cpu_shares"`
		} `yaml:"limits"`
	} `yaml:"profile"`

	Persistence struct {
		Path string `yaml:"path"`
	} `yaml:"persistence"`

	Signing struct {
		Secret   string   `yaml:"secret"`
		TokenTTL Duration `yaml:"token_ttl"`
	} `yaml:"signing"`

	Relinker struct {
		Endpoints map[string][]string `yaml:"endpoints"`
		Interval  Duration            `yaml:"interval"`
	} `yaml:"relinker"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return &cfg, nil
}
