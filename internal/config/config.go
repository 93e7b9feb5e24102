// Package config loads service configuration from a YAML file with
// HTTPSIM_-prefixed environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Simulation SimulationConfig `koanf:"simulation"`
	Script     ScriptConfig     `koanf:"script"`
	Proxy      ProxyConfig      `koanf:"proxy"`
	Storage    StorageConfig    `koanf:"storage"`
	Recording  RecordingConfig  `koanf:"recording"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type SimulationConfig struct {
	// Root is the base directory of the simulation domain: fixtures,
	// the GlobalRequest/GlobalResponse units and local units all live
	// under it.
	Root               string `koanf:"root"`
	DefaultContentType string `koanf:"default_content_type"`
}

type ScriptConfig struct {
	// Engine selects the customization engine: "goja" or "none".
	Engine string `koanf:"engine"`
}

type ProxyConfig struct {
	// Enabled turns on forwarding of unmatched requests.
	Enabled     bool            `koanf:"enabled"`
	Mappings    []MappingConfig `koanf:"mappings"`
	ReadTimeout time.Duration   `koanf:"read_timeout"`
	BufferSize  int             `koanf:"buffer_size"`
	// PropagateHeaders lists upstream response headers to pass through
	// in addition to Content-Type.
	PropagateHeaders []string `koanf:"propagate_headers"`
}

type MappingConfig struct {
	Prefix string `koanf:"prefix"`
	Target string `koanf:"target"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory, none
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type RecordingConfig struct {
	Enabled bool `koanf:"enabled"`
}

// Load reads path (skipped when the file does not exist) and applies
// environment overrides: HTTPSIM_SERVER_PORT maps to server.port.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	k.Set("server.port", 8080)
	k.Set("server.request_timeout", "30s")
	k.Set("simulation.root", "./simulation")
	k.Set("simulation.default_content_type", "text/plain")
	k.Set("script.engine", "goja")
	k.Set("proxy.read_timeout", "12s")
	k.Set("proxy.buffer_size", 100000)
	k.Set("storage.type", "memory")
	k.Set("recording.enabled", true)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider("HTTPSIM_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "HTTPSIM_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
