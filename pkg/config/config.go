package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Backend   BackendConfig   `koanf:"backend"`
	Queue     QueueConfig     `koanf:"queue"`
	World     WorldConfig     `koanf:"world"`
	Audit     AuditConfig     `koanf:"audit"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type BackendConfig struct {
	Kind          string   `koanf:"kind"` // hosted, bridge
	Model         string   `koanf:"model"`
	BaseURL       string   `koanf:"base_url"`
	APIKey        string   `koanf:"api_key"`
	MaxTokens     int      `koanf:"max_tokens"`
	BridgeCommand string   `koanf:"bridge_command"`
	BridgeArgs    []string `koanf:"bridge_args"`
}

type QueueConfig struct {
	DebounceMillis int `koanf:"debounce_ms"`
	MaxDepth       int `koanf:"max_depth"`
	TimeoutMillis  int `koanf:"timeout_ms"`
}

type WorldConfig struct {
	// Size is the square grid dimension.
	Size int `koanf:"size"`
	Gold int `koanf:"gold"`
}

type AuditConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

func Load(path string) (*Config, error) {
	// Fresh instance per call; loads must not leak state into each other.
	k := koanf.New(".")

	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")

	k.Set("backend.kind", "hosted")
	k.Set("backend.model", "claude-sonnet-4-20250514")
	k.Set("backend.base_url", "https://api.anthropic.com")
	k.Set("backend.max_tokens", 1024)

	k.Set("queue.debounce_ms", 300)
	k.Set("queue.max_depth", 8)
	k.Set("queue.timeout_ms", 30000)

	k.Set("world.size", 6)
	k.Set("world.gold", 100)

	k.Set("audit.enabled", false)
	k.Set("audit.path", "verdant-audit.db")

	k.Set("telemetry.exporter", "stdout")

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (VERDANT_BACKEND_KIND -> backend.kind)
	if err := k.Load(env.Provider("VERDANT_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "VERDANT_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
