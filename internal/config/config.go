package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

const EnvPrefix = "SKETCHPAD_"

var ErrInvalidConfig = errors.New("config: invalid")

// Config is the resolved runtime configuration of one sketchpad process.
type Config struct {
	Name                 string        `env:"NAME"`
	Addr                 string        `env:"ADDR"`
	CorsOrigins          []string      `env:"CORS_ORIGINS" envSeparator:","`
	DeliveryMode         string        `env:"DELIVERY_MODE"`
	MCPTransport         string        `env:"MCP_TRANSPORT"`
	MCPPath              string        `env:"MCP_PATH"`
	ClientSendBuffer     int           `env:"CLIENT_SEND_BUFFER"`
	MaxPayloadBytes      int           `env:"MAX_PAYLOAD_BYTES"`
	PurgeInterval        time.Duration `env:"PURGE_INTERVAL"`
	PurgeMaxAge          time.Duration `env:"PURGE_MAX_AGE"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL"`
	SessionTimeout       time.Duration `env:"SESSION_TIMEOUT"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT"`
	PingInterval         time.Duration `env:"PING_INTERVAL"`
}

func Default() Config {
	return Config{
		Name:                 "canvas-sketchpad",
		Addr:                 ":7420",
		CorsOrigins:          []string{"http://localhost:3000"},
		DeliveryMode:         "ack",
		MCPTransport:         "http",
		MCPPath:              "/mcp",
		ClientSendBuffer:     256,
		MaxPayloadBytes:      256 * 1024,
		PurgeInterval:        30 * time.Second,
		PurgeMaxAge:          5 * time.Minute,
		SessionSweepInterval: 30 * time.Second,
		SessionTimeout:       30 * time.Minute,
		WriteTimeout:         10 * time.Second,
		PingInterval:         30 * time.Second,
	}
}

type fileConfig struct {
	Name                 string   `toml:"name"`
	Addr                 string   `toml:"addr"`
	CorsOrigins          []string `toml:"cors_origins"`
	DeliveryMode         string   `toml:"delivery_mode"`
	MCPTransport         string   `toml:"mcp_transport"`
	MCPPath              string   `toml:"mcp_path"`
	ClientSendBuffer     int      `toml:"client_send_buffer"`
	MaxPayloadBytes      int      `toml:"max_payload_bytes"`
	PurgeInterval        string   `toml:"purge_interval"`
	PurgeMaxAge          string   `toml:"purge_max_age"`
	SessionSweepInterval string   `toml:"session_sweep_interval"`
	SessionTimeout       string   `toml:"session_timeout"`
	WriteTimeout         string   `toml:"write_timeout"`
	PingInterval         string   `toml:"ping_interval"`
}

// Load resolves defaults, then the TOML file at path (if any), then
// SKETCHPAD_* environment overrides, and validates the result.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, nil)
}

// LoadWithEnv is Load with an explicit environment; nil reads the process env.
func LoadWithEnv(path string, environ map[string]string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		var err error
		cfg, err = applyFile(cfg, path)
		if err != nil {
			return Config{}, err
		}
	}
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("config env overrides: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg Config, path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: unknown key %q in %s", ErrInvalidConfig, undecoded[0].String(), path)
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}
	if meta.IsDefined("delivery_mode") {
		cfg.DeliveryMode = strings.TrimSpace(raw.DeliveryMode)
	}
	if meta.IsDefined("mcp_transport") {
		cfg.MCPTransport = strings.TrimSpace(raw.MCPTransport)
	}
	if meta.IsDefined("mcp_path") {
		cfg.MCPPath = strings.TrimSpace(raw.MCPPath)
	}
	if meta.IsDefined("client_send_buffer") {
		cfg.ClientSendBuffer = raw.ClientSendBuffer
	}
	if meta.IsDefined("max_payload_bytes") {
		cfg.MaxPayloadBytes = raw.MaxPayloadBytes
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"purge_interval", raw.PurgeInterval, &cfg.PurgeInterval},
		{"purge_max_age", raw.PurgeMaxAge, &cfg.PurgeMaxAge},
		{"session_sweep_interval", raw.SessionSweepInterval, &cfg.SessionSweepInterval},
		{"session_timeout", raw.SessionTimeout, &cfg.SessionTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.WriteTimeout},
		{"ping_interval", raw.PingInterval, &cfg.PingInterval},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("%w: missing addr", ErrInvalidConfig)
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return fmt.Errorf("%w: addr %q: %v", ErrInvalidConfig, cfg.Addr, err)
	}
	switch strings.ToLower(cfg.DeliveryMode) {
	case "ack", "optimistic":
	default:
		return fmt.Errorf("%w: delivery_mode must be ack or optimistic, got %q", ErrInvalidConfig, cfg.DeliveryMode)
	}
	switch strings.ToLower(cfg.MCPTransport) {
	case "http", "stdio", "none":
	default:
		return fmt.Errorf("%w: mcp_transport must be http, stdio, or none, got %q", ErrInvalidConfig, cfg.MCPTransport)
	}
	if strings.EqualFold(cfg.MCPTransport, "http") && !strings.HasPrefix(cfg.MCPPath, "/") {
		return fmt.Errorf("%w: mcp_path must start with /", ErrInvalidConfig)
	}
	if cfg.ClientSendBuffer <= 0 {
		return fmt.Errorf("%w: client_send_buffer must be positive", ErrInvalidConfig)
	}
	if cfg.MaxPayloadBytes <= 0 {
		return fmt.Errorf("%w: max_payload_bytes must be positive", ErrInvalidConfig)
	}
	for name, d := range map[string]time.Duration{
		"purge_interval":         cfg.PurgeInterval,
		"purge_max_age":          cfg.PurgeMaxAge,
		"session_sweep_interval": cfg.SessionSweepInterval,
		"session_timeout":        cfg.SessionTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, name)
		}
	}
	if cfg.WriteTimeout <= 0 || cfg.PingInterval <= 0 {
		return fmt.Errorf("%w: write_timeout and ping_interval must be positive", ErrInvalidConfig)
	}
	return nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
