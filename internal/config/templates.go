package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type templateConfig struct {
	Name                 string   `toml:"name" comment:"Service name reported by /health and metrics."`
	Addr                 string   `toml:"addr" comment:"HTTP listen address for /ws, /mcp, and the pull API."`
	CorsOrigins          []string `toml:"cors_origins"`
	DeliveryMode         string   `toml:"delivery_mode" comment:"ack keeps commands pending until a client receives them; optimistic marks them sent on submit."`
	MCPTransport         string   `toml:"mcp_transport" comment:"http, stdio, or none."`
	MCPPath              string   `toml:"mcp_path"`
	ClientSendBuffer     int      `toml:"client_send_buffer" comment:"Queued pushes per client before the client is dropped."`
	MaxPayloadBytes      int      `toml:"max_payload_bytes"`
	PurgeInterval        string   `toml:"purge_interval" comment:"Set an interval to 0s to disable that collector task."`
	PurgeMaxAge          string   `toml:"purge_max_age"`
	SessionSweepInterval string   `toml:"session_sweep_interval"`
	SessionTimeout       string   `toml:"session_timeout"`
	WriteTimeout         string   `toml:"write_timeout"`
	PingInterval         string   `toml:"ping_interval"`
}

// Render encodes cfg as a commented TOML document.
func Render(cfg Config) (string, error) {
	out, err := toml.Marshal(templateConfig{
		Name:                 cfg.Name,
		Addr:                 cfg.Addr,
		CorsOrigins:          cfg.CorsOrigins,
		DeliveryMode:         cfg.DeliveryMode,
		MCPTransport:         cfg.MCPTransport,
		MCPPath:              cfg.MCPPath,
		ClientSendBuffer:     cfg.ClientSendBuffer,
		MaxPayloadBytes:      cfg.MaxPayloadBytes,
		PurgeInterval:        cfg.PurgeInterval.String(),
		PurgeMaxAge:          cfg.PurgeMaxAge.String(),
		SessionSweepInterval: cfg.SessionSweepInterval.String(),
		SessionTimeout:       cfg.SessionTimeout.String(),
		WriteTimeout:         cfg.WriteTimeout.String(),
		PingInterval:         cfg.PingInterval.String(),
	})
	if err != nil {
		return "", fmt.Errorf("render config: %w", err)
	}
	return string(out), nil
}

func Template() (string, error) {
	return Render(Default())
}

func WriteTemplate(path string, overwrite bool) error {
	template, err := Template()
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}
