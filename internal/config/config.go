// Package config loads the world server's process-wide configuration from
// environment variables, grounded on the teacher's New()-plus-defaults,
// envdecode.Decode, godotenv.Load configuration convention.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/R3E-Network/worldserver/internal/apperr"
)

// ServerConfig controls the HTTP/websocket bind address.
type ServerConfig struct {
	Host string `env:"HTTP_HOST"`
	Port int    `env:"HTTP_PORT"`
}

// Addr returns the "host:port" listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"`
	Format string `env:"LOG_FORMAT"`
}

// SupabaseConfig holds the identity-provider connection settings consumed
// by the token cache's external verifier.
type SupabaseConfig struct {
	URL            string `env:"SUPABASE_URL"`
	AnonKey        string `env:"SUPABASE_ANON_KEY"`
	ServiceRoleKey string `env:"SUPABASE_SERVICE_ROLE_KEY"`
}

// WorldConfig controls deterministic generation and interest management.
type WorldConfig struct {
	Seed            int64   `env:"WORLD_SEED"`
	ChunkSize       float32 `env:"CHUNK_SIZE"`
	ViewRadius      int     `env:"VIEW_RADIUS"`
	MaxHarvestRange float32 `env:"MAX_HARVEST_RANGE"`
	// SpawnRadius is the chunk radius generated and populated around
	// (0,0) at startup, matching the original's 11x11 starting area.
	SpawnRadius  int `env:"WORLD_SPAWN_RADIUS"`
	RespawnEvery time.Duration
}

// SessionConfig controls the per-connection session loop.
type SessionConfig struct {
	MaxFrameBytes   int64 `env:"SESSION_MAX_FRAME_BYTES"`
	RateLimitPerSec int   `env:"SESSION_RATE_LIMIT_PER_SEC"`
	RateLimitBurst  int   `env:"SESSION_RATE_LIMIT_BURST"`
}

// Config is the fully resolved process configuration. It is constructed
// once at startup and passed explicitly through constructors rather than
// consulted as a hidden global, per the core's "global mutable state"
// design note.
type Config struct {
	Server   ServerConfig
	Logging  LoggingConfig
	Supabase SupabaseConfig
	World    WorldConfig
	Session  SessionConfig
}

// New returns a configuration populated with defaults.
func New() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 4321},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		World: WorldConfig{
			Seed:            12345,
			ChunkSize:       50.0,
			ViewRadius:      3,
			MaxHarvestRange: 10.0,
			SpawnRadius:     5,
			RespawnEvery:    10 * time.Second,
		},
		Session: SessionConfig{
			MaxFrameBytes:   1 << 20,
			RateLimitPerSec: 50,
			RateLimitBurst:  100,
		},
	}
}

// Load reads configuration from the environment, optionally pre-loading a
// .env file for local development. Missing Supabase credentials are a
// fatal error per the core's error taxonomy.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()
	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}
	cfg.normalize()

	if cfg.Supabase.URL == "" {
		return nil, fmt.Errorf("%w: SUPABASE_URL is required", apperr.ErrFatal)
	}
	if cfg.Supabase.AnonKey == "" {
		return nil, fmt.Errorf("%w: SUPABASE_ANON_KEY is required", apperr.ErrFatal)
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Server.Host = strings.TrimSpace(c.Server.Host)
	if c.Server.Port == 0 {
		c.Server.Port = 4321
	}
	c.Supabase.URL = strings.TrimRight(strings.TrimSpace(c.Supabase.URL), "/")
	c.Supabase.AnonKey = strings.TrimSpace(c.Supabase.AnonKey)
	c.Supabase.ServiceRoleKey = strings.TrimSpace(c.Supabase.ServiceRoleKey)
	if c.World.ViewRadius <= 0 {
		c.World.ViewRadius = 3
	}
	if c.World.ChunkSize <= 0 {
		c.World.ChunkSize = 50.0
	}
	if c.World.MaxHarvestRange <= 0 {
		c.World.MaxHarvestRange = 10.0
	}
	if c.World.SpawnRadius <= 0 {
		c.World.SpawnRadius = 5
	}
	if c.World.RespawnEvery <= 0 {
		c.World.RespawnEvery = 10 * time.Second
	}
	if c.Session.MaxFrameBytes <= 0 {
		c.Session.MaxFrameBytes = 1 << 20
	}
	if c.Session.RateLimitPerSec <= 0 {
		c.Session.RateLimitPerSec = 50
	}
	if c.Session.RateLimitBurst <= 0 {
		c.Session.RateLimitBurst = 100
	}
}
