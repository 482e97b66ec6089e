package gameserver

import (
	"context"
	"testing"
	"time"

	"github.com/R3E-Network/worldserver/internal/config"
	"github.com/R3E-Network/worldserver/internal/environment"
	"github.com/R3E-Network/worldserver/internal/logging"
)

func testConfig() *config.Config {
	cfg := config.New()
	cfg.Supabase.URL = "https://example.supabase.co"
	cfg.Supabase.AnonKey = "anon-key"
	cfg.World.SpawnRadius = 1 // keep startup population small for tests
	return cfg
}

func TestApplicationLifecycle(t *testing.T) {
	cfg := testConfig()
	log := logging.New("worldserver-test", "error", "text")

	app := New(cfg, log)
	if err := app.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("start: %v", err)
	}

	app.Entities.AddPlayer("user-1", "user@example.com")
	if app.Entities.Count() != 1 {
		t.Fatalf("expected 1 entity, got %d", app.Entities.Count())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestNewWiresAllComponents(t *testing.T) {
	app := New(testConfig(), logging.New("worldserver-test", "error", "text"))

	if app.TokenCache == nil || app.Entities == nil || app.Env == nil || app.Generator == nil || app.Respawn == nil || app.Hub == nil {
		t.Fatal("expected all components to be wired")
	}
}

func TestNewPopulatesSpawnAreaFromGenerator(t *testing.T) {
	app := New(testConfig(), logging.New("worldserver-test", "error", "text"))

	stats := app.Env.Stats()
	if stats.Total == 0 {
		t.Fatal("expected the environment registry to be populated with generated objects at startup")
	}

	spawn := app.Env.InitialInterest("player-1", environment.Vec3{X: 0, Y: 0, Z: 0})
	if len(spawn.Objects) == 0 {
		t.Fatal("expected objects to be visible from spawn after startup population")
	}
}
