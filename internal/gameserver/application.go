// Package gameserver wires the Token Cache, Entity Registry,
// Environment Registry, World Generator, Respawn Scheduler, and Session
// Hub into a single process lifecycle, following the constructor/
// Start/Stop pattern of the teacher's internal/app.Application.
package gameserver

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/worldserver/internal/auth"
	"github.com/R3E-Network/worldserver/internal/config"
	"github.com/R3E-Network/worldserver/internal/entity"
	"github.com/R3E-Network/worldserver/internal/environment"
	"github.com/R3E-Network/worldserver/internal/logging"
	"github.com/R3E-Network/worldserver/internal/metrics"
	"github.com/R3E-Network/worldserver/internal/session"
	"github.com/R3E-Network/worldserver/internal/worldgen"
)

// Application bundles the core's five cooperating components behind a
// single Start/Stop lifecycle.
type Application struct {
	cfg *config.Config
	log *logging.Logger

	TokenCache *auth.TokenCache
	Entities   *entity.Registry
	Env        *environment.Registry
	Generator  *worldgen.Generator
	Respawn    *worldgen.Scheduler
	Hub        *session.Hub

	router     *mux.Router
	httpServer *http.Server
	maint      *cron.Cron
}

// New constructs every registry and wires them together, but starts
// nothing; call Start to begin serving.
func New(cfg *config.Config, log *logging.Logger) *Application {
	verifier := auth.NewSupabaseVerifier(cfg.Supabase.URL)
	tokenCache := auth.NewTokenCache(auth.DefaultMaxCacheSize, verifier, log)

	entities := entity.NewRegistry(0, log)
	env := environment.NewRegistry(float64(cfg.World.ChunkSize), cfg.World.ViewRadius, float64(cfg.World.MaxHarvestRange), log)
	generator := worldgen.NewGenerator(cfg.World.Seed, float64(cfg.World.ChunkSize))
	scheduler := worldgen.NewScheduler(env, float64(cfg.World.ChunkSize), log)

	populateSpawnArea(generator, env, cfg.World.SpawnRadius, log)

	hub := session.NewHub(tokenCache, entities, env, session.Config{
		MaxFrameBytes:   cfg.Session.MaxFrameBytes,
		RateLimitPerSec: cfg.Session.RateLimitPerSec,
		RateLimitBurst:  cfg.Session.RateLimitBurst,
	}, log)

	app := &Application{
		cfg:        cfg,
		log:        log,
		TokenCache: tokenCache,
		Entities:   entities,
		Env:        env,
		Generator:  generator,
		Respawn:    scheduler,
		Hub:        hub,
		maint:      cron.New(cron.WithSeconds()),
	}
	app.router = app.newRouter()
	return app
}

// populateSpawnArea generates the starting (2*radius+1)^2 chunk area
// around the origin and adds every object to env, mirroring the
// original's generate_area(spawn_chunk, 5) + add_object startup
// sequence. Without this, the environment registry stays empty and
// interest streaming/harvest/respawn never have anything to operate on.
func populateSpawnArea(generator *worldgen.Generator, env *environment.Registry, radius int, log *logging.Logger) {
	spawnChunk := environment.ChunkCoord{X: 0, Z: 0}
	objects := generator.GenerateArea(spawnChunk, radius)
	for _, o := range objects {
		env.Add(o)
	}
	if log != nil {
		log.WithField("count", len(objects)).WithField("radius", radius).Info("generated initial environment objects")
	}
}

func (a *Application) newRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", a.Hub.ServeWS)
	r.HandleFunc("/healthz", a.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler())
	return r
}

func (a *Application) handleHealthz(w http.ResponseWriter, r *http.Request) {
	stats := a.Env.Stats()
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","entities":%d,"objects":%d}`, a.Entities.Count(), stats.Total)
}

// Start mounts periodic maintenance (token cache cleanup, entity
// staleness sweep) on robfig/cron, starts the respawn scheduler, and
// binds the HTTP listener. It does not block.
func (a *Application) Start(addr string) error {
	if _, err := a.maint.AddFunc("@every 60s", a.TokenCache.RunMaintenance); err != nil {
		return fmt.Errorf("schedule token cache maintenance: %w", err)
	}
	if _, err := a.maint.AddFunc("@every 60s", func() { a.Entities.CleanupStale() }); err != nil {
		return fmt.Errorf("schedule entity cleanup: %w", err)
	}
	a.maint.Start()

	if err := a.Respawn.Start(); err != nil {
		return fmt.Errorf("start respawn scheduler: %w", err)
	}
	go a.fanOutRespawns()

	a.httpServer = &http.Server{
		Addr:    addr,
		Handler: a.router,
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	go func() {
		if err := a.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			a.log.WithField("error", err.Error()).Error("http server exited unexpectedly")
		}
	}()

	a.log.WithField("addr", addr).Info("worldserver listening")
	return nil
}

func (a *Application) fanOutRespawns() {
	for evt := range a.Respawn.RespawnNotifier() {
		obj, ok := a.Env.ObjectProjection(evt.ObjectID)
		if !ok {
			continue
		}
		a.Hub.BroadcastRespawn(evt.Chunk, obj)
	}
}

// Stop gracefully drains maintenance tasks, the respawn scheduler, live
// sessions, and the HTTP listener within ctx's deadline.
func (a *Application) Stop(ctx context.Context) error {
	maintCtx := a.maint.Stop()
	select {
	case <-maintCtx.Done():
	case <-ctx.Done():
	}

	a.Respawn.Stop()
	a.Hub.Close()

	if a.httpServer == nil {
		return nil
	}
	return a.httpServer.Shutdown(ctx)
}
