package session

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/R3E-Network/worldserver/internal/apperr"
	"github.com/R3E-Network/worldserver/internal/auth"
	"github.com/R3E-Network/worldserver/internal/entity"
	"github.com/R3E-Network/worldserver/internal/environment"
	"github.com/R3E-Network/worldserver/internal/logging"
	"github.com/R3E-Network/worldserver/internal/metrics"
)

// Config bounds a session's transport and anti-abuse behavior.
type Config struct {
	MaxFrameBytes   int64
	RateLimitPerSec int
	RateLimitBurst  int
}

// Hub owns every live session, the shared registries they mutate, and
// the token cache guarding the handshake.
type Hub struct {
	cache    *auth.TokenCache
	entities *entity.Registry
	env      *environment.Registry
	cfg      Config
	log      *logging.Logger

	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

// NewHub wires a session hub over the given registries.
func NewHub(cache *auth.TokenCache, entities *entity.Registry, env *environment.Registry, cfg Config, log *logging.Logger) *Hub {
	return &Hub{
		cache:    cache,
		entities: entities,
		env:      env,
		cfg:      cfg,
		log:      log,
		sessions: make(map[string]*Session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The edge is trusted to have already filtered origins; see
			// the core's out-of-scope CORS/middleware boundary.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS is the /ws HTTP handler: it extracts the bearer token, runs
// the handshake against the token cache, upgrades on success, and
// blocks until the session closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}

	principal, err := h.cache.Verify(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrAuthTransport):
			http.Error(w, "identity service unavailable", http.StatusInternalServerError)
		default:
			http.Error(w, "invalid token", http.StatusUnauthorized)
		}
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithField("error", err.Error()).Warn("websocket upgrade failed")
		return
	}

	s := newSession(h, conn, principal)
	h.register(s)
	s.sendJSON(connectedMessage{Type: "connected", UserID: principal.UserID, Role: principal.Role})

	s.run(r.Context())
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); len(auth) > 7 && auth[:7] == "Bearer " {
		return auth[7:]
	}
	return r.URL.Query().Get("token")
}

func (h *Hub) register(s *Session) {
	h.mu.Lock()
	h.sessions[s.entityID] = s
	count := len(h.sessions)
	h.mu.Unlock()
	metrics.SetActiveSessions(count)
}

func (h *Hub) unregister(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s.entityID)
	count := len(h.sessions)
	h.mu.Unlock()
	h.env.RemovePlayer(s.entityID)
	metrics.SetActiveSessions(count)
}

func (h *Hub) broadcast(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for _, s := range h.sessions {
		select {
		case s.send <- b:
		default:
		}
	}
}

func (h *Hub) broadcastExcept(exceptEntityID string, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for id, s := range h.sessions {
		if id == exceptEntityID {
			continue
		}
		select {
		case s.send <- b:
		default:
		}
	}
}

func (h *Hub) playerSnapshots() []playerSnapshotMsg {
	h.mu.RLock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	out := make([]playerSnapshotMsg, 0, len(ids))
	for _, id := range ids {
		e, ok := h.entities.GetEntity(id)
		if !ok {
			continue
		}
		out = append(out, playerSnapshotMsg{
			EntityID: e.ID,
			Position: fromVec3(environment.Vec3{X: e.Position.X, Y: e.Position.Y, Z: e.Position.Z}),
			Health:   e.Health,
		})
	}
	return out
}

// BroadcastRespawn fans an environment respawn event out to every
// session whose interest set contains the object's chunk, resolving
// the respawn broadcast gap via players_seeing(chunk).
func (h *Hub) BroadcastRespawn(chunk environment.ChunkCoord, obj environment.ObjectData) {
	playerIDs := h.env.PlayersSeeing(chunk)
	if len(playerIDs) == 0 {
		return
	}

	msg := environmentObjectRespawnMessage{Type: "EnvironmentObjectRespawnMessage", Object: freezeObjectData(obj)}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for _, id := range playerIDs {
		s, ok := h.sessions[id]
		if !ok {
			continue
		}
		select {
		case s.send <- b:
		default:
		}
	}
}

// Close drains every live session, e.g. on process shutdown. Once closed,
// broadcast/broadcastExcept/BroadcastRespawn become no-ops. Sessions are
// torn down through their own close(), which only ever closes s.stop
// (never s.send) under a select/default guard, so a handler goroutine
// still mid-flight in sendJSON can never panic on a closed send channel.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}
