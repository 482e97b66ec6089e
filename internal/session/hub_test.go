package session

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/worldserver/internal/entity"
	"github.com/R3E-Network/worldserver/internal/environment"
	"github.com/R3E-Network/worldserver/internal/logging"
)

func testHub() *Hub {
	return NewHub(
		nil,
		entity.NewRegistry(0, nil),
		environment.NewRegistry(50, 3, 10, nil),
		Config{MaxFrameBytes: 1 << 20, RateLimitPerSec: 50, RateLimitBurst: 100},
		logging.New("test", "error", "text"),
	)
}

func TestBearerTokenHeaderTakesPrecedence(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws?token=query-token", nil)
	req.Header.Set("Authorization", "Bearer header-token")

	assert.Equal(t, "header-token", bearerToken(req))
}

func TestBearerTokenFallsBackToQuery(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws?token=query-token", nil)
	assert.Equal(t, "query-token", bearerToken(req))
}

func TestBearerTokenMissingReturnsEmpty(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws", nil)
	assert.Empty(t, bearerToken(req))
}

func TestBroadcastExceptSkipsSender(t *testing.T) {
	h := testHub()
	a := &Session{hub: h, entityID: "a", send: make(chan []byte, 4)}
	b := &Session{hub: h, entityID: "b", send: make(chan []byte, 4)}
	h.register(a)
	h.register(b)

	h.broadcastExcept("a", pongMessage{Type: "pong"})

	assert.Len(t, a.send, 0)
	require.Len(t, b.send, 1)
}

func TestBroadcastReachesAllSessions(t *testing.T) {
	h := testHub()
	a := &Session{hub: h, entityID: "a", send: make(chan []byte, 4)}
	b := &Session{hub: h, entityID: "b", send: make(chan []byte, 4)}
	h.register(a)
	h.register(b)

	h.broadcast(pongMessage{Type: "pong"})

	assert.Len(t, a.send, 1)
	assert.Len(t, b.send, 1)
}

func TestUnregisterDropsPlayerInterest(t *testing.T) {
	h := testHub()
	s := &Session{hub: h, entityID: "player-1", send: make(chan []byte, 4)}
	h.register(s)
	h.env.InitialInterest("player-1", environment.Vec3{})

	h.unregister(s)

	assert.Empty(t, h.env.PlayersSeeing(environment.ChunkCoord{}))
	h.mu.RLock()
	_, stillPresent := h.sessions["player-1"]
	h.mu.RUnlock()
	assert.False(t, stillPresent)
}
