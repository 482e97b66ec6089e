package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/R3E-Network/worldserver/internal/apperr"
	"github.com/R3E-Network/worldserver/internal/auth"
	"github.com/R3E-Network/worldserver/internal/entity"
	"github.com/R3E-Network/worldserver/internal/environment"
	"github.com/R3E-Network/worldserver/internal/logging"
	"github.com/R3E-Network/worldserver/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

// Session is one authenticated connection. Its state starts at HANDSHAKE
// and moves to OPEN when run starts; a rejected handshake never creates a
// Session, and close does not update state.
type Session struct {
	hub       *Hub
	conn      *websocket.Conn
	principal *auth.Principal
	entityID  string
	limiter   *rate.Limiter
	send      chan []byte
	stop      chan struct{}
	log       *logrus.Entry
	state     State
}

func newSession(hub *Hub, conn *websocket.Conn, principal *auth.Principal) *Session {
	ctx := logging.WithUserID(context.Background(), principal.UserID)
	return &Session{
		hub:       hub,
		conn:      conn,
		principal: principal,
		entityID:  principal.UserID,
		limiter:   rate.NewLimiter(rate.Limit(hub.cfg.RateLimitPerSec), hub.cfg.RateLimitBurst),
		send:      make(chan []byte, sendBufferSize),
		stop:      make(chan struct{}),
		log:       hub.log.WithContext(ctx),
		state:     StateHandshake,
	}
}

// run drives the session until the connection closes or ctx is
// cancelled, following the teacher's ctx.Done()/stopCh select idiom.
func (s *Session) run(ctx context.Context) {
	s.state = StateOpen
	s.conn.SetReadLimit(s.hub.cfg.MaxFrameBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	s.conn.SetPingHandler(func(payload string) error {
		return s.conn.WriteControl(websocket.PongMessage, []byte(payload), time.Now().Add(writeWait))
	})

	go s.writePump(ctx)
	s.readPump(ctx)
}

func (s *Session) close() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	s.hub.unregister(s)
	_ = s.conn.Close()
}

func (s *Session) readPump(ctx context.Context) {
	defer s.close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		default:
		}

		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if strings.Contains(err.Error(), "read limit exceeded") {
				metrics.IncFramesDropped("too_large")
				s.log.WithField("error", apperr.ErrSessionFrameTooLarge.Error()).Warn("closing session: frame too large")
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.WithField("error", err.Error()).Warn("session read error")
			}
			return
		}

		if !s.limiter.Allow() {
			metrics.IncFramesDropped("rate_limit")
			s.log.Warn("session exceeded rate limit, dropping frame")
			continue
		}

		if err := s.handleFrame(raw); err != nil {
			if errors.Is(err, apperr.ErrSessionMalformed) {
				s.log.WithField("error", err.Error()).Warn("closing session on malformed frame")
				return
			}
			s.log.WithField("error", err.Error()).Warn("error handling session frame")
		}
	}
}

func (s *Session) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer s.close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) sendJSON(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.WithField("error", err.Error()).Warn("failed to marshal outbound message")
		return
	}
	select {
	case s.send <- b:
	default:
		s.log.Warn("session send buffer full, dropping outbound message")
	}
}

func (s *Session) handleFrame(raw []byte) error {
	var envelope clientMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrSessionMalformed, err)
	}

	switch envelope.Type {
	case "join":
		return s.handleJoin(raw)
	case "update_position":
		return s.handleUpdatePosition(raw)
	case "update_health":
		return s.handleUpdateHealth(raw)
	case "add_item":
		return s.handleAddItem(raw)
	case "remove_item":
		return s.handleRemoveItem(raw)
	case "get_inventory":
		return s.handleGetInventory()
	case "get_state":
		return s.handleGetState()
	case "harvest_object":
		return s.handleHarvest(raw)
	case "leave":
		s.close()
		return nil
	case "ping":
		s.sendJSON(pongMessage{Type: "pong", Timestamp: time.Now().Unix()})
		return nil
	default:
		s.sendJSON(errorMessage{Type: "error", Message: "unrecognized message type: " + envelope.Type})
		return nil
	}
}

func (s *Session) handleJoin(raw []byte) error {
	var msg joinMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrSessionMalformed, err)
	}

	e := s.hub.entities.AddPlayer(s.principal.UserID, s.principal.Email)
	pos := e.Position
	if msg.Position != nil {
		pos = msg.Position.toVec3()
		e, _ = s.hub.entities.UpdatePosition(s.entityID, pos, nil)
	}

	s.sendJSON(joinedMessage{Type: "joined", EntityID: e.ID, Position: fromVec3(pos)})

	spawn := s.hub.env.InitialInterest(s.entityID, pos)
	if len(spawn.Objects) > 0 {
		s.sendSpawn(spawn)
	}

	s.hub.broadcastExcept(s.entityID, playerJoinedMessage{
		Type:     "player_joined",
		EntityID: e.ID,
		Position: fromVec3(pos),
	})
	return nil
}

func (s *Session) handleUpdatePosition(raw []byte) error {
	var msg updatePositionMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrSessionMalformed, err)
	}

	pos := msg.Position.toVec3()
	var rot *environment.Vec3
	if msg.Rotation != nil {
		v := msg.Rotation.toVec3()
		rot = &v
	}
	var entRot *entity.Vec3
	if rot != nil {
		entRot = &entity.Vec3{X: rot.X, Y: rot.Y, Z: rot.Z}
	}

	e, ok := s.hub.entities.UpdatePosition(s.entityID, entity.Vec3{X: pos.X, Y: pos.Y, Z: pos.Z}, entRot)
	if !ok {
		return apperr.ErrHarvestUnknownEntity
	}

	spawn, despawn := s.hub.env.UpdateInterest(s.entityID, pos)
	if spawn != nil && len(spawn.Objects) > 0 {
		s.sendSpawn(spawn)
	}
	if despawn != nil && len(despawn.ObjectIDs) > 0 {
		s.sendJSON(environmentObjectsDespawnMessage{Type: "EnvironmentObjectsDespawnMessage", ObjectIDs: despawn.ObjectIDs})
	}

	s.hub.broadcastExcept(s.entityID, playerMovedMessage{
		Type:     "player_moved",
		EntityID: e.ID,
		Position: fromVec3(pos),
		Rotation: msg.Rotation,
	})
	return nil
}

func (s *Session) handleUpdateHealth(raw []byte) error {
	var msg updateHealthMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrSessionMalformed, err)
	}

	e, _, ok := s.hub.entities.UpdateHealth(s.entityID, msg.Health)
	if !ok {
		return apperr.ErrHarvestUnknownEntity
	}

	s.hub.broadcast(playerHealthChangedMessage{
		Type:     "player_health_changed",
		EntityID: e.ID,
		Health:   e.Health,
		IsAlive:  e.IsAlive,
	})
	return nil
}

func (s *Session) handleAddItem(raw []byte) error {
	var msg addItemMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrSessionMalformed, err)
	}

	e, err := s.hub.entities.AddItem(s.entityID, msg.ItemID, msg.Quantity)
	if err != nil {
		s.sendJSON(itemAddedMessage{Type: "item_added", Success: false})
		return nil
	}
	s.sendJSON(itemAddedMessage{Type: "item_added", Success: true, ItemID: msg.ItemID})
	s.sendInventory(e.Inventory)
	return nil
}

func (s *Session) handleRemoveItem(raw []byte) error {
	var msg removeItemMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrSessionMalformed, err)
	}

	e, err := s.hub.entities.RemoveItem(s.entityID, msg.ItemID, msg.Quantity)
	if err != nil {
		s.sendJSON(itemRemovedMessage{Type: "item_removed", Success: false})
		return nil
	}
	s.sendJSON(itemRemovedMessage{Type: "item_removed", Success: true, ItemID: msg.ItemID})
	s.sendInventory(e.Inventory)
	return nil
}

func (s *Session) handleGetInventory() error {
	inv, ok := s.hub.entities.GetInventory(s.entityID)
	if !ok {
		return apperr.ErrHarvestUnknownEntity
	}
	s.sendInventory(*inv)
	return nil
}

func (s *Session) handleGetState() error {
	s.sendJSON(gameStateMessage{Type: "game_state", Players: s.hub.playerSnapshots()})
	return nil
}

func (s *Session) handleHarvest(raw []byte) error {
	var msg harvestObjectMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrSessionMalformed, err)
	}

	resp := s.hub.env.Harvest(s.entityID, environment.HarvestRequest{
		ObjectID:       msg.ObjectID,
		PlayerPosition: msg.Position.toVec3(),
	})

	s.sendJSON(harvestObjectResponse{
		Type:           "HarvestObjectResponse",
		Success:        resp.Success,
		ObjectID:       resp.ObjectID,
		ResourceType:   resp.ResourceType,
		ResourceAmount: resp.ResourceAmount,
		ErrorMessage:   resp.ErrorMessage,
	})
	return nil
}

func (s *Session) sendSpawn(msg *environment.SpawnMessage) {
	frozen := make([]environmentObjectDataFrozen, len(msg.Objects))
	for i, o := range msg.Objects {
		frozen[i] = freezeObjectData(o)
	}
	s.sendJSON(environmentObjectsSpawnMessage{Type: "EnvironmentObjectsSpawnMessage", Objects: frozen})
}

func (s *Session) sendInventory(inv entity.Inventory) {
	slots := make([]inventorySlotFrozen, len(inv.Slots))
	for i, slot := range inv.Slots {
		slots[i] = inventorySlotFrozen{ItemID: slot.ItemID, Quantity: slot.Quantity}
	}
	s.sendJSON(inventoryUpdatedMessage{Type: "inventory_updated", Inventory: inventoryFrozen{Slots: slots}})
}
