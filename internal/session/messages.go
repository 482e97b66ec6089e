// Package session implements the per-connection authenticated session
// loop: websocket transport, the client/server message protocol, and
// the state machine binding a verified token to in-world entities.
package session

import "github.com/R3E-Network/worldserver/internal/environment"

// State is the session's handshake lifecycle state.
type State int

const (
	StateHandshake State = iota
	StateOpen
	StateClosed
	StateRejected
)

// clientMessage is the tag-field envelope every inbound frame carries.
type clientMessage struct {
	Type string `json:"type"`
}

// joinMessage registers the connection's player entity.
type joinMessage struct {
	Position *positionPayload `json:"position,omitempty"`
}

// updatePositionMessage mutates the connection's entity position.
type updatePositionMessage struct {
	Position positionPayload  `json:"position"`
	Rotation *positionPayload `json:"rotation,omitempty"`
}

// updateHealthMessage mutates the connection's entity health.
type updateHealthMessage struct {
	Health int `json:"health"`
}

// addItemMessage/removeItemMessage drive inventory operations.
type addItemMessage struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type removeItemMessage struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// harvestObjectMessage claims a harvest on the connection's behalf.
type harvestObjectMessage struct {
	ObjectID string          `json:"object_id"`
	Position positionPayload `json:"position"`
}

type positionPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (p positionPayload) toVec3() environment.Vec3 {
	return environment.Vec3{X: p.X, Y: p.Y, Z: p.Z}
}

func fromVec3(v environment.Vec3) positionPayload {
	return positionPayload{X: v.X, Y: v.Y, Z: v.Z}
}

// --- server -> client message envelopes (camelCase field names, except
// connectedMessage's user_id) ---

type connectedMessage struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type joinedMessage struct {
	Type     string          `json:"type"`
	EntityID string          `json:"entityId"`
	Position positionPayload `json:"position"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type pongMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type playerJoinedMessage struct {
	Type     string          `json:"type"`
	EntityID string          `json:"entityId"`
	Position positionPayload `json:"position"`
}

type playerLeftMessage struct {
	Type     string `json:"type"`
	EntityID string `json:"entityId"`
}

type playerMovedMessage struct {
	Type     string           `json:"type"`
	EntityID string           `json:"entityId"`
	Position positionPayload  `json:"position"`
	Rotation *positionPayload `json:"rotation,omitempty"`
}

type playerHealthChangedMessage struct {
	Type     string `json:"type"`
	EntityID string `json:"entityId"`
	Health   int    `json:"health"`
	IsAlive  bool   `json:"isAlive"`
}

type inventoryUpdatedMessage struct {
	Type      string          `json:"type"`
	Inventory inventoryFrozen `json:"inventory"`
}

type itemAddedMessage struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	ItemID  string `json:"itemId,omitempty"`
}

type itemRemovedMessage struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	ItemID  string `json:"itemId,omitempty"`
}

type inventoryFrozen struct {
	Slots []inventorySlotFrozen `json:"slots"`
}

type inventorySlotFrozen struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

// environmentObjectsSpawnMessage/DespawnMessage/harvestObjectResponse/
// environmentObjectRespawnMessage are the environment channel's server
// messages.

type environmentObjectDataFrozen struct {
	ObjectID       string          `json:"objectId"`
	AssetName      string          `json:"assetName"`
	Type           string          `json:"type"`
	Position       positionPayload `json:"position"`
	Rotation       positionPayload `json:"rotation"`
	Scale          float64         `json:"scale"`
	ResourceType   string          `json:"resourceType"`
	ResourceAmount int             `json:"resourceAmount"`
	HarvestTime    float64         `json:"harvestTime"`
}

func freezeObjectData(o environment.ObjectData) environmentObjectDataFrozen {
	return environmentObjectDataFrozen{
		ObjectID:       o.ObjectID,
		AssetName:      o.AssetName,
		Type:           string(o.Type),
		Position:       fromVec3(o.Position),
		Rotation:       fromVec3(o.Rotation),
		Scale:          o.Scale,
		ResourceType:   o.ResourceType,
		ResourceAmount: o.ResourceAmount,
		HarvestTime:    o.HarvestTime,
	}
}

type environmentObjectsSpawnMessage struct {
	Type    string                        `json:"type"`
	Objects []environmentObjectDataFrozen `json:"objects"`
}

type environmentObjectsDespawnMessage struct {
	Type      string   `json:"type"`
	ObjectIDs []string `json:"objectIds"`
}

type harvestObjectResponse struct {
	Type           string `json:"type"`
	Success        bool   `json:"success"`
	ObjectID       string `json:"objectId"`
	ResourceType   string `json:"resourceType,omitempty"`
	ResourceAmount int    `json:"resourceAmount,omitempty"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
}

type environmentObjectRespawnMessage struct {
	Type   string                      `json:"type"`
	Object environmentObjectDataFrozen `json:"object"`
}

type gameStateMessage struct {
	Type    string              `json:"type"`
	Players []playerSnapshotMsg `json:"players"`
}

type playerSnapshotMsg struct {
	EntityID string          `json:"entityId"`
	Position positionPayload `json:"position"`
	Health   int             `json:"health"`
}
