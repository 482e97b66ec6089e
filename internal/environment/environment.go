// Package environment implements the Environment Registry: the
// authoritative object_id -> EnvObject map, its chunk secondary index,
// and per-player interest streaming, plus authoritative harvest.
package environment

import (
	"fmt"
	"math"
	"time"
)

// ObjectType distinguishes the four procedurally generated object
// kinds.
type ObjectType string

const (
	ObjectTree  ObjectType = "tree"
	ObjectRock  ObjectType = "rock"
	ObjectBush  ObjectType = "bush"
	ObjectGrass ObjectType = "grass"
)

// Vec3 is a position or rotation triple.
type Vec3 struct {
	X, Y, Z float64
}

func (a Vec3) distance(b Vec3) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// ChunkCoord is a chunk-grid position, derived from a world position
// via floor(world / chunk_size).
type ChunkCoord struct {
	X, Z int64
}

// ChunkOf derives the chunk containing a world position.
func ChunkOf(pos Vec3, chunkSize float64) ChunkCoord {
	return ChunkCoord{
		X: int64(math.Floor(pos.X / chunkSize)),
		Z: int64(math.Floor(pos.Z / chunkSize)),
	}
}

// EnvObject is one procedurally generated object: a tree, rock, bush,
// or grass patch.
type EnvObject struct {
	ObjectID       string
	AssetName      string
	Type           ObjectType
	Position       Vec3
	Rotation       Vec3
	Scale          float64
	ResourceType   string
	ResourceAmount int
	HarvestTime    float64
	IsHarvested    bool
	HarvestedAt    *time.Time
	RespawnSeconds int
}

// ObjectData is the network projection of an EnvObject: server-only
// fields (is_harvested, harvested_at, respawn_seconds) are stripped.
type ObjectData struct {
	ObjectID       string
	AssetName      string
	Type           ObjectType
	Position       Vec3
	Rotation       Vec3
	Scale          float64
	ResourceType   string
	ResourceAmount int
	HarvestTime    float64
}

func (o *EnvObject) project() ObjectData {
	return ObjectData{
		ObjectID:       o.ObjectID,
		AssetName:      o.AssetName,
		Type:           o.Type,
		Position:       o.Position,
		Rotation:       o.Rotation,
		Scale:          o.Scale,
		ResourceType:   o.ResourceType,
		ResourceAmount: o.ResourceAmount,
		HarvestTime:    o.HarvestTime,
	}
}

// SpawnMessage carries the network projections of objects that just
// entered a player's interest set.
type SpawnMessage struct {
	Objects []ObjectData
}

// DespawnMessage carries the ids of objects that left a player's
// interest set (including harvested ids, which the client no longer
// needs).
type DespawnMessage struct {
	ObjectIDs []string
}

// RespawnMessage is the network projection of an object that just
// became available again.
type RespawnMessage struct {
	Object ObjectData
}

// HarvestRequest is a player's claim to harvest an object.
type HarvestRequest struct {
	ObjectID       string
	PlayerPosition Vec3
}

// HarvestResponse reports the authoritative outcome of a harvest
// request.
type HarvestResponse struct {
	Success        bool
	ObjectID       string
	ResourceType   string
	ResourceAmount int
	ErrorMessage   string
}

func farMessage(dist, max float64) string {
	return fmt.Sprintf("Too far: %.1fm > %.1fm", dist, max)
}

// Stats summarizes registry occupancy.
type Stats struct {
	Total          int
	Active         int
	Harvested      int
	TrackedPlayers int
	LoadedChunks   int
}
