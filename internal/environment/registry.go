package environment

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/R3E-Network/worldserver/internal/logging"
	"github.com/R3E-Network/worldserver/internal/metrics"
)

// shardCount splits the objects map across independent locks, mirroring
// the Token Cache and Entity Registry.
const shardCount = 32

const (
	// DefaultChunkSize is the world-unit width/depth of one chunk.
	DefaultChunkSize = 50.0
	// DefaultViewRadius is the chunk radius defining a player's visible
	// square (2r+1)^2.
	DefaultViewRadius = 3
	// DefaultMaxHarvestRange is the max distance (world units) between a
	// player and an object for a harvest to be accepted.
	DefaultMaxHarvestRange = 10.0
)

type objShard struct {
	mu      sync.RWMutex
	entries map[string]*EnvObject
}

// Registry is the authoritative object_id -> EnvObject map, its chunk
// secondary index, and the per-player interest set.
type Registry struct {
	objects [shardCount]*objShard

	chunkMu      sync.RWMutex
	chunkObjects map[ChunkCoord][]string

	playerMu     sync.RWMutex
	playerChunks map[string]map[ChunkCoord]struct{}

	chunkSize       float64
	viewRadius      int
	maxHarvestRange float64
	log             *logging.Logger
}

// NewRegistry builds an empty environment registry.
func NewRegistry(chunkSize float64, viewRadius int, maxHarvestRange float64, log *logging.Logger) *Registry {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if viewRadius <= 0 {
		viewRadius = DefaultViewRadius
	}
	if maxHarvestRange <= 0 {
		maxHarvestRange = DefaultMaxHarvestRange
	}
	r := &Registry{
		chunkObjects:    make(map[ChunkCoord][]string),
		playerChunks:    make(map[string]map[ChunkCoord]struct{}),
		chunkSize:       chunkSize,
		viewRadius:      viewRadius,
		maxHarvestRange: maxHarvestRange,
		log:             log,
	}
	for i := range r.objects {
		r.objects[i] = &objShard{entries: make(map[string]*EnvObject)}
	}
	return r
}

func (r *Registry) shardFor(id string) *objShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return r.objects[h.Sum32()%shardCount]
}

func (r *Registry) getObject(id string) (*EnvObject, bool) {
	s := r.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.entries[id]
	return o, ok
}

// ObjectProjection returns the network projection of a single object,
// e.g. for the respawn fan-out consuming the scheduler's notifier.
func (r *Registry) ObjectProjection(id string) (ObjectData, bool) {
	o, ok := r.getObject(id)
	if !ok {
		return ObjectData{}, false
	}
	return o.project(), true
}

// Add places object into objects, then appends its id to
// chunk_objects[chunk(object.position)]. The two writes are
// deliberately non-atomic (insert-then-index): a reader following the
// chunk index that observes a not-yet-inserted object must treat the
// miss as "skip, not fatal".
func (r *Registry) Add(o *EnvObject) {
	s := r.shardFor(o.ObjectID)
	s.mu.Lock()
	s.entries[o.ObjectID] = o
	s.mu.Unlock()

	chunk := ChunkOf(o.Position, r.chunkSize)
	r.chunkMu.Lock()
	r.chunkObjects[chunk] = append(r.chunkObjects[chunk], o.ObjectID)
	r.chunkMu.Unlock()
}

// visibleChunks computes the (2r+1)^2 square of chunks centered on
// pos's chunk at the registry's configured view radius.
func (r *Registry) visibleChunks(pos Vec3) map[ChunkCoord]struct{} {
	center := ChunkOf(pos, r.chunkSize)
	radius := int64(r.viewRadius)
	set := make(map[ChunkCoord]struct{}, (2*r.viewRadius+1)*(2*r.viewRadius+1))
	for dx := -radius; dx <= radius; dx++ {
		for dz := -radius; dz <= radius; dz++ {
			set[ChunkCoord{X: center.X + dx, Z: center.Z + dz}] = struct{}{}
		}
	}
	return set
}

// objectsInChunks collects object projections from the given chunks
// (harvested objects only when includeHarvested is set), tolerating chunk-index entries whose primary object
// has not yet been inserted (or has since been removed).
func (r *Registry) objectsInChunks(chunks map[ChunkCoord]struct{}, includeHarvested bool) []ObjectData {
	var out []ObjectData
	r.chunkMu.RLock()
	ids := make([]string, 0)
	for c := range chunks {
		ids = append(ids, r.chunkObjects[c]...)
	}
	r.chunkMu.RUnlock()

	for _, id := range ids {
		o, ok := r.getObject(id)
		if !ok {
			continue
		}
		if o.IsHarvested && !includeHarvested {
			continue
		}
		out = append(out, o.project())
	}
	return out
}

func idsInChunks(chunkObjects map[ChunkCoord][]string, chunks map[ChunkCoord]struct{}) []string {
	var out []string
	for c := range chunks {
		out = append(out, chunkObjects[c]...)
	}
	return out
}

// InitialInterest computes the player's visible chunks, records them,
// and returns the network projection of every non-harvested object in
// those chunks.
func (r *Registry) InitialInterest(playerID string, pos Vec3) *SpawnMessage {
	visible := r.visibleChunks(pos)

	r.playerMu.Lock()
	r.playerChunks[playerID] = visible
	r.playerMu.Unlock()

	return &SpawnMessage{Objects: r.objectsInChunks(visible, false)}
}

// UpdateInterest recomputes the player's visible chunks and returns the
// spawn/despawn deltas against the previously recorded set.
func (r *Registry) UpdateInterest(playerID string, pos Vec3) (*SpawnMessage, *DespawnMessage) {
	newSet := r.visibleChunks(pos)

	r.playerMu.Lock()
	oldSet := r.playerChunks[playerID]
	r.playerChunks[playerID] = newSet
	r.playerMu.Unlock()

	enter := make(map[ChunkCoord]struct{})
	exit := make(map[ChunkCoord]struct{})
	for c := range newSet {
		if _, ok := oldSet[c]; !ok {
			enter[c] = struct{}{}
		}
	}
	for c := range oldSet {
		if _, ok := newSet[c]; !ok {
			exit[c] = struct{}{}
		}
	}

	var spawn *SpawnMessage
	if len(enter) > 0 {
		spawn = &SpawnMessage{Objects: r.objectsInChunks(enter, false)}
	}

	var despawn *DespawnMessage
	if len(exit) > 0 {
		r.chunkMu.RLock()
		ids := idsInChunks(r.chunkObjects, exit)
		r.chunkMu.RUnlock()
		despawn = &DespawnMessage{ObjectIDs: ids}
	}

	return spawn, despawn
}

// Harvest performs the authoritative lookup-lock-recheck-distance-commit
// validation sequence.
func (r *Registry) Harvest(playerID string, req HarvestRequest) HarvestResponse {
	o, ok := r.getObject(req.ObjectID)
	if !ok {
		metrics.IncHarvest("not_found")
		return HarvestResponse{Success: false, ObjectID: req.ObjectID, ErrorMessage: "Object not found"}
	}

	s := r.shardFor(req.ObjectID)
	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-fetch under the write lock: the read above was advisory only.
	o, ok = s.entries[req.ObjectID]
	if !ok {
		metrics.IncHarvest("not_found")
		return HarvestResponse{Success: false, ObjectID: req.ObjectID, ErrorMessage: "Object not found"}
	}
	if o.IsHarvested {
		metrics.IncHarvest("already_harvested")
		return HarvestResponse{Success: false, ObjectID: req.ObjectID, ErrorMessage: "Already harvested"}
	}

	dist := o.Position.distance(req.PlayerPosition)
	if dist > r.maxHarvestRange {
		metrics.IncHarvest("too_far")
		if r.log != nil {
			r.log.WithField("player_id", playerID).
				WithField("object_id", req.ObjectID).
				WithField("distance", dist).
				Warn("harvest rejected: out of range")
		}
		return HarvestResponse{
			Success:      false,
			ObjectID:     req.ObjectID,
			ErrorMessage: farMessage(dist, r.maxHarvestRange),
		}
	}

	now := time.Now()
	o.IsHarvested = true
	o.HarvestedAt = &now
	metrics.IncHarvest("success")

	return HarvestResponse{
		Success:        true,
		ObjectID:       req.ObjectID,
		ResourceType:   o.ResourceType,
		ResourceAmount: o.ResourceAmount,
	}
}

// RespawnableIDs returns every harvested object whose respawn window has
// elapsed.
func (r *Registry) RespawnableIDs() []string {
	now := time.Now()
	var ids []string
	for _, s := range r.objects {
		s.mu.RLock()
		for id, o := range s.entries {
			if o.IsHarvested && o.HarvestedAt != nil && o.RespawnSeconds > 0 {
				if now.Sub(*o.HarvestedAt) >= time.Duration(o.RespawnSeconds)*time.Second {
					ids = append(ids, id)
				}
			}
		}
		s.mu.RUnlock()
	}
	return ids
}

// Respawn clears an object's harvested flags and returns its network
// projection, or nil if the object is unknown.
func (r *Registry) Respawn(id string) *RespawnMessage {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.entries[id]
	if !ok {
		return nil
	}
	o.IsHarvested = false
	o.HarvestedAt = nil
	return &RespawnMessage{Object: o.project()}
}

// PlayersSeeing scans player_chunks for every player whose interest set
// contains chunk.
func (r *Registry) PlayersSeeing(chunk ChunkCoord) []string {
	r.playerMu.RLock()
	defer r.playerMu.RUnlock()

	var players []string
	for playerID, chunks := range r.playerChunks {
		if _, ok := chunks[chunk]; ok {
			players = append(players, playerID)
		}
	}
	return players
}

// RemovePlayer drops a player's interest set, e.g. on disconnect.
func (r *Registry) RemovePlayer(id string) {
	r.playerMu.Lock()
	delete(r.playerChunks, id)
	r.playerMu.Unlock()
}

// Stats summarizes current registry occupancy.
func (r *Registry) Stats() Stats {
	var total, harvested int
	for _, s := range r.objects {
		s.mu.RLock()
		for _, o := range s.entries {
			total++
			if o.IsHarvested {
				harvested++
			}
		}
		s.mu.RUnlock()
	}

	r.playerMu.RLock()
	trackedPlayers := len(r.playerChunks)
	r.playerMu.RUnlock()

	r.chunkMu.RLock()
	loadedChunks := len(r.chunkObjects)
	r.chunkMu.RUnlock()

	return Stats{
		Total:          total,
		Active:         total - harvested,
		Harvested:      harvested,
		TrackedPlayers: trackedPlayers,
		LoadedChunks:   loadedChunks,
	}
}
