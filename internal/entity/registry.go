package entity

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/R3E-Network/worldserver/internal/apperr"
	"github.com/R3E-Network/worldserver/internal/logging"
	"github.com/R3E-Network/worldserver/internal/metrics"
)

// shardCount mirrors the Token Cache's sharding scheme: independent
// locks so a reader on one entity is never blocked by a writer on
// another (see the core's concurrency model).
const shardCount = 32

// HealthTransition reports an is_alive flip caused by update_health.
type HealthTransition int

const (
	// NoTransition means is_alive did not change.
	NoTransition HealthTransition = iota
	// AliveToDead means the entity just died.
	AliveToDead
	// DeadToAlive means the entity was just revived.
	DeadToAlive
)

// Registry is the authoritative entity_id -> GameEntity map.
type Registry struct {
	shards       [shardCount]*shard
	staleTimeout time.Duration
	log          *logging.Logger
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*GameEntity
}

func newShard() *shard {
	return &shard{entries: make(map[string]*GameEntity)}
}

// NewRegistry builds an empty entity registry. A staleTimeout <= 0 uses
// DefaultStaleTimeout.
func NewRegistry(staleTimeout time.Duration, log *logging.Logger) *Registry {
	if staleTimeout <= 0 {
		staleTimeout = DefaultStaleTimeout
	}
	r := &Registry{staleTimeout: staleTimeout, log: log}
	for i := range r.shards {
		r.shards[i] = newShard()
	}
	return r
}

func (r *Registry) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return r.shards[h.Sum32()%shardCount]
}

// AddPlayer inserts a Player with default position/rotation, full
// health, and an empty 20-slot inventory, keyed by user_id.
func (r *Registry) AddPlayer(userID, email string) *GameEntity {
	e := newEntity(userID, KindPlayer, defaultHealth)
	e.UserID = userID
	e.Email = email
	r.insert(e)
	return e.Clone()
}

// AddNPC inserts an NPC with default health, keyed by id.
func (r *Registry) AddNPC(id string) *GameEntity {
	return r.addSimple(id, KindNPC)
}

// AddEnemy inserts an enemy with default health, keyed by id.
func (r *Registry) AddEnemy(id string) *GameEntity {
	return r.addSimple(id, KindEnemy)
}

func (r *Registry) addSimple(id string, kind Kind) *GameEntity {
	e := newEntity(id, kind, defaultHealth)
	r.insert(e)
	return e.Clone()
}

// AddBoss inserts a boss with a custom initial health.
func (r *Registry) AddBoss(id string, health int) *GameEntity {
	e := newEntity(id, KindBoss, health)
	r.insert(e)
	return e.Clone()
}

func (r *Registry) insert(e *GameEntity) {
	s := r.shardFor(e.ID)
	s.mu.Lock()
	s.entries[e.ID] = e
	s.mu.Unlock()
	metrics.SetEntityCount(r.Count())
}

// Remove deletes and returns the entity if present.
func (r *Registry) Remove(id string) (*GameEntity, bool) {
	s := r.shardFor(id)
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	metrics.SetEntityCount(r.Count())
	return e.Clone(), true
}

// UpdatePosition updates position, rotation if provided, and bumps
// last_update/last_seen. rot may be nil to leave rotation unchanged.
func (r *Registry) UpdatePosition(id string, pos Vec3, rot *Vec3) (*GameEntity, bool) {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	e.Position = pos
	if rot != nil {
		e.Rotation = *rot
	}
	now := time.Now()
	e.LastUpdate = now
	e.LastSeen = now
	return e.Clone(), true
}

// UpdateHealth clamps h to [0, 100], sets is_alive accordingly, and
// reports any alive<->dead transition.
func (r *Registry) UpdateHealth(id string, h int) (*GameEntity, HealthTransition, bool) {
	if h < 0 {
		h = 0
	} else if h > 100 {
		h = 100
	}

	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, NoTransition, false
	}

	wasAlive := e.IsAlive
	e.Health = h
	e.IsAlive = h > 0

	transition := NoTransition
	switch {
	case wasAlive && !e.IsAlive:
		transition = AliveToDead
	case !wasAlive && e.IsAlive:
		transition = DeadToAlive
	}
	return e.Clone(), transition, true
}

// AddItem stacks qty into an existing slot iff item_id matches and the
// slot carries no metadata; otherwise appends a new slot. Fails with
// apperr.ErrInventoryFull if the inventory is full and a new slot is
// required. Capacity == 0 means unbounded.
func (r *Registry) AddItem(id, itemID string, qty int) (*GameEntity, error) {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, apperr.ErrHarvestUnknownEntity
	}

	inv := &e.Inventory
	for i := range inv.Slots {
		slot := &inv.Slots[i]
		if slot.ItemID == itemID && len(slot.Metadata) == 0 {
			slot.Quantity += qty
			return e.Clone(), nil
		}
	}

	if inv.Capacity != 0 && len(inv.Slots) >= inv.Capacity {
		return nil, apperr.ErrInventoryFull
	}
	inv.Slots = append(inv.Slots, InventoryItem{ItemID: itemID, Quantity: qty})
	return e.Clone(), nil
}

// RemoveItem removes qty of item_id, failing with
// apperr.ErrInsufficientItems if the held quantity is lower. Slots
// emptied by the removal are dropped.
func (r *Registry) RemoveItem(id, itemID string, qty int) (*GameEntity, error) {
	s := r.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, apperr.ErrHarvestUnknownEntity
	}

	inv := &e.Inventory
	remaining := 0
	for _, slot := range inv.Slots {
		if slot.ItemID == itemID {
			remaining += slot.Quantity
		}
	}
	if remaining < qty {
		return nil, apperr.ErrInsufficientItems
	}

	toRemove := qty
	kept := inv.Slots[:0]
	for _, slot := range inv.Slots {
		if slot.ItemID != itemID || toRemove == 0 {
			kept = append(kept, slot)
			continue
		}
		if slot.Quantity <= toRemove {
			toRemove -= slot.Quantity
			continue
		}
		slot.Quantity -= toRemove
		toRemove = 0
		kept = append(kept, slot)
	}
	inv.Slots = kept
	return e.Clone(), nil
}

// GetInventory returns a snapshot of the entity's inventory.
func (r *Registry) GetInventory(id string) (*Inventory, bool) {
	s := r.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	clone := e.Clone()
	return &clone.Inventory, true
}

// GetEntity returns a snapshot of the entity.
func (r *Registry) GetEntity(id string) (*GameEntity, bool) {
	s := r.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// CleanupStale removes entities whose last_seen exceeds staleTimeout
// and returns the removed ids. Intended to run on a periodic schedule
// (see the worldserver cron wiring).
func (r *Registry) CleanupStale() []string {
	now := time.Now()
	var removed []string
	for _, s := range r.shards {
		s.mu.Lock()
		for id, e := range s.entries {
			if now.Sub(e.LastSeen) >= r.staleTimeout {
				delete(s.entries, id)
				removed = append(removed, id)
			}
		}
		s.mu.Unlock()
	}
	if len(removed) > 0 {
		metrics.SetEntityCount(r.Count())
		if r.log != nil {
			r.log.WithField("count", len(removed)).Info("entity registry removed stale entities")
		}
	}
	return removed
}

// Count returns the number of live entities across all shards.
func (r *Registry) Count() int {
	total := 0
	for _, s := range r.shards {
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}
