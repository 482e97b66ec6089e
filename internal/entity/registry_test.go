package entity

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/worldserver/internal/apperr"
)

func TestAddPlayerDefaults(t *testing.T) {
	r := NewRegistry(0, nil)
	p := r.AddPlayer("user-1", "user@example.com")

	assert.Equal(t, KindPlayer, p.Kind)
	assert.Equal(t, 100, p.Health)
	assert.True(t, p.IsAlive)
	assert.Equal(t, 20, p.Inventory.Capacity)
	assert.Empty(t, p.Inventory.Slots)
}

func TestAddBossCustomHealth(t *testing.T) {
	r := NewRegistry(0, nil)
	b := r.AddBoss("boss-1", 500)

	assert.Equal(t, 500, b.Health)
	assert.Equal(t, 500, b.MaxHealth)
	assert.True(t, b.IsAlive)
}

func TestRemoveReturnsEntityIfPresent(t *testing.T) {
	r := NewRegistry(0, nil)
	r.AddNPC("npc-1")

	got, ok := r.Remove("npc-1")
	require.True(t, ok)
	assert.Equal(t, "npc-1", got.ID)

	_, ok = r.Remove("npc-1")
	assert.False(t, ok)
}

func TestUpdatePositionBumpsClocks(t *testing.T) {
	r := NewRegistry(0, nil)
	r.AddPlayer("user-1", "")
	before, _ := r.GetEntity("user-1")

	time.Sleep(time.Millisecond)
	rot := Vec3{X: 0, Y: 90, Z: 0}
	updated, ok := r.UpdatePosition("user-1", Vec3{X: 1, Y: 2, Z: 3}, &rot)
	require.True(t, ok)

	assert.Equal(t, Vec3{X: 1, Y: 2, Z: 3}, updated.Position)
	assert.Equal(t, rot, updated.Rotation)
	assert.True(t, updated.LastSeen.After(before.LastSeen))
}

func TestUpdatePositionNilRotationLeavesRotationUnchanged(t *testing.T) {
	r := NewRegistry(0, nil)
	r.AddPlayer("user-1", "")
	r.UpdatePosition("user-1", Vec3{}, &Vec3{X: 5})

	updated, _ := r.UpdatePosition("user-1", Vec3{X: 1}, nil)
	assert.Equal(t, Vec3{X: 5}, updated.Rotation)
}

func TestUpdateHealthClampsAndReportsTransition(t *testing.T) {
	r := NewRegistry(0, nil)
	r.AddPlayer("user-1", "")

	e, transition, ok := r.UpdateHealth("user-1", -10)
	require.True(t, ok)
	assert.Equal(t, 0, e.Health)
	assert.False(t, e.IsAlive)
	assert.Equal(t, AliveToDead, transition)

	e, transition, ok = r.UpdateHealth("user-1", 200)
	require.True(t, ok)
	assert.Equal(t, 100, e.Health)
	assert.True(t, e.IsAlive)
	assert.Equal(t, DeadToAlive, transition)

	_, transition, _ = r.UpdateHealth("user-1", 50)
	assert.Equal(t, NoTransition, transition)
}

func TestAddItemStacksOnMatchingSlot(t *testing.T) {
	r := NewRegistry(0, nil)
	r.AddPlayer("user-1", "")

	_, err := r.AddItem("user-1", "wood", 3)
	require.NoError(t, err)
	e, err := r.AddItem("user-1", "wood", 2)
	require.NoError(t, err)

	require.Len(t, e.Inventory.Slots, 1)
	assert.Equal(t, 5, e.Inventory.Slots[0].Quantity)
}

func TestAddItemFailsWhenInventoryFull(t *testing.T) {
	r := NewRegistry(0, nil)
	r.AddPlayer("user-1", "")

	for i := 0; i < defaultInventorySlots; i++ {
		_, err := r.AddItem("user-1", fmt.Sprintf("item-%d", i), 1)
		require.NoError(t, err)
	}

	_, err := r.AddItem("user-1", "overflow", 1)
	assert.ErrorIs(t, err, apperr.ErrInventoryFull)
}

func TestAddItemCapacityZeroIsUnbounded(t *testing.T) {
	r := NewRegistry(0, nil)
	r.AddPlayer("user-1", "")

	s := r.shardFor("user-1")
	s.entries["user-1"].Inventory.Capacity = 0

	for i := 0; i < defaultInventorySlots+5; i++ {
		_, err := r.AddItem("user-1", fmt.Sprintf("item-%d", i), 1)
		require.NoError(t, err)
	}

	e, _ := r.GetEntity("user-1")
	assert.Len(t, e.Inventory.Slots, defaultInventorySlots+5)
}

func TestRemoveItemFailsWhenInsufficient(t *testing.T) {
	r := NewRegistry(0, nil)
	r.AddPlayer("user-1", "")
	r.AddItem("user-1", "wood", 2)

	_, err := r.RemoveItem("user-1", "wood", 5)
	assert.Error(t, err)
}

func TestRemoveItemDropsEmptiedSlot(t *testing.T) {
	r := NewRegistry(0, nil)
	r.AddPlayer("user-1", "")
	r.AddItem("user-1", "wood", 5)

	e, err := r.RemoveItem("user-1", "wood", 5)
	require.NoError(t, err)
	assert.Empty(t, e.Inventory.Slots)
}

func TestCleanupStaleRemovesOldEntities(t *testing.T) {
	r := NewRegistry(10*time.Millisecond, nil)
	r.AddPlayer("user-1", "")
	r.AddNPC("npc-1")

	time.Sleep(20 * time.Millisecond)
	removed := r.CleanupStale()

	assert.ElementsMatch(t, []string{"user-1", "npc-1"}, removed)
	assert.Equal(t, 0, r.Count())
}

func TestCleanupStaleKeepsFreshEntities(t *testing.T) {
	r := NewRegistry(time.Hour, nil)
	r.AddPlayer("user-1", "")

	removed := r.CleanupStale()
	assert.Empty(t, removed)
	assert.Equal(t, 1, r.Count())
}

func TestConcurrentUpdatesOnDisjointEntitiesDoNotRace(t *testing.T) {
	r := NewRegistry(0, nil)
	for i := 0; i < 100; i++ {
		r.AddPlayer(fmt.Sprintf("user-%d", i), "")
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("user-%d", i)
			r.UpdatePosition(id, Vec3{X: float64(i)}, nil)
			r.UpdateHealth(id, 50)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, r.Count())
}
