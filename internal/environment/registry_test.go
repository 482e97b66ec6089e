package environment

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTree(id string, pos Vec3) *EnvObject {
	return &EnvObject{
		ObjectID:       id,
		AssetName:      "Tree_Oak_01",
		Type:           ObjectTree,
		Position:       pos,
		ResourceType:   "Wood",
		ResourceAmount: 5,
		HarvestTime:    3.0,
		RespawnSeconds: 300,
	}
}

func TestHarvestAntiCheatOutOfRange(t *testing.T) {
	r := NewRegistry(50, 3, 10, nil)
	r.Add(newTree("tree_0_0_idx_0", Vec3{X: 25, Y: 0, Z: 25}))

	resp := r.Harvest("player-1", HarvestRequest{
		ObjectID:       "tree_0_0_idx_0",
		PlayerPosition: Vec3{X: 5, Y: 0, Z: 5},
	})

	assert.False(t, resp.Success)
	assert.Equal(t, "Too far: 28.3m > 10.0m", resp.ErrorMessage)
}

func TestHarvestSucceedsInRange(t *testing.T) {
	r := NewRegistry(50, 3, 10, nil)
	r.Add(newTree("tree_0_0_idx_0", Vec3{X: 25, Y: 0, Z: 25}))

	resp := r.Harvest("player-1", HarvestRequest{
		ObjectID:       "tree_0_0_idx_0",
		PlayerPosition: Vec3{X: 20, Y: 0, Z: 25},
	})

	require.True(t, resp.Success)
	assert.Equal(t, "Wood", resp.ResourceType)
	assert.Equal(t, 5, resp.ResourceAmount)
}

func TestHarvestObjectNotFound(t *testing.T) {
	r := NewRegistry(50, 3, 10, nil)
	resp := r.Harvest("player-1", HarvestRequest{ObjectID: "missing"})
	assert.False(t, resp.Success)
	assert.Equal(t, "Object not found", resp.ErrorMessage)
}

func TestHarvestAlreadyHarvested(t *testing.T) {
	r := NewRegistry(50, 3, 10, nil)
	r.Add(newTree("tree_0_0_idx_0", Vec3{X: 1, Y: 0, Z: 1}))
	r.Harvest("player-1", HarvestRequest{ObjectID: "tree_0_0_idx_0", PlayerPosition: Vec3{}})

	resp := r.Harvest("player-2", HarvestRequest{ObjectID: "tree_0_0_idx_0", PlayerPosition: Vec3{}})
	assert.False(t, resp.Success)
	assert.Equal(t, "Already harvested", resp.ErrorMessage)
}

func TestHarvestedObjectExcludedFromSpawn(t *testing.T) {
	r := NewRegistry(50, 3, 10, nil)
	r.Add(newTree("tree_0_0_idx_0", Vec3{X: 1, Y: 0, Z: 1}))
	r.Harvest("player-1", HarvestRequest{ObjectID: "tree_0_0_idx_0", PlayerPosition: Vec3{}})

	spawn := r.InitialInterest("player-2", Vec3{})
	assert.Empty(t, spawn.Objects)
}

func TestInterestStreaming7x7AtOrigin(t *testing.T) {
	r := NewRegistry(50, 3, 10, nil)
	spawn := r.InitialInterest("player-1", Vec3{X: 0, Y: 0, Z: 0})
	assert.Empty(t, spawn.Objects)

	visible := r.visibleChunks(Vec3{X: 0, Y: 0, Z: 0})
	assert.Len(t, visible, 49)
	for x := int64(-3); x <= 3; x++ {
		for z := int64(-3); z <= 3; z++ {
			_, ok := visible[ChunkCoord{X: x, Z: z}]
			assert.True(t, ok)
		}
	}
}

func TestInterestStreamingEnterExitOnMove(t *testing.T) {
	r := NewRegistry(50, 3, 10, nil)
	// One tree at the center of every chunk in x = -3..4, z = -3..3.
	for x := int64(-3); x <= 4; x++ {
		for z := int64(-3); z <= 3; z++ {
			r.Add(newTree(fmt.Sprintf("tree_%d_%d_idx_0", x, z), Vec3{X: float64(x)*50 + 25, Y: 0, Z: float64(z)*50 + 25}))
		}
	}
	r.InitialInterest("player-1", Vec3{X: 0, Y: 0, Z: 0})

	spawn, despawn := r.UpdateInterest("player-1", Vec3{X: 50, Y: 0, Z: 0})
	require.NotNil(t, despawn)
	require.NotNil(t, spawn)

	// Enter set: the 7 chunks with x = 4.
	enterCount := 0
	for _, o := range spawn.Objects {
		if ChunkOf(o.Position, 50).X == 4 {
			enterCount++
		}
	}
	assert.Equal(t, 7, enterCount)
	assert.Len(t, spawn.Objects, 7)

	// Exit set: the 7 chunks with x = -3.
	exitCount := 0
	for _, id := range despawn.ObjectIDs {
		o, ok := r.getObject(id)
		require.True(t, ok)
		if ChunkOf(o.Position, 50).X == -3 {
			exitCount++
		}
	}
	assert.Equal(t, 7, exitCount)
	assert.Len(t, despawn.ObjectIDs, 7)
}

func TestUpdateInterestSamePositionTwiceProducesNoDeltas(t *testing.T) {
	r := NewRegistry(50, 3, 10, nil)
	r.InitialInterest("player-1", Vec3{X: 0, Y: 0, Z: 0})

	spawn, despawn := r.UpdateInterest("player-1", Vec3{X: 0, Y: 0, Z: 0})
	assert.Nil(t, spawn)
	assert.Nil(t, despawn)
}

func TestRespawnCycle(t *testing.T) {
	r := NewRegistry(50, 3, 10, nil)
	r.Add(&EnvObject{
		ObjectID:       "bush_0_0_idx_0",
		Type:           ObjectBush,
		Position:       Vec3{X: 1, Y: 0, Z: 1},
		ResourceType:   "Berries",
		ResourceAmount: 2,
		RespawnSeconds: 1,
	})

	r.Harvest("player-1", HarvestRequest{ObjectID: "bush_0_0_idx_0", PlayerPosition: Vec3{}})
	assert.Empty(t, r.RespawnableIDs())

	time.Sleep(1100 * time.Millisecond)
	ids := r.RespawnableIDs()
	require.Len(t, ids, 1)
	assert.Equal(t, "bush_0_0_idx_0", ids[0])

	msg := r.Respawn(ids[0])
	require.NotNil(t, msg)

	spawn := r.InitialInterest("player-2", Vec3{X: 1, Y: 0, Z: 1})
	var found bool
	for _, o := range spawn.Objects {
		if o.ObjectID == "bush_0_0_idx_0" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRemovePlayerDropsInterestSet(t *testing.T) {
	r := NewRegistry(50, 3, 10, nil)
	r.InitialInterest("player-1", Vec3{})

	r.RemovePlayer("player-1")
	assert.Empty(t, r.PlayersSeeing(ChunkCoord{}))
}

func TestStatsCounts(t *testing.T) {
	r := NewRegistry(50, 3, 10, nil)
	r.Add(newTree("tree_0_0_idx_0", Vec3{X: 1, Y: 0, Z: 1}))
	r.Add(newTree("tree_0_0_idx_1", Vec3{X: 2, Y: 0, Z: 2}))
	r.Harvest("player-1", HarvestRequest{ObjectID: "tree_0_0_idx_0", PlayerPosition: Vec3{X: 1, Y: 0, Z: 1}})

	stats := r.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Harvested)
	assert.Equal(t, 1, stats.Active)
}
