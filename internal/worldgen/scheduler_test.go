package worldgen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/worldserver/internal/environment"
)

func TestSchedulerRespawnsAndNotifies(t *testing.T) {
	env := environment.NewRegistry(50, 3, 10, nil)
	env.Add(&environment.EnvObject{
		ObjectID:       "bush_0_0_idx_0",
		Type:           environment.ObjectBush,
		Position:       environment.Vec3{X: 1, Y: 0, Z: 1},
		ResourceType:   "Berries",
		ResourceAmount: 2,
		RespawnSeconds: 1,
	})
	env.Harvest("player-1", environment.HarvestRequest{ObjectID: "bush_0_0_idx_0", PlayerPosition: environment.Vec3{}})

	sched := NewScheduler(env, 50, nil)
	require.NoError(t, sched.Start())
	defer sched.Stop()

	select {
	case evt := <-sched.RespawnNotifier():
		assert.Equal(t, "bush_0_0_idx_0", evt.ObjectID)
		assert.Equal(t, environment.ChunkCoord{X: 0, Z: 0}, evt.Chunk)
	case <-time.After(13 * time.Second):
		t.Fatal("timed out waiting for respawn notification")
	}
}
