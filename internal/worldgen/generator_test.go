package worldgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/worldserver/internal/environment"
)

func TestGenerateIsDeterministic(t *testing.T) {
	g := NewGenerator(12345, 50.0)
	chunk := environment.ChunkCoord{X: 0, Z: 0}

	first := g.Generate(chunk)
	second := g.Generate(chunk)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ObjectID, second[i].ObjectID)
		assert.Equal(t, first[i].Position, second[i].Position)
		assert.Equal(t, first[i].AssetName, second[i].AssetName)
		assert.Equal(t, first[i].ResourceAmount, second[i].ResourceAmount)
	}
}

func TestGenerateAcrossDifferentGeneratorInstancesMatches(t *testing.T) {
	chunk := environment.ChunkCoord{X: 7, Z: -3}

	a := NewGenerator(999, 50.0).Generate(chunk)
	b := NewGenerator(999, 50.0).Generate(chunk)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].ObjectID, b[i].ObjectID)
		assert.Equal(t, a[i].Position, b[i].Position)
	}
}

func TestGenerateNoIDCollisionAcrossChunks(t *testing.T) {
	g := NewGenerator(12345, 50.0)
	seen := make(map[string]bool)

	for x := int64(-2); x <= 2; x++ {
		for z := int64(-2); z <= 2; z++ {
			for _, o := range g.Generate(environment.ChunkCoord{X: x, Z: z}) {
				require.False(t, seen[o.ObjectID], "duplicate object id %s", o.ObjectID)
				seen[o.ObjectID] = true
			}
		}
	}
}

func TestGenerateObjectIDPattern(t *testing.T) {
	g := NewGenerator(12345, 50.0)
	objects := g.Generate(environment.ChunkCoord{X: 0, Z: 0})
	require.NotEmpty(t, objects)

	for _, o := range objects {
		assert.Regexp(t, `^(tree|rock|bush|grass)_0_0_idx_\d+$`, o.ObjectID)
	}
}

func TestGenerateRespectsChunkBounds(t *testing.T) {
	g := NewGenerator(12345, 50.0)
	chunk := environment.ChunkCoord{X: 2, Z: -1}
	objects := g.Generate(chunk)

	for _, o := range objects {
		assert.GreaterOrEqual(t, o.Position.X, 100.0)
		assert.Less(t, o.Position.X, 150.0)
		assert.GreaterOrEqual(t, o.Position.Z, -50.0)
		assert.Less(t, o.Position.Z, 0.0)
	}
}

func TestGenerateAreaIsPartitionOfPerChunkGenerate(t *testing.T) {
	g := NewGenerator(12345, 50.0)
	center := environment.ChunkCoord{X: 4, Z: -2}
	radius := 2

	area := g.GenerateArea(center, radius)

	var want []*environment.EnvObject
	for dx := -radius; dx <= radius; dx++ {
		for dz := -radius; dz <= radius; dz++ {
			chunk := environment.ChunkCoord{X: center.X + int64(dx), Z: center.Z + int64(dz)}
			want = append(want, g.Generate(chunk)...)
		}
	}

	require.Equal(t, len(want), len(area))

	seen := make(map[string]bool, len(area))
	for i, o := range area {
		require.False(t, seen[o.ObjectID], "duplicate object id %s", o.ObjectID)
		seen[o.ObjectID] = true
		assert.Equal(t, want[i].ObjectID, o.ObjectID)
		assert.Equal(t, want[i].Position, o.Position)
	}
}

func TestGenerateAreaZeroRadiusMatchesSingleChunk(t *testing.T) {
	g := NewGenerator(42, 50.0)
	center := environment.ChunkCoord{X: 0, Z: 0}

	area := g.GenerateArea(center, 0)
	single := g.Generate(center)

	require.Equal(t, len(single), len(area))
	for i := range single {
		assert.Equal(t, single[i].ObjectID, area[i].ObjectID)
	}
}

func TestMixChunkSeedHandlesNegativeCoordinatesDistinctly(t *testing.T) {
	a := mixChunkSeed(1, 5, 5)
	b := mixChunkSeed(1, -5, -5)
	c := mixChunkSeed(1, 5, -5)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, b, c)
}
