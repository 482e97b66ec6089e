package worldgen

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/R3E-Network/worldserver/internal/environment"
)

// Generator produces a deterministic, repeatable sequence of
// environment objects for any (world_seed, chunk) pair.
type Generator struct {
	worldSeed   int64
	chunkSize   float64
	treeDensity *PerlinField
	treeType    *PerlinField
	rockDensity *PerlinField
	bushDensity *PerlinField
}

// NewGenerator builds a generator for worldSeed, with biome noise fields
// seeded at the exact offsets named by the component design.
func NewGenerator(worldSeed int64, chunkSize float64) *Generator {
	return &Generator{
		worldSeed:   worldSeed,
		chunkSize:   chunkSize,
		treeDensity: NewPerlinField(worldSeed + 0),
		treeType:    NewPerlinField(worldSeed + 1000),
		rockDensity: NewPerlinField(worldSeed + 2000),
		bushDensity: NewPerlinField(worldSeed + 3000),
	}
}

// Generate produces every object for one chunk. Calling it twice with
// the same (worldSeed, chunk) produces bit-identical object ids and
// positions.
func (g *Generator) Generate(chunk environment.ChunkCoord) []*environment.EnvObject {
	seed := mixChunkSeed(g.worldSeed, chunk.X, chunk.Z)
	rng := rand.New(newChunkSource(seed))

	centerX := float64(chunk.X)*g.chunkSize + g.chunkSize/2
	centerZ := float64(chunk.Z)*g.chunkSize + g.chunkSize/2

	treeDensity := mapToUnit(g.treeDensity.FBm(centerX, centerZ, 3, 0.02))
	rockDensity := mapToUnit(g.rockDensity.FBm(centerX, centerZ, 2, 0.03))
	bushDensity := mapToUnit(g.bushDensity.Noise2D(centerX*0.08, centerZ*0.08))

	treeCount := int(math.Floor(2 + treeDensity*18))
	rockCount := int(math.Floor(rockDensity * 12))
	bushCount := int(math.Floor(3 + bushDensity*22))
	grassCount := 10 + rng.Intn(21) // uniform in [10, 30]

	objects := make([]*environment.EnvObject, 0, treeCount+rockCount+bushCount+grassCount)
	objects = append(objects, g.generateTrees(chunk, rng, treeCount)...)
	objects = append(objects, g.generateRocks(chunk, rng, rockCount)...)
	objects = append(objects, g.generateBushes(chunk, rng, bushCount)...)
	objects = append(objects, g.generateGrass(chunk, rng, grassCount)...)
	return objects
}

// GenerateArea produces every object across the (2*radius+1)^2 chunks
// centered on center, by calling Generate independently per chunk. The
// result is a partition: object ids never collide across chunks (each
// id embeds its chunk coordinates), and the union is exactly what
// calling Generate on every chunk in the radius would produce.
func (g *Generator) GenerateArea(center environment.ChunkCoord, radius int) []*environment.EnvObject {
	var objects []*environment.EnvObject
	for dx := -radius; dx <= radius; dx++ {
		for dz := -radius; dz <= radius; dz++ {
			chunk := environment.ChunkCoord{X: center.X + int64(dx), Z: center.Z + int64(dz)}
			objects = append(objects, g.Generate(chunk)...)
		}
	}
	return objects
}

func (g *Generator) randomPosition(chunk environment.ChunkCoord, rng *rand.Rand) environment.Vec3 {
	baseX := float64(chunk.X) * g.chunkSize
	baseZ := float64(chunk.Z) * g.chunkSize
	return environment.Vec3{
		X: baseX + rng.Float64()*g.chunkSize,
		Y: 0,
		Z: baseZ + rng.Float64()*g.chunkSize,
	}
}

func uniformScale(rng *rand.Rand, min, max float64) float64 {
	return min + rng.Float64()*(max-min)
}

func uniformInt(rng *rand.Rand, min, max int) int {
	return min + rng.Intn(max-min+1)
}

func objectID(kind string, chunk environment.ChunkCoord, idx int) string {
	return fmt.Sprintf("%s_%d_%d_idx_%d", kind, chunk.X, chunk.Z, idx)
}

func (g *Generator) generateTrees(chunk environment.ChunkCoord, rng *rand.Rand, count int) []*environment.EnvObject {
	out := make([]*environment.EnvObject, 0, count)
	for i := 0; i < count; i++ {
		pos := g.randomPosition(chunk, rng)
		variant := g.treeType.Noise2D(pos.X*0.05, pos.Z*0.05)

		asset := "Tree_Oak_01"
		if variant > 0 {
			if uniformInt(rng, 1, 2) == 1 {
				asset = "Tree_Pine_01"
			} else {
				asset = "Tree_Pine_02"
			}
		} else if uniformInt(rng, 1, 2) == 2 {
			asset = "Tree_Oak_02"
		}

		out = append(out, &environment.EnvObject{
			ObjectID:       objectID("tree", chunk, i),
			AssetName:      asset,
			Type:           environment.ObjectTree,
			Position:       pos,
			Rotation:       environment.Vec3{Y: rng.Float64() * 360},
			Scale:          uniformScale(rng, 0.8, 1.2),
			ResourceType:   "Wood",
			ResourceAmount: uniformInt(rng, 3, 8),
			HarvestTime:    3.0,
			RespawnSeconds: 300,
		})
	}
	return out
}

func (g *Generator) generateRocks(chunk environment.ChunkCoord, rng *rand.Rand, count int) []*environment.EnvObject {
	assets := []string{"Rock_01", "Rock_02", "Rock_03"}
	out := make([]*environment.EnvObject, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, &environment.EnvObject{
			ObjectID:       objectID("rock", chunk, i),
			AssetName:      assets[rng.Intn(len(assets))],
			Type:           environment.ObjectRock,
			Position:       g.randomPosition(chunk, rng),
			Rotation:       environment.Vec3{Y: rng.Float64() * 360},
			Scale:          uniformScale(rng, 0.9, 1.3),
			ResourceType:   "Stone",
			ResourceAmount: uniformInt(rng, 2, 6),
			HarvestTime:    4.0,
			RespawnSeconds: 600,
		})
	}
	return out
}

func (g *Generator) generateBushes(chunk environment.ChunkCoord, rng *rand.Rand, count int) []*environment.EnvObject {
	assets := []string{"Bush_01", "Bush_02"}
	out := make([]*environment.EnvObject, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, &environment.EnvObject{
			ObjectID:       objectID("bush", chunk, i),
			AssetName:      assets[rng.Intn(len(assets))],
			Type:           environment.ObjectBush,
			Position:       g.randomPosition(chunk, rng),
			Rotation:       environment.Vec3{Y: rng.Float64() * 360},
			Scale:          uniformScale(rng, 0.7, 1.1),
			ResourceType:   "Berries",
			ResourceAmount: uniformInt(rng, 1, 4),
			HarvestTime:    1.5,
			RespawnSeconds: 180,
		})
	}
	return out
}

func (g *Generator) generateGrass(chunk environment.ChunkCoord, rng *rand.Rand, count int) []*environment.EnvObject {
	out := make([]*environment.EnvObject, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, &environment.EnvObject{
			ObjectID:       objectID("grass", chunk, i),
			AssetName:      "Grass_Patch_01",
			Type:           environment.ObjectGrass,
			Position:       g.randomPosition(chunk, rng),
			Rotation:       environment.Vec3{Y: rng.Float64() * 360},
			Scale:          1.0,
			ResourceType:   "Herbs",
			ResourceAmount: 1,
			HarvestTime:    0.5,
			RespawnSeconds: 120,
		})
	}
	return out
}
