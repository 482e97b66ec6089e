// Perlin noise has no third-party implementation anywhere in the
// example corpus; this field generator is the one standard-library-only
// piece of the world generator (see DESIGN.md).
package worldgen

import (
	"math"
	"math/rand"
)

// PerlinField is a 2D classic-Perlin permutation table seeded once at
// startup from world_seed plus a field-specific offset.
type PerlinField struct {
	perm [512]int
}

// NewPerlinField builds a permutation table from seed.
func NewPerlinField(seed int64) *PerlinField {
	rng := rand.New(rand.NewSource(seed))
	p := rng.Perm(256)

	f := &PerlinField{}
	for i := 0; i < 512; i++ {
		f.perm[i] = p[i%256]
	}
	return f
}

func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(t, a, b float64) float64 {
	return a + t*(b-a)
}

func grad(hash int, x, y float64) float64 {
	switch hash & 3 {
	case 0:
		return x + y
	case 1:
		return -x + y
	case 2:
		return x - y
	default:
		return -x - y
	}
}

// Noise2D samples the field at (x, y), returning a value in [-1, 1].
func (f *PerlinField) Noise2D(x, y float64) float64 {
	xi := int(math.Floor(x)) & 255
	yi := int(math.Floor(y)) & 255
	xf := x - math.Floor(x)
	yf := y - math.Floor(y)

	u := fade(xf)
	v := fade(yf)

	aa := f.perm[f.perm[xi]+yi]
	ab := f.perm[f.perm[xi]+yi+1]
	ba := f.perm[f.perm[xi+1]+yi]
	bb := f.perm[f.perm[xi+1]+yi+1]

	n := lerp(v,
		lerp(u, grad(aa, xf, yf), grad(ba, xf-1, yf)),
		lerp(u, grad(ab, xf, yf-1), grad(bb, xf-1, yf-1)),
	)
	// With grad's (+-1, +-1) gradients the interpolated value n lies in
	// [-1, 1]; halving it returns values within [-0.5, 0.5].
	return n * 0.5
}

// FBm sums octaves Perlin octaves at the given base frequency, each
// halved in amplitude and doubled in frequency, normalized back to
// [-1, 1].
func (f *PerlinField) FBm(x, y float64, octaves int, freq float64) float64 {
	var sum, amplitude, maxAmp float64
	amplitude = 1
	frequency := freq

	for i := 0; i < octaves; i++ {
		sum += f.Noise2D(x*frequency, y*frequency) * amplitude
		maxAmp += amplitude
		amplitude *= 0.5
		frequency *= 2
	}
	if maxAmp == 0 {
		return 0
	}
	return sum / maxAmp
}

// mapToUnit converts a [-1, 1] noise sample to [0, 1].
func mapToUnit(n float64) float64 {
	return (n + 1) / 2
}
