package worldgen

import (
	"encoding/binary"
	"math/bits"

	"golang.org/x/crypto/chacha20"
)

// mixChunkSeed combines the world seed with a chunk's coordinates into a
// single 64-bit seed, using the exact mix named by the component design.
// The rotation and multiplicative constants keep negative coordinates
// from clustering the way a naive seed+x+z*K sum would.
func mixChunkSeed(worldSeed int64, x, z int64) uint64 {
	h := uint64(worldSeed) ^ 0x9E3779B97F4A7C15
	h ^= uint64(x) * 0xBF58476D1CE4E5B9
	h = bits.RotateLeft64(h, 27)
	h ^= uint64(z) * 0x94D049BB133111EB
	return h
}

// splitmix64Next advances a splitmix64 generator, used only to expand a
// 64-bit chunk seed into the 256-bit key chacha20 requires.
func splitmix64Next(state *uint64) uint64 {
	*state += 0x9E3779B97F4A7C15
	z := *state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

func expandKey(seed uint64) []byte {
	state := seed
	key := make([]byte, chacha20.KeySize)
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint64(key[i*8:], splitmix64Next(&state))
	}
	return key
}

// chunkSource is a math/rand.Source64 backed by a chacha20 keystream,
// giving each chunk an independent, deterministic, non-banding PRNG
// (see the design notes on LCG banding on chunk grids).
type chunkSource struct {
	cipher *chacha20.Cipher
	zero   [8]byte
}

func newChunkSource(seed uint64) *chunkSource {
	key := expandKey(seed)
	nonce := make([]byte, chacha20.NonceSize)
	cipher, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		// key/nonce are always correctly sized above.
		panic(err)
	}
	return &chunkSource{cipher: cipher}
}

func (s *chunkSource) Uint64() uint64 {
	var buf [8]byte
	s.cipher.XORKeyStream(buf[:], s.zero[:])
	return binary.LittleEndian.Uint64(buf[:])
}

func (s *chunkSource) Int63() int64 {
	return int64(s.Uint64() >> 1)
}

func (s *chunkSource) Seed(seed int64) {
	*s = *newChunkSource(uint64(seed))
}
