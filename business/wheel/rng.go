package wheel

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// RandomSource supplies the draw for a spin. Isolating the draw behind this
// interface keeps outcome selection a pure function of (segments, draw).
type RandomSource interface {
	Float64() float64 // [0, 1)
}

// crypto-backed source, the production default
type cryptoRNG struct{}

func (cryptoRNG) Float64() float64 {
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err != nil {
		return rand.Float64()
	}

	u := binary.BigEndian.Uint64(buf[:]) >> 11 // 53 bits
	return float64(u) / (1 << 53)
}

func DefaultRNG() RandomSource { return cryptoRNG{} }

// Replicable source for tests and simulations.
type seededRNG struct{ r *rand.Rand }

func NewSeededRNG(seed uint64) RandomSource {
	return &seededRNG{r: rand.New(rand.NewPCG(seed, 0))}
}

func (s *seededRNG) Float64() float64 { return s.r.Float64() }

// FixedDraws replays a scripted sequence of draws, then wraps around.
type FixedDraws struct {
	draws []float64
	next  int
}

func NewFixedDraws(draws ...float64) *FixedDraws {
	return &FixedDraws{draws: draws}
}

func (f *FixedDraws) Float64() float64 {
	if len(f.draws) == 0 {
		return 0
	}
	d := f.draws[f.next%len(f.draws)]
	f.next++
	return d
}
