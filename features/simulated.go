package features

import "math/rand"

// Defaults for SimulatedSource.
const (
	DefaultSimulatedSeed = 42
	DefaultSimulatedSize = 256
	simulatedScale       = 0.5
)

// SimulatedSource stands in for a learned embedding. It returns the same
// pseudo-random vector for every image and carries no information about the
// item, so it is kept out of the hashed record.
type SimulatedSource struct {
	seed int64
	size int
}

// NewSimulatedSource returns a source producing size values from seed.
func NewSimulatedSource(seed int64, size int) *SimulatedSource {
	return &SimulatedSource{seed: seed, size: size}
}

// Features returns size values drawn from N(0,1) scaled by 0.5.
func (s *SimulatedSource) Features() []float64 {
	rng := rand.New(rand.NewSource(s.seed))
	out := make([]float64, s.size)
	for i := range out {
		out[i] = rng.NormFloat64() * simulatedScale
	}
	return out
}
