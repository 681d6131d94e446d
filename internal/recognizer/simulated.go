package recognizer

import (
	"context"
	"hash/fnv"
	"math/rand"
	"sync"
)

// Simulated descriptor geometry and match behavior. The descriptor is
// derived deterministically from the sample bytes, so the same image
// always lands on the same point and an enrolled sample matches itself
// at distance zero. There is no real signal here.
const (
	simulatedDim       = 128
	simulatedThreshold = 0.5
	confidenceFloor    = 0.75
	confidenceCeil     = 0.99
)

// Simulated is the stand-in recognizer. Matching is Euclidean-distance
// thresholding over pseudo-random descriptors and the reported
// confidence is drawn from a fixed range.
type Simulated struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated creates a simulated recognizer. The seed drives only
// the reported confidence values; descriptors depend on sample bytes
// alone.
func NewSimulated(seed int64) *Simulated {
	return &Simulated{rng: rand.New(rand.NewSource(seed))}
}

// Enroll derives the signature for a sample. Enrollment has no
// server-side state; the caller stores the signature in the gallery.
func (s *Simulated) Enroll(ctx context.Context, personID string, sample []byte) (Signature, error) {
	return s.Describe(ctx, sample)
}

// Describe derives a probe signature from the sample bytes.
func (s *Simulated) Describe(_ context.Context, sample []byte) (Signature, error) {
	h := fnv.New64a()
	_, _ = h.Write(sample)
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	sig := make(Signature, simulatedDim)
	for i := range sig {
		sig[i] = rng.Float32()
	}
	return sig, nil
}

// Match finds the nearest candidate under the distance threshold.
func (s *Simulated) Match(_ context.Context, probe Signature, candidates []Candidate) (Match, error) {
	bestID := ""
	bestDist := simulatedThreshold
	for _, c := range candidates {
		if d := euclidean(probe, c.Signature); d <= bestDist {
			bestID, bestDist = c.PersonID, d
		}
	}
	if bestID == "" {
		return Match{}, ErrNoMatch
	}
	return Match{PersonID: bestID, Confidence: s.confidence()}, nil
}

// MatchAll identifies every probe; unmatched probes produce a zero Match.
func (s *Simulated) MatchAll(ctx context.Context, probes []Signature, candidates []Candidate) ([]Match, error) {
	out := make([]Match, len(probes))
	for i, probe := range probes {
		m, err := s.Match(ctx, probe, candidates)
		if err != nil {
			continue
		}
		out[i] = m
	}
	return out, nil
}

func (s *Simulated) confidence() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return confidenceFloor + s.rng.Float64()*(confidenceCeil-confidenceFloor)
}
