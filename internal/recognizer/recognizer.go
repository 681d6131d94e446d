// Package recognizer is the pluggable face recognition capability.
// The rest of the system only sees this interface, so the simulated
// stand-in can later be swapped for a real vision backend without
// touching aggregation or the API layer.
package recognizer

import (
	"context"
	"errors"
	"math"
)

// Signature is a face descriptor vector.
type Signature []float32

// Candidate pairs an enrolled person with their gallery signature.
type Candidate struct {
	PersonID  string
	Signature Signature
}

// Match is one identification result.
type Match struct {
	PersonID   string  `json:"person_id"`
	Confidence float64 `json:"confidence"`
}

// ErrNoMatch is returned when no candidate is close enough to the probe.
var ErrNoMatch = errors.New("no matching signature")

// Recognizer turns image samples into signatures and identifies probes
// against a candidate gallery.
type Recognizer interface {
	// Enroll derives and returns the signature for a person's sample.
	Enroll(ctx context.Context, personID string, sample []byte) (Signature, error)
	// Describe derives a probe signature from a sample without enrolling.
	Describe(ctx context.Context, sample []byte) (Signature, error)
	// Match identifies a single probe against the candidates.
	Match(ctx context.Context, probe Signature, candidates []Candidate) (Match, error)
	// MatchAll identifies a batch of probes in one synchronous call and
	// always returns one result per probe; unmatched probes yield a
	// zero Match rather than aborting the batch.
	MatchAll(ctx context.Context, probes []Signature, candidates []Candidate) ([]Match, error)
}

// euclidean returns the L2 distance between two signatures. Length
// mismatches count the missing tail as maximally distant.
func euclidean(a, b Signature) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	for i := n; i < len(a); i++ {
		sum += float64(a[i]) * float64(a[i])
	}
	for i := n; i < len(b); i++ {
		sum += float64(b[i]) * float64(b[i])
	}
	return math.Sqrt(sum)
}
