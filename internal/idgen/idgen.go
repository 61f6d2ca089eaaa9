// Package idgen wraps UUID v4 generation behind a seedable generator so
// that tests can produce deterministic, reproducible identifiers.
package idgen

import (
	"math/rand"
	"sync"

	"github.com/google/uuid"
)

// Generator produces string identifiers. Production code uses New();
// tests use NewSeeded for reproducible sequences.
type Generator interface {
	ID() string
}

type randomGen struct{}

// New returns a Generator backed by the crypto-random UUID v4 source.
func New() Generator { return randomGen{} }

func (randomGen) ID() string {
	return uuid.New().String()
}

// seeded generates UUID v4-shaped strings from a deterministic PRNG,
// for reproducible test fixtures. It is not cryptographically random
// and must never be used in production.
type seeded struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeeded returns a Generator whose output is fully determined by
// seed, producing the same sequence of ids across runs.
func NewSeeded(seed int64) Generator {
	return &seeded{rng: rand.New(rand.NewSource(seed))}
}

func (s *seeded) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b [16]byte
	s.rng.Read(b[:])
	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // variant 10
	id, err := uuid.FromBytes(b[:])
	if err != nil {
		// uuid.FromBytes only fails on wrong-length input, which cannot
		// happen here since b is a fixed [16]byte array.
		panic(err)
	}
	return id.String()
}
