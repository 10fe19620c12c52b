package rng

import "sync"

// Sequence is a scripted Source that replays the given floats in order and
// wraps around at the end. IntN maps the next float onto [0, n).
type Sequence struct {
	mu     sync.Mutex
	values []float64
	pos    int
}

// NewSequence returns a Sequence over values. Each value must be in [0, 1).
func NewSequence(values ...float64) *Sequence {
	if len(values) == 0 {
		values = []float64{0}
	}

	return &Sequence{values: values}
}

func (s *Sequence) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.values[s.pos%len(s.values)]
	s.pos++

	return v
}

func (s *Sequence) IntN(n int) int {
	if n <= 0 {
		panic("rng: invalid argument to IntN")
	}

	i := int(s.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}

	return i
}
