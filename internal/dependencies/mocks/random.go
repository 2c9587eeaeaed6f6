package mocks

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mcoot/mysphere/internal/dependencies/random"
)

// MockRandom replays queued values. Intn falls back to n-1, which makes
// random.Roll fail, so unqueued oracle rolls never grant bonuses.
type MockRandom struct {
	mu     sync.Mutex
	ints   []int
	hexes  []string
	hexSeq int
}

var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates an empty MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

func (r *MockRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ints) == 0 {
		if n <= 0 {
			return 0
		}
		return n - 1
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	return v
}

// Hex returns the next queued value, or a deterministic counter padded to 2n chars
func (r *MockRandom) Hex(n int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.hexes) > 0 {
		v := r.hexes[0]
		r.hexes = r.hexes[1:]
		return v
	}
	r.hexSeq++
	s := fmt.Sprintf("%x", r.hexSeq)
	if len(s) < 2*n {
		s = strings.Repeat("0", 2*n-len(s)) + s
	}
	return s
}

// QueueIntn adds values to the Intn queue
func (r *MockRandom) QueueIntn(values ...int) {
	r.mu.Lock()
	r.ints = append(r.ints, values...)
	r.mu.Unlock()
}

// QueueHex adds values to the Hex queue
func (r *MockRandom) QueueHex(values ...string) {
	r.mu.Lock()
	r.hexes = append(r.hexes, values...)
	r.mu.Unlock()
}

// Reset clears all queued values
func (r *MockRandom) Reset() {
	r.mu.Lock()
	r.ints = nil
	r.hexes = nil
	r.hexSeq = 0
	r.mu.Unlock()
}
