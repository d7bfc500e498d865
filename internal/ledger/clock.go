package ledger

import "sync"

// Clock supplies the current tick. Ticks never decrease across calls.
type Clock interface {
	Tick() (uint64, error)
}

// ManualClock is a Clock advanced by hand, for the embedded ledger and tests
type ManualClock struct {
	mu   sync.Mutex
	tick uint64
}

// NewManualClock creates a clock at tick
func NewManualClock(tick uint64) *ManualClock {
	return &ManualClock{tick: tick}
}

// Tick returns the current tick
func (c *ManualClock) Tick() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick, nil
}

// Advance moves the clock forward by n ticks
func (c *ManualClock) Advance(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick += n
}

// Set moves the clock to tick. Earlier ticks are ignored.
func (c *ManualClock) Set(tick uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tick > c.tick {
		c.tick = tick
	}
}
