package scheduling

import (
	"github.com/medrex/care-ledger/pkg/repository"
	"github.com/medrex/care-ledger/pkg/types"
)

// RateLimiter caps how many visits a physician accepts per fixed window of
// ticks. Counters live in the world state so every endorser agrees on them.
type RateLimiter struct {
	store  *repository.Store
	limit  uint64
	window uint64
}

// NewRateLimiter creates a limiter allowing limit visits per window ticks
func NewRateLimiter(store *repository.Store, limit, window uint64) *RateLimiter {
	return &RateLimiter{store: store, limit: limit, window: window}
}

// Allow consumes one slot of the physician's window at tick now, or fails
// FrequencyExceeded without touching the counter
func (rl *RateLimiter) Allow(physician string, now uint64) (*types.FrequencyCounter, error) {
	fc, err := rl.store.Frequency(physician)
	if err != nil {
		return nil, err
	}

	switch {
	case now-fc.WindowStart > rl.window:
		// window elapsed, start a new one at now
		fc.WindowStart = now
		fc.Count = 1
	case fc.Count < rl.limit:
		fc.Count++
	default:
		return nil, types.NewError(types.KindFrequencyExceeded,
			"physician %s reached %d visits in the window starting at %d", physician, rl.limit, fc.WindowStart).
			WithDetail("window_start", fc.WindowStart)
	}

	if err := rl.store.PutFrequency(fc); err != nil {
		return nil, err
	}
	return fc, nil
}

// Counter returns the physician's current counter
func (rl *RateLimiter) Counter(physician string) (*types.FrequencyCounter, error) {
	return rl.store.Frequency(physician)
}
