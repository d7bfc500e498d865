package repository

import (
	"strconv"

	"github.com/medrex/care-ledger/pkg/types"
)

// Sequence is a monotonic id generator for one entity kind. Ids start at 1
// and are only ever handed out through Next.
type Sequence struct {
	state State
	key   string
}

// Current returns the last allocated id, or 0 when none was allocated
func (q *Sequence) Current() (uint64, error) {
	raw, err := q.state.GetState(q.key)
	if err != nil {
		return 0, types.NewInternalError("failed to read sequence "+q.key, err)
	}
	if raw == nil {
		return 0, nil
	}
	n, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, types.NewInternalError("corrupt sequence "+q.key, err)
	}
	return n, nil
}

// Next allocates and persists the next id
func (q *Sequence) Next() (uint64, error) {
	cur, err := q.Current()
	if err != nil {
		return 0, err
	}
	next := cur + 1
	if err := q.state.PutState(q.key, []byte(strconv.FormatUint(next, 10))); err != nil {
		return 0, types.NewInternalError("failed to write sequence "+q.key, err)
	}
	return next, nil
}
