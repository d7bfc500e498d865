package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// EventSink publishes events for external observers
type EventSink interface {
	Emit(name string, payload interface{}) error
}

// StagedSink is an EventSink whose emits take effect only when the enclosing
// transaction commits, as with Fabric's SetEvent. Events go to it before the
// write set is committed.
type StagedSink interface {
	EventSink
	Staged() bool
}

func isStaged(sink EventSink) bool {
	s, ok := sink.(StagedSink)
	return ok && s.Staged()
}

// Event is an emitted event as seen by a RecordingSink
type Event struct {
	Name    string
	Payload interface{}
}

// RecordingSink keeps emitted events in memory
type RecordingSink struct {
	mu     sync.Mutex
	events []Event
}

// Emit records the event
func (s *RecordingSink) Emit(name string, payload interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Event{Name: name, Payload: payload})
	return nil
}

// Events returns a copy of the recorded events
func (s *RecordingSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

type discardSink struct{}

func (discardSink) Emit(string, interface{}) error { return nil }

var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("care-ledger/events"))

// eventID derives a stable event id so every endorser computes the same payload
func eventID(txID string, orderID uint64) string {
	return uuid.NewSHA1(eventNamespace, []byte(fmt.Sprintf("%s/%d", txID, orderID))).String()
}

type txIDKey struct{}

// WithTxID attaches the id of the enclosing ledger transaction to ctx
func WithTxID(ctx context.Context, txID string) context.Context {
	return context.WithValue(ctx, txIDKey{}, txID)
}

// TxIDFromContext returns the transaction id attached to ctx, if any
func TxIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(txIDKey{}).(string)
	return id
}
