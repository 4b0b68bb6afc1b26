package engine

import (
	"sync"

	"github.com/AndrewGaspar/parthenon/internal/model"
)

// subscriberBufferSize is the channel buffer for each event subscriber.
// Events are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// EventBroker fans cycle snapshots of each run out to subscribers.
// It is safe for concurrent use.
//
// Finished runs are retained as closed markers so that late subscribers
// receive a closed channel instead of blocking forever.
type EventBroker struct {
	mu     sync.Mutex
	topics map[string]*eventTopic
}

type eventTopic struct {
	subs   map[int]chan model.Snapshot
	nextID int
	closed bool
}

// NewEventBroker creates a new event broker.
func NewEventBroker() *EventBroker {
	return &EventBroker{
		topics: make(map[string]*eventTopic),
	}
}

// Subscribe returns a channel that receives cycle events for the given run
// and an unsubscribe function. If the run has already finished, the returned
// channel is immediately closed.
func (b *EventBroker) Subscribe(runID string) (<-chan model.Snapshot, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[runID]
	if !ok {
		t = &eventTopic{subs: make(map[int]chan model.Snapshot)}
		b.topics[runID] = t
	}

	ch := make(chan model.Snapshot, subscriberBufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish sends a snapshot to all subscribers of the given run.
func (b *EventBroker) Publish(runID string, snap model.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[runID]
	if !ok || t.closed {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- snap:
		default:
			// Never block the driver loop on a slow subscriber.
		}
	}
}

// Close signals that the run has finished. All subscriber channels are closed
// and future Subscribe calls return a closed channel.
func (b *EventBroker) Close(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[runID]
	if !ok {
		b.topics[runID] = &eventTopic{subs: make(map[int]chan model.Snapshot), closed: true}
		return
	}

	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}
