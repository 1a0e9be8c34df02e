package mesh

import (
	"iter"

	"github.com/aethiopicuschan/lanmesh/wire"
)

// EventKind is the kind of a high-level network notification.
type EventKind uint8

const (
	EventPeerConnected EventKind = iota + 1
	EventPeerDisconnected
	EventPeerMoved
)

func (k EventKind) String() string {
	switch k {
	case EventPeerConnected:
		return "peer_connected"
	case EventPeerDisconnected:
		return "peer_disconnected"
	case EventPeerMoved:
		return "peer_moved"
	default:
		return "unknown"
	}
}

// Event is produced by Endpoint.Process and consumed by game logic.
// Position is only meaningful for EventPeerMoved.
type Event struct {
	Kind     EventKind
	Peer     wire.PeerID
	Position wire.Position
}

// Events is the per-tick event queue.
//
// Process resets it before filling it, so consumers only ever see the events
// of the latest tick, in the order they were produced.
type Events struct {
	items []Event
}

// Reset empties the queue while keeping its storage.
func (q *Events) Reset() {
	q.items = q.items[:0]
}

// Push appends ev. The endpoint is the usual producer.
func (q *Events) Push(ev Event) {
	q.items = append(q.items, ev)
}

// Len reports how many events the current tick produced.
func (q *Events) Len() int {
	return len(q.items)
}

// All yields the events of the current tick in FIFO order.
func (q *Events) All() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for _, ev := range q.items {
			if !yield(ev) {
				return
			}
		}
	}
}

// Slice returns a copy of the queued events.
func (q *Events) Slice() []Event {
	out := make([]Event, len(q.items))
	copy(out, q.items)
	return out
}
