package feed

import (
	"github.com/aethiopicuschan/lanmesh/mesh"
	"github.com/aethiopicuschan/lanmesh/wire"
)

// Message types written to subscribers.
const (
	TypeHello  = "hello"
	TypeEvents = "events"
)

// Message is one JSON frame of the feed.
type Message struct {
	Type     string         `json:"type"`
	Snapshot *mesh.Snapshot `json:"snapshot,omitempty"`
	Events   []EventMessage `json:"events,omitempty"`
}

// EventMessage is the wire form of a mesh.Event.
type EventMessage struct {
	Kind     string         `json:"kind"`
	Peer     wire.PeerID    `json:"peer"`
	Position *wire.Position `json:"position,omitempty"`
}

func eventMessages(events []mesh.Event) []EventMessage {
	out := make([]EventMessage, 0, len(events))
	for _, ev := range events {
		msg := EventMessage{Kind: ev.Kind.String(), Peer: ev.Peer}
		if ev.Kind == mesh.EventPeerMoved {
			pos := ev.Position
			msg.Position = &pos
		}
		out = append(out, msg)
	}
	return out
}
