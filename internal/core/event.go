package core

import (
	"sync"

	"github.com/ppinggu9/trpg-server-sub001/internal/store"
)

// EventKind is a notification the gateway emits to connected clients.
type EventKind int

const (
	// EventJoinedRoom confirms a successful joinRoom to the caller.
	EventJoinedRoom EventKind = iota
	// EventLeftRoom confirms a leaveRoom to the caller.
	EventLeftRoom
	// EventJoinedMap confirms a joinMap and carries the map snapshot and token list.
	EventJoinedMap
	// EventLeftMap confirms a leaveMap to the caller.
	EventLeftMap
	// EventMapCreated notifies room members about a new map.
	EventMapCreated
	// EventMapUpdated notifies map members about a partial map update.
	EventMapUpdated
	// EventMapDeleted notifies room members about a deleted map.
	EventMapDeleted
	// EventTokenCreated notifies map members about a new token.
	EventTokenCreated
	// EventTokenUpdated notifies map members about a moved token.
	EventTokenUpdated
	// EventTokenDeleted notifies map members about a removed token.
	EventTokenDeleted
	// EventError delivers a gateway error to the originating connection only.
	EventError
)

// Event is sent to clients to describe what happened in the session.
type Event struct {
	Kind    EventKind
	RoomID  string
	MapID   string
	TokenID string
	Map     *store.Map
	Tokens  []*store.Token
	Token   *store.Token
	Payload map[string]any // partial update fields for EventMapUpdated
	Error   *GatewayError
}

// DomainEventKind tags a completed state change raised by a mutation
// collaborator.
type DomainEventKind int

const (
	DomainMapCreated DomainEventKind = iota
	DomainMapUpdated
	DomainMapDeleted
	DomainTokenCreated
	DomainTokenUpdated
	DomainTokenDeleted
)

// DomainEvent describes a completed mutation. It carries everything the
// fanout router needs to derive the target channel; the router never
// consults the presence registry.
type DomainEvent struct {
	Kind    DomainEventKind
	RoomID  string
	MapID   string
	TokenID string
	Map     *store.Map
	Token   *store.Token
	Payload map[string]any
}

// Bus is an in-process event bus for domain events. Publication is
// synchronous and at-most-once per subscriber; there is no queuing or
// replay for subscribers registered later.
type Bus struct {
	mu   sync.RWMutex
	subs []func(DomainEvent)
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for all domain events.
func (b *Bus) Subscribe(fn func(DomainEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

// Publish delivers the event to every subscriber.
func (b *Bus) Publish(ev DomainEvent) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}
