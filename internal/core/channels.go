package core

import "sync"

// RoomChannel derives the broadcast channel name for a room.
func RoomChannel(roomID string) string { return "room:" + roomID }

// MapChannel derives the broadcast channel name for a map.
func MapChannel(mapID string) string { return "map:" + mapID }

// ChannelTable tracks which connections belong to which broadcast channel.
// It maintains a forward index (channel -> clients) for fanout and a
// reverse index (client -> channels) so a disconnecting client can be
// detached from every channel without a full scan.
type ChannelTable struct {
	mu        sync.RWMutex
	byChannel map[string]map[*Client]struct{}
	byClient  map[*Client]map[string]struct{}
}

// NewChannelTable constructs an empty channel table.
func NewChannelTable() *ChannelTable {
	return &ChannelTable{
		byChannel: make(map[string]map[*Client]struct{}),
		byClient:  make(map[*Client]map[string]struct{}),
	}
}

// Join subscribes a client to a channel. Idempotent.
func (t *ChannelTable) Join(name string, c *Client) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.byChannel[name] == nil {
		t.byChannel[name] = make(map[*Client]struct{})
	}
	t.byChannel[name][c] = struct{}{}
	if t.byClient[c] == nil {
		t.byClient[c] = make(map[string]struct{})
	}
	t.byClient[c][name] = struct{}{}
}

// Leave unsubscribes a client from a channel. No-op if absent.
func (t *ChannelTable) Leave(name string, c *Client) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.detach(name, c)
}

// LeaveAll unsubscribes a client from every channel it belongs to.
func (t *ChannelTable) LeaveAll(c *Client) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name := range t.byClient[c] {
		t.detach(name, c)
	}
}

func (t *ChannelTable) detach(name string, c *Client) {
	if clients, ok := t.byChannel[name]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(t.byChannel, name)
		}
	}
	if names, ok := t.byClient[c]; ok {
		delete(names, name)
		if len(names) == 0 {
			delete(t.byClient, c)
		}
	}
}

// Contains reports whether the client is subscribed to the channel.
func (t *ChannelTable) Contains(name string, c *Client) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.byChannel[name][c]
	return ok
}

// Broadcast sends an event to every connection currently subscribed to the
// channel. Delivery is at-most-once and fire-and-forget; slow consumers
// are dropped, absent members receive nothing.
func (t *ChannelTable) Broadcast(name string, ev *Event) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for client := range t.byChannel[name] {
		client.send(ev)
	}
}
