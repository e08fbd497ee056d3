package core

import "sync"

// PresenceRegistry is the single source of truth for which users are
// currently joined to which rooms and maps. Sets are pruned the moment
// they become empty; an empty set is never stored under a key.
type PresenceRegistry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{} // roomID -> set of userID
	maps  map[string]map[string]struct{} // mapID -> set of userID
}

// NewPresenceRegistry constructs an empty registry.
func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		rooms: make(map[string]map[string]struct{}),
		maps:  make(map[string]map[string]struct{}),
	}
}

// JoinRoom adds the user to the room's presence set. Idempotent.
func (p *PresenceRegistry) JoinRoom(roomID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	addMember(p.rooms, roomID, userID)
}

// LeaveRoom removes the user from the room's presence set.
// A no-op, not an error, if the user was never present.
func (p *PresenceRegistry) LeaveRoom(roomID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	removeMember(p.rooms, roomID, userID)
}

// JoinMap adds the user to the map's presence set. Idempotent.
func (p *PresenceRegistry) JoinMap(mapID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	addMember(p.maps, mapID, userID)
}

// LeaveMap removes the user from the map's presence set. No-op if absent.
func (p *PresenceRegistry) LeaveMap(mapID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	removeMember(p.maps, mapID, userID)
}

// IsRoomMember reports whether the user is currently present in the room.
func (p *PresenceRegistry) IsRoomMember(roomID, userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.rooms[roomID][userID]
	return ok
}

// IsMapMember reports whether the user is currently present in the map.
func (p *PresenceRegistry) IsMapMember(mapID, userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.maps[mapID][userID]
	return ok
}

// RoomMembers returns the users present in a room, nil when the room has
// no presence entry.
func (p *PresenceRegistry) RoomMembers(roomID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return members(p.rooms, roomID)
}

// MapMembers returns the users present in a map, nil when the map has no
// presence entry.
func (p *PresenceRegistry) MapMembers(mapID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return members(p.maps, mapID)
}

// RemoveUserEverywhere removes the user from every room and map set it
// appears in and prunes sets that become empty. Called once per disconnect.
// Presence is keyed by user id, so a second live connection of the same
// user loses its presence here as well.
func (p *PresenceRegistry) RemoveUserEverywhere(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for roomID := range p.rooms {
		removeMember(p.rooms, roomID, userID)
	}
	for mapID := range p.maps {
		removeMember(p.maps, mapID, userID)
	}
}

func addMember(sets map[string]map[string]struct{}, key, userID string) {
	if sets[key] == nil {
		sets[key] = make(map[string]struct{})
	}
	sets[key][userID] = struct{}{}
}

func removeMember(sets map[string]map[string]struct{}, key, userID string) {
	set, ok := sets[key]
	if !ok {
		return
	}
	delete(set, userID)
	if len(set) == 0 {
		delete(sets, key)
	}
}

func members(sets map[string]map[string]struct{}, key string) []string {
	set := sets[key]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for userID := range set {
		out = append(out, userID)
	}
	return out
}
