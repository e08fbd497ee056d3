package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Inbound message types.
const (
	InboundTypeJoinRoom  = "joinRoom"
	InboundTypeLeaveRoom = "leaveRoom"
	InboundTypeJoinMap   = "joinMap"
	InboundTypeLeaveMap  = "leaveMap"
	InboundTypeMoveToken = "moveToken"
	InboundTypeUpdateMap = "updateMap"
)

// Outbound message types. Success replies go only to the sender; the
// remaining types are channel broadcasts.
const (
	OutboundTypeJoinedRoom   = "joinedRoom"
	OutboundTypeLeftRoom     = "leftRoom"
	OutboundTypeJoinedMap    = "joinedMap"
	OutboundTypeLeftMap      = "leftMap"
	OutboundTypeMapCreated   = "mapCreated"
	OutboundTypeMapUpdated   = "mapUpdated"
	OutboundTypeMapDeleted   = "mapDeleted"
	OutboundTypeTokenCreated = "token:created"
	OutboundTypeTokenUpdated = "token:updated"
	OutboundTypeTokenDeleted = "token:deleted"
	OutboundTypeError        = "error"
)

// JoinRoomData requests presence in a room.
type JoinRoomData struct {
	RoomID string `json:"roomId"`
}

// LeaveRoomData gives up presence in a room.
type LeaveRoomData struct {
	RoomID string `json:"roomId"`
}

// JoinMapData requests presence in a map.
type JoinMapData struct {
	MapID string `json:"mapId"`
}

// LeaveMapData gives up presence in a map.
type LeaveMapData struct {
	MapID string `json:"mapId"`
}

// MoveTokenData moves a token to new coordinates.
type MoveTokenData struct {
	TokenID string  `json:"tokenId"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// UpdateMapData applies a partial update to a map. The shape is checked
// locally before any collaborator is invoked: mapId must be a string and
// updates must be an object.
type UpdateMapData struct {
	MapID   string         `json:"mapId"`
	Updates map[string]any `json:"updates"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// MapPayload is the wire shape of a map.
type MapPayload struct {
	ID            string `json:"id"`
	RoomID        string `json:"roomId"`
	Name          string `json:"name"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	BackgroundURL string `json:"backgroundUrl,omitempty"`
}

// TokenPayload is the wire shape of a token.
type TokenPayload struct {
	ID       string  `json:"id"`
	MapID    string  `json:"mapId"`
	OwnerID  string  `json:"ownerId"`
	Name     string  `json:"name"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	ImageURL string  `json:"imageUrl,omitempty"`
}

// JoinedRoomData confirms a joinRoom.
type JoinedRoomData struct {
	RoomID string `json:"roomId"`
}

// LeftRoomData confirms a leaveRoom.
type LeftRoomData struct {
	RoomID string `json:"roomId"`
}

// JoinedMapData confirms a joinMap with the current map state.
type JoinedMapData struct {
	MapID  string         `json:"mapId"`
	Map    MapPayload     `json:"map"`
	Tokens []TokenPayload `json:"tokens"`
}

// LeftMapData confirms a leaveMap.
type LeftMapData struct {
	MapID string `json:"mapId"`
}

// DeletedData identifies a deleted map or token.
type DeletedData struct {
	ID string `json:"id"`
}
