package core

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ppinggu9/trpg-server-sub001/internal/proto"
	"github.com/ppinggu9/trpg-server-sub001/internal/store"
)

// AccessValidator answers authorization queries for gateway actions.
// Implementations may block on IO; the gateway never calls them while
// holding its mutation lock.
type AccessValidator interface {
	// ValidateParticipantAccess fails unless the user participates in the room.
	ValidateParticipantAccess(ctx context.Context, roomID, userID string) error

	// ValidateMapAccess returns the map if the user may enter it.
	ValidateMapAccess(ctx context.Context, mapID, userID string) (*store.Map, error)

	// ValidateMoveOrDeleteAccess returns the token if the user may move or
	// delete it.
	ValidateMoveOrDeleteAccess(ctx context.Context, tokenID, userID string) (*store.Token, error)
}

// MapQueryService reads map state.
type MapQueryService interface {
	GetMap(ctx context.Context, mapID, userID string) (*store.Map, error)
}

// MapMutationService applies map updates and raises MapUpdated on success.
type MapMutationService interface {
	UpdateMap(ctx context.Context, mapID, userID string, updates map[string]any) (*store.Map, error)
}

// TokenQueryService reads token state.
type TokenQueryService interface {
	ListTokensForMap(ctx context.Context, mapID, userID string) ([]*store.Token, error)
}

// TokenMutationService moves tokens and raises TokenUpdated on success.
type TokenMutationService interface {
	UpdateToken(ctx context.Context, tokenID string, x, y float64, userID string) (*store.Token, error)
}

// MapService groups the map collaborators the gateway consumes.
type MapService interface {
	MapQueryService
	MapMutationService
}

// TokenService groups the token collaborators the gateway consumes.
type TokenService interface {
	TokenQueryService
	TokenMutationService
}

type handlerFunc func(ctx context.Context, c *Client, data json.RawMessage) error

// Gateway tracks session presence, authorizes state-changing actions and
// fans out domain events to the right channels.
//
// Validator calls may suspend; between validation and the resuming registry
// mutation another handler or a disconnect can run. Every mutating section
// therefore re-checks connection liveness and presence inside g.mu, which
// also covers channel membership so the two never drift apart.
type Gateway struct {
	mu       sync.Mutex
	presence *PresenceRegistry
	channels *ChannelTable

	access AccessValidator
	maps   MapService
	tokens TokenService

	handlers map[string]handlerFunc
	log      *zerolog.Logger
}

// NewGateway constructs a gateway and subscribes its fanout router to the bus.
func NewGateway(access AccessValidator, maps MapService, tokens TokenService, bus *Bus, logger *zerolog.Logger) *Gateway {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	g := &Gateway{
		presence: NewPresenceRegistry(),
		channels: NewChannelTable(),
		access:   access,
		maps:     maps,
		tokens:   tokens,
		log:      logger,
	}

	g.handlers = map[string]handlerFunc{
		proto.InboundTypeJoinRoom:  g.handleJoinRoom,
		proto.InboundTypeLeaveRoom: g.handleLeaveRoom,
		proto.InboundTypeJoinMap:   g.handleJoinMap,
		proto.InboundTypeLeaveMap:  g.handleLeaveMap,
		proto.InboundTypeMoveToken: g.handleMoveToken,
		proto.InboundTypeUpdateMap: g.handleUpdateMap,
	}

	if bus != nil {
		bus.Subscribe(g.routeDomainEvent)
	}

	return g
}

// Presence exposes the registry for read-only inspection.
func (g *Gateway) Presence() *PresenceRegistry { return g.presence }

// Channels exposes the channel table for read-only inspection.
func (g *Gateway) Channels() *ChannelTable { return g.channels }

// Dispatch routes one inbound message to its handler. Any failure raised
// by a validator or collaborator is converted into an error event sent
// only to the originating connection; nothing propagates to the transport.
func (g *Gateway) Dispatch(ctx context.Context, c *Client, msgType string, data json.RawMessage) {
	h, ok := g.handlers[msgType]
	if !ok {
		g.replyError(c, BadRequest("unknown message type: "+msgType))
		return
	}
	if err := h(ctx, c, data); err != nil {
		g.replyError(c, asGatewayError(err))
	}
}

// Disconnect removes the connection's presence and channel memberships.
// Runs once per drop, before the connection is considered fully closed.
func (g *Gateway) Disconnect(c *Client) {
	g.mu.Lock()
	c.Close()
	g.presence.RemoveUserEverywhere(c.UserID)
	g.channels.LeaveAll(c)
	g.mu.Unlock()

	g.log.Debug().Str("conn_id", c.ID).Str("user_id", c.UserID).Msg("connection cleaned up")
}

func (g *Gateway) replyError(c *Client, ge *GatewayError) {
	g.log.Debug().Str("conn_id", c.ID).Str("code", ge.Code).Str("msg", ge.Message).Msg("gateway error reply")
	c.send(&Event{Kind: EventError, Error: ge})
}

// ---- action handlers ----

func (g *Gateway) handleJoinRoom(ctx context.Context, c *Client, data json.RawMessage) error {
	var d proto.JoinRoomData
	if err := json.Unmarshal(data, &d); err != nil || d.RoomID == "" {
		return BadRequest("roomId is required")
	}

	if err := g.access.ValidateParticipantAccess(ctx, d.RoomID, c.UserID); err != nil {
		return err
	}

	g.mu.Lock()
	if !c.closed() {
		g.presence.JoinRoom(d.RoomID, c.UserID)
		g.channels.Join(RoomChannel(d.RoomID), c)
	}
	g.mu.Unlock()

	c.send(&Event{Kind: EventJoinedRoom, RoomID: d.RoomID})
	return nil
}

func (g *Gateway) handleLeaveRoom(_ context.Context, c *Client, data json.RawMessage) error {
	var d proto.LeaveRoomData
	if err := json.Unmarshal(data, &d); err != nil || d.RoomID == "" {
		return BadRequest("roomId is required")
	}

	// Leaving a membership never held is a silent no-op. Map presence in
	// the room is kept: only leaveMap or disconnect evicts it.
	g.mu.Lock()
	g.presence.LeaveRoom(d.RoomID, c.UserID)
	g.channels.Leave(RoomChannel(d.RoomID), c)
	g.mu.Unlock()

	c.send(&Event{Kind: EventLeftRoom, RoomID: d.RoomID})
	return nil
}

func (g *Gateway) handleJoinMap(ctx context.Context, c *Client, data json.RawMessage) error {
	var d proto.JoinMapData
	if err := json.Unmarshal(data, &d); err != nil || d.MapID == "" {
		return BadRequest("mapId is required")
	}

	m, err := g.access.ValidateMapAccess(ctx, d.MapID, c.UserID)
	if err != nil {
		return err
	}

	// Gate before the token fetch so a caller without live room presence
	// does not cost a token-list query. Advisory only: the authoritative
	// check repeats under the lock.
	if !g.presence.IsRoomMember(m.RoomID, c.UserID) {
		return NewGatewayError(ErrCodeRoomRequired, MsgRoomRequired)
	}

	tokens, err := g.tokens.ListTokensForMap(ctx, m.ID, c.UserID)
	if err != nil {
		return err
	}

	g.mu.Lock()
	if c.closed() {
		g.mu.Unlock()
		return nil
	}
	// Room presence is checked at join time only, inside the critical
	// section so a concurrent leaveRoom or disconnect cannot slip between
	// the check and the mutation.
	if !g.presence.IsRoomMember(m.RoomID, c.UserID) {
		g.mu.Unlock()
		return NewGatewayError(ErrCodeRoomRequired, MsgRoomRequired)
	}
	g.presence.JoinMap(m.ID, c.UserID)
	g.channels.Join(RoomChannel(m.RoomID), c)
	g.channels.Join(MapChannel(m.ID), c)
	g.mu.Unlock()

	c.send(&Event{Kind: EventJoinedMap, MapID: m.ID, Map: m, Tokens: tokens})
	return nil
}

func (g *Gateway) handleLeaveMap(_ context.Context, c *Client, data json.RawMessage) error {
	var d proto.LeaveMapData
	if err := json.Unmarshal(data, &d); err != nil || d.MapID == "" {
		return BadRequest("mapId is required")
	}

	g.mu.Lock()
	g.presence.LeaveMap(d.MapID, c.UserID)
	g.channels.Leave(MapChannel(d.MapID), c)
	g.mu.Unlock()

	c.send(&Event{Kind: EventLeftMap, MapID: d.MapID})
	return nil
}

func (g *Gateway) handleMoveToken(ctx context.Context, c *Client, data json.RawMessage) error {
	var d proto.MoveTokenData
	if err := json.Unmarshal(data, &d); err != nil || d.TokenID == "" {
		return BadRequest("tokenId is required")
	}

	tok, err := g.access.ValidateMoveOrDeleteAccess(ctx, d.TokenID, c.UserID)
	if err != nil {
		return err
	}

	g.mu.Lock()
	present := g.presence.IsMapMember(tok.MapID, c.UserID)
	g.mu.Unlock()
	if !present {
		return AccessDenied("join the token's map before moving it")
	}

	// The mutation collaborator raises TokenUpdated; the broadcast carries
	// the update, so there is no direct success reply.
	if _, err := g.tokens.UpdateToken(ctx, d.TokenID, d.X, d.Y, c.UserID); err != nil {
		return err
	}
	return nil
}

func (g *Gateway) handleUpdateMap(ctx context.Context, c *Client, data json.RawMessage) error {
	// Shape is checked locally before any collaborator call: a non-string
	// mapId or non-object updates fails to decode.
	var d proto.UpdateMapData
	if err := json.Unmarshal(data, &d); err != nil {
		return BadRequest("mapId must be a string and updates must be an object")
	}
	if d.MapID == "" || d.Updates == nil {
		return BadRequest("mapId and updates are required")
	}

	if _, err := g.maps.UpdateMap(ctx, d.MapID, c.UserID, d.Updates); err != nil {
		return err
	}
	return nil
}

// ---- event fanout ----

// routeDomainEvent derives the target channel purely from the event
// payload and broadcasts to whoever is subscribed at this moment.
func (g *Gateway) routeDomainEvent(ev DomainEvent) {
	switch ev.Kind {
	case DomainMapCreated:
		g.channels.Broadcast(RoomChannel(ev.RoomID), &Event{Kind: EventMapCreated, RoomID: ev.RoomID, Map: ev.Map})
	case DomainMapDeleted:
		g.channels.Broadcast(RoomChannel(ev.RoomID), &Event{Kind: EventMapDeleted, RoomID: ev.RoomID, MapID: ev.MapID})
	case DomainMapUpdated:
		g.channels.Broadcast(MapChannel(ev.MapID), &Event{Kind: EventMapUpdated, MapID: ev.MapID, Payload: ev.Payload})
	case DomainTokenCreated:
		g.channels.Broadcast(MapChannel(ev.MapID), &Event{Kind: EventTokenCreated, MapID: ev.MapID, Token: ev.Token})
	case DomainTokenUpdated:
		g.channels.Broadcast(MapChannel(ev.MapID), &Event{Kind: EventTokenUpdated, MapID: ev.MapID, Token: ev.Token})
	case DomainTokenDeleted:
		g.channels.Broadcast(MapChannel(ev.MapID), &Event{Kind: EventTokenDeleted, MapID: ev.MapID, TokenID: ev.TokenID})
	}
}
