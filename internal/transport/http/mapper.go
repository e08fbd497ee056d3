package http

import (
	"github.com/ppinggu9/trpg-server-sub001/internal/core"
	"github.com/ppinggu9/trpg-server-sub001/internal/proto"
	"github.com/ppinggu9/trpg-server-sub001/internal/store"
)

func mapPayload(m *store.Map) proto.MapPayload {
	return proto.MapPayload{
		ID:            m.ID,
		RoomID:        m.RoomID,
		Name:          m.Name,
		Width:         m.Width,
		Height:        m.Height,
		BackgroundURL: m.BackgroundURL,
	}
}

func tokenPayload(t *store.Token) proto.TokenPayload {
	return proto.TokenPayload{
		ID:       t.ID,
		MapID:    t.MapID,
		OwnerID:  t.OwnerID,
		Name:     t.Name,
		X:        t.X,
		Y:        t.Y,
		ImageURL: t.ImageURL,
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventJoinedRoom:
		return proto.Outbound{
			Type: proto.OutboundTypeJoinedRoom,
			Data: proto.JoinedRoomData{RoomID: event.RoomID},
		}
	case core.EventLeftRoom:
		return proto.Outbound{
			Type: proto.OutboundTypeLeftRoom,
			Data: proto.LeftRoomData{RoomID: event.RoomID},
		}
	case core.EventJoinedMap:
		tokens := make([]proto.TokenPayload, 0, len(event.Tokens))
		for _, t := range event.Tokens {
			tokens = append(tokens, tokenPayload(t))
		}
		return proto.Outbound{
			Type: proto.OutboundTypeJoinedMap,
			Data: proto.JoinedMapData{
				MapID:  event.MapID,
				Map:    mapPayload(event.Map),
				Tokens: tokens,
			},
		}
	case core.EventLeftMap:
		return proto.Outbound{
			Type: proto.OutboundTypeLeftMap,
			Data: proto.LeftMapData{MapID: event.MapID},
		}
	case core.EventMapCreated:
		return proto.Outbound{
			Type: proto.OutboundTypeMapCreated,
			Data: mapPayload(event.Map),
		}
	case core.EventMapUpdated:
		// The applied fields spread at the top level of the data object,
		// next to mapId.
		data := make(map[string]any, len(event.Payload)+1)
		for key, value := range event.Payload {
			data[key] = value
		}
		data["mapId"] = event.MapID
		return proto.Outbound{
			Type: proto.OutboundTypeMapUpdated,
			Data: data,
		}
	case core.EventMapDeleted:
		return proto.Outbound{
			Type: proto.OutboundTypeMapDeleted,
			Data: proto.DeletedData{ID: event.MapID},
		}
	case core.EventTokenCreated:
		return proto.Outbound{
			Type: proto.OutboundTypeTokenCreated,
			Data: tokenPayload(event.Token),
		}
	case core.EventTokenUpdated:
		return proto.Outbound{
			Type: proto.OutboundTypeTokenUpdated,
			Data: tokenPayload(event.Token),
		}
	case core.EventTokenDeleted:
		return proto.Outbound{
			Type: proto.OutboundTypeTokenDeleted,
			Data: proto.DeletedData{ID: event.TokenID},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Message: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Message: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Message: "unknown event"}}
	}
}
