// Package maps implements map mutations. Every completed mutation raises a
// domain event on the bus; live broadcast of those events is the fanout
// router's job, not this package's.
package maps

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ppinggu9/trpg-server-sub001/internal/core"
	"github.com/ppinggu9/trpg-server-sub001/internal/store"
)

// Service provides map query and mutation operations.
type Service struct {
	store store.Store
	bus   *core.Bus
	log   *zerolog.Logger
}

// NewService creates a new map service.
func NewService(st store.Store, bus *core.Bus, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{store: st, bus: bus, log: logger}
}

// CreateMap creates a map in a room and raises MapCreated.
func (s *Service) CreateMap(ctx context.Context, roomID, userID, name string, width, height int, backgroundURL string) (*store.Map, error) {
	if err := s.requireParticipant(ctx, roomID, userID); err != nil {
		return nil, err
	}

	m, err := s.store.CreateMap(ctx, &store.Map{
		RoomID:        roomID,
		Name:          name,
		Width:         width,
		Height:        height,
		BackgroundURL: backgroundURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create map: %w", err)
	}

	s.log.Info().Str("map_id", m.ID).Str("room_id", roomID).Msg("map created")
	s.bus.Publish(core.DomainEvent{Kind: core.DomainMapCreated, RoomID: roomID, MapID: m.ID, Map: m})
	return m, nil
}

// GetMap returns a map if the user participates in its room.
func (s *Service) GetMap(ctx context.Context, mapID, userID string) (*store.Map, error) {
	m, err := s.getMap(ctx, mapID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, m.RoomID, userID); err != nil {
		return nil, err
	}
	return m, nil
}

// ListMapsForRoom lists the maps of a room the user participates in.
func (s *Service) ListMapsForRoom(ctx context.Context, roomID, userID string) ([]*store.Map, error) {
	if err := s.requireParticipant(ctx, roomID, userID); err != nil {
		return nil, err
	}
	maps, err := s.store.ListMapsForRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list maps: %w", err)
	}
	return maps, nil
}

// updatableFields are the partial-update keys UpdateMap accepts.
var updatableFields = map[string]struct{}{
	"name":          {},
	"width":         {},
	"height":        {},
	"backgroundUrl": {},
}

// UpdateMap applies a partial update and raises MapUpdated with the
// applied fields.
func (s *Service) UpdateMap(ctx context.Context, mapID, userID string, updates map[string]any) (*store.Map, error) {
	m, err := s.getMap(ctx, mapID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, m.RoomID, userID); err != nil {
		return nil, err
	}

	applied := make(map[string]any, len(updates))
	for key, value := range updates {
		if _, ok := updatableFields[key]; ok {
			applied[key] = value
		}
	}
	if len(applied) == 0 {
		return nil, core.BadRequest("no updatable fields in updates")
	}

	updated, err := s.store.UpdateMapFields(ctx, mapID, applied)
	if err != nil {
		return nil, fmt.Errorf("update map: %w", err)
	}

	s.log.Debug().Str("map_id", mapID).Int("fields", len(applied)).Msg("map updated")
	s.bus.Publish(core.DomainEvent{Kind: core.DomainMapUpdated, MapID: mapID, Payload: applied})
	return updated, nil
}

// DeleteMap removes a map and raises MapDeleted for its room.
func (s *Service) DeleteMap(ctx context.Context, mapID, userID string) error {
	m, err := s.getMap(ctx, mapID)
	if err != nil {
		return err
	}
	if err := s.requireParticipant(ctx, m.RoomID, userID); err != nil {
		return err
	}

	if err := s.store.DeleteMap(ctx, mapID); err != nil {
		return fmt.Errorf("delete map: %w", err)
	}

	s.log.Info().Str("map_id", mapID).Str("room_id", m.RoomID).Msg("map deleted")
	s.bus.Publish(core.DomainEvent{Kind: core.DomainMapDeleted, RoomID: m.RoomID, MapID: mapID})
	return nil
}

func (s *Service) getMap(ctx context.Context, mapID string) (*store.Map, error) {
	m, err := s.store.GetMapByID(ctx, mapID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, core.NotFound("map not found")
		}
		return nil, fmt.Errorf("get map: %w", err)
	}
	return m, nil
}

func (s *Service) requireParticipant(ctx context.Context, roomID, userID string) error {
	ok, err := s.store.IsParticipant(ctx, roomID, userID)
	if err != nil {
		return fmt.Errorf("check participant: %w", err)
	}
	if !ok {
		return core.AccessDenied("not a participant of this room")
	}
	return nil
}
