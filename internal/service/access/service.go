// Package access implements the authorization queries the gateway consumes.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppinggu9/trpg-server-sub001/internal/core"
	"github.com/ppinggu9/trpg-server-sub001/internal/store"
)

// Service answers room, map and token authorization queries against the store.
type Service struct {
	store store.Store
}

// NewService creates a new access validator backed by the store.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// ValidateParticipantAccess fails unless the user participates in the room.
func (s *Service) ValidateParticipantAccess(ctx context.Context, roomID, userID string) error {
	if _, err := s.store.GetRoomByID(ctx, roomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return core.NotFound("room not found")
		}
		return fmt.Errorf("get room: %w", err)
	}

	ok, err := s.store.IsParticipant(ctx, roomID, userID)
	if err != nil {
		return fmt.Errorf("check participant: %w", err)
	}
	if !ok {
		return core.AccessDenied("not a participant of this room")
	}
	return nil
}

// ValidateMapAccess returns the map if the user participates in its room.
func (s *Service) ValidateMapAccess(ctx context.Context, mapID, userID string) (*store.Map, error) {
	m, err := s.store.GetMapByID(ctx, mapID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, core.NotFound("map not found")
		}
		return nil, fmt.Errorf("get map: %w", err)
	}

	ok, err := s.store.IsParticipant(ctx, m.RoomID, userID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if !ok {
		return nil, core.AccessDenied("no access to this map")
	}
	return m, nil
}

// ValidateMoveOrDeleteAccess returns the token if the user participates in
// the room owning the token's map.
func (s *Service) ValidateMoveOrDeleteAccess(ctx context.Context, tokenID, userID string) (*store.Token, error) {
	t, err := s.store.GetTokenByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, core.NotFound("token not found")
		}
		return nil, fmt.Errorf("get token: %w", err)
	}

	m, err := s.store.GetMapByID(ctx, t.MapID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, core.NotFound("map not found")
		}
		return nil, fmt.Errorf("get map: %w", err)
	}

	ok, err := s.store.IsParticipant(ctx, m.RoomID, userID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if !ok {
		return nil, core.AccessDenied("no access to this token")
	}
	return t, nil
}
