// Package tokens implements token mutations and raises the corresponding
// domain events.
package tokens

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ppinggu9/trpg-server-sub001/internal/core"
	"github.com/ppinggu9/trpg-server-sub001/internal/store"
)

// Service provides token query and mutation operations.
type Service struct {
	store store.Store
	bus   *core.Bus
	log   *zerolog.Logger
}

// NewService creates a new token service.
func NewService(st store.Store, bus *core.Bus, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{store: st, bus: bus, log: logger}
}

// CreateToken places a token on a map and raises TokenCreated.
func (s *Service) CreateToken(ctx context.Context, mapID, userID, name string, x, y float64, imageURL string) (*store.Token, error) {
	m, err := s.getMap(ctx, mapID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, m.RoomID, userID); err != nil {
		return nil, err
	}

	t, err := s.store.CreateToken(ctx, &store.Token{
		MapID:    mapID,
		OwnerID:  userID,
		Name:     name,
		X:        x,
		Y:        y,
		ImageURL: imageURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}

	s.log.Info().Str("token_id", t.ID).Str("map_id", mapID).Msg("token created")
	s.bus.Publish(core.DomainEvent{Kind: core.DomainTokenCreated, MapID: mapID, TokenID: t.ID, Token: t})
	return t, nil
}

// ListTokensForMap lists all tokens on a map the user may access.
func (s *Service) ListTokensForMap(ctx context.Context, mapID, userID string) ([]*store.Token, error) {
	m, err := s.getMap(ctx, mapID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, m.RoomID, userID); err != nil {
		return nil, err
	}

	tokens, err := s.store.ListTokensForMap(ctx, mapID)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return tokens, nil
}

// UpdateToken moves a token and raises TokenUpdated with the new position.
func (s *Service) UpdateToken(ctx context.Context, tokenID string, x, y float64, userID string) (*store.Token, error) {
	t, err := s.getToken(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	m, err := s.getMap(ctx, t.MapID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, m.RoomID, userID); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateTokenPosition(ctx, tokenID, x, y)
	if err != nil {
		return nil, fmt.Errorf("move token: %w", err)
	}

	s.log.Debug().Str("token_id", tokenID).Float64("x", x).Float64("y", y).Msg("token moved")
	s.bus.Publish(core.DomainEvent{Kind: core.DomainTokenUpdated, MapID: updated.MapID, TokenID: tokenID, Token: updated})
	return updated, nil
}

// DeleteToken removes a token and raises TokenDeleted for its map.
func (s *Service) DeleteToken(ctx context.Context, tokenID, userID string) error {
	t, err := s.getToken(ctx, tokenID)
	if err != nil {
		return err
	}
	m, err := s.getMap(ctx, t.MapID)
	if err != nil {
		return err
	}
	if err := s.requireParticipant(ctx, m.RoomID, userID); err != nil {
		return err
	}

	if err := s.store.DeleteToken(ctx, tokenID); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}

	s.log.Info().Str("token_id", tokenID).Str("map_id", t.MapID).Msg("token deleted")
	s.bus.Publish(core.DomainEvent{Kind: core.DomainTokenDeleted, MapID: t.MapID, TokenID: tokenID})
	return nil
}

func (s *Service) getToken(ctx context.Context, tokenID string) (*store.Token, error) {
	t, err := s.store.GetTokenByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, core.NotFound("token not found")
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return t, nil
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
