package core

import (
	"context"
	"testing"
	"time"

	"github.com/ppinggu9/trpg-server-sub001/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func mustNoEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v received: %+v", kind, ev)
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// fakeAccess is an in-memory AccessValidator.
type fakeAccess struct {
	participants map[string]map[string]bool // roomID -> set of userID
	maps         map[string]*store.Map
	tokens       map[string]*store.Token
}

func newFakeAccess() *fakeAccess {
	return &fakeAccess{
		participants: make(map[string]map[string]bool),
		maps:         make(map[string]*store.Map),
		tokens:       make(map[string]*store.Token),
	}
}

func (f *fakeAccess) addParticipant(roomID, userID string) {
	if f.participants[roomID] == nil {
		f.participants[roomID] = make(map[string]bool)
	}
	f.participants[roomID][userID] = true
}

func (f *fakeAccess) ValidateParticipantAccess(_ context.Context, roomID, userID string) error {
	if !f.participants[roomID][userID] {
		return AccessDenied("not a participant of this room")
	}
	return nil
}

func (f *fakeAccess) ValidateMapAccess(_ context.Context, mapID, userID string) (*store.Map, error) {
	m, ok := f.maps[mapID]
	if !ok {
		return nil, NotFound("map not found")
	}
	if !f.participants[m.RoomID][userID] {
		return nil, AccessDenied("no access to this map")
	}
	return m, nil
}

func (f *fakeAccess) ValidateMoveOrDeleteAccess(_ context.Context, tokenID, userID string) (*store.Token, error) {
	tok, ok := f.tokens[tokenID]
	if !ok {
		return nil, NotFound("token not found")
	}
	m := f.maps[tok.MapID]
	if m == nil || !f.participants[m.RoomID][userID] {
		return nil, AccessDenied("no access to this token")
	}
	return tok, nil
}

// fakeMapService implements MapService and raises MapUpdated like the real one.
type fakeMapService struct {
	access      *fakeAccess
	bus         *Bus
	updateCalls int
}

func (f *fakeMapService) GetMap(_ context.Context, mapID, _ string) (*store.Map, error) {
	m, ok := f.access.maps[mapID]
	if !ok {
		return nil, NotFound("map not found")
	}
	return m, nil
}

func (f *fakeMapService) UpdateMap(_ context.Context, mapID, _ string, updates map[string]any) (*store.Map, error) {
	f.updateCalls++
	m, ok := f.access.maps[mapID]
	if !ok {
		return nil, NotFound("map not found")
	}
	f.bus.Publish(DomainEvent{Kind: DomainMapUpdated, MapID: mapID, Payload: updates})
	return m, nil
}

// fakeTokenService implements TokenService and raises TokenUpdated like the real one.
type fakeTokenService struct {
	access      *fakeAccess
	bus         *Bus
	listCalls   int
	updateCalls int
}

func (f *fakeTokenService) ListTokensForMap(_ context.Context, mapID, _ string) ([]*store.Token, error) {
	f.listCalls++
	var out []*store.Token
	for _, tok := range f.access.tokens {
		if tok.MapID == mapID {
			out = append(out, tok)
		}
	}
	return out, nil
}

func (f *fakeTokenService) UpdateToken(_ context.Context, tokenID string, x, y float64, _ string) (*store.Token, error) {
	f.updateCalls++
	tok, ok := f.access.tokens[tokenID]
	if !ok {
		return nil, NotFound("token not found")
	}
	moved := *tok
	moved.X = x
	moved.Y = y
	f.access.tokens[tokenID] = &moved
	f.bus.Publish(DomainEvent{Kind: DomainTokenUpdated, MapID: moved.MapID, TokenID: tokenID, Token: &moved})
	return &moved, nil
}

// stallingAccess parks ValidateMapAccess until released so tests can
// interleave other gateway calls while a handler is suspended in it.
type stallingAccess struct {
	*fakeAccess
	entered chan struct{}
	release chan struct{}
}

func (s *stallingAccess) ValidateMapAccess(ctx context.Context, mapID, userID string) (*store.Map, error) {
	s.entered <- struct{}{}
	<-s.release
	return s.fakeAccess.ValidateMapAccess(ctx, mapID, userID)
}

// stallingTokens parks ListTokensForMap the same way.
type stallingTokens struct {
	*fakeTokenService
	entered chan struct{}
	release chan struct{}
}

func (s *stallingTokens) ListTokensForMap(ctx context.Context, mapID, userID string) ([]*store.Token, error) {
	s.entered <- struct{}{}
	<-s.release
	return s.fakeTokenService.ListTokensForMap(ctx, mapID, userID)
}

// newTestGateway wires a gateway against in-memory fakes.
func newTestGateway() (*Gateway, *fakeAccess, *fakeMapService, *fakeTokenService) {
	fa := newFakeAccess()
	bus := NewBus()
	fm := &fakeMapService{access: fa, bus: bus}
	ft := &fakeTokenService{access: fa, bus: bus}
	return NewGateway(fa, fm, ft, bus, nil), fa, fm, ft
}
