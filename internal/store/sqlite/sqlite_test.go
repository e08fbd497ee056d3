package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/ppinggu9/trpg-server-sub001/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestUser(t *testing.T, s *SQLiteStore, email string) *store.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), email, "tester", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestUserLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := createTestUser(t, s, "gm@example.com")
	if u.ID == "" || u.Email != "gm@example.com" || u.Nickname != "tester" {
		t.Fatalf("unexpected user: %+v", u)
	}

	byEmail, err := s.GetUserByEmail(ctx, "gm@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if byEmail.ID != u.ID {
		t.Fatalf("expected id %s, got %s", u.ID, byEmail.ID)
	}

	if _, err := s.GetUserByID(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Duplicate email must fail.
	if _, err := s.CreateUser(ctx, "gm@example.com", "other", "hash"); err == nil {
		t.Fatal("duplicate email should fail")
	}
}

func TestRoomOwnerBecomesParticipant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := createTestUser(t, s, "owner@example.com")
	room, err := s.CreateRoom(ctx, "Curse of Strahd", owner.ID)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}

	ok, err := s.IsParticipant(ctx, room.ID, owner.ID)
	if err != nil {
		t.Fatalf("is participant: %v", err)
	}
	if !ok {
		t.Fatal("owner must be a participant of the created room")
	}
}

func TestParticipants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := createTestUser(t, s, "owner@example.com")
	player := createTestUser(t, s, "player@example.com")
	room, _ := s.CreateRoom(ctx, "room", owner.ID)

	if err := s.AddParticipant(ctx, room.ID, player.ID); err != nil {
		t.Fatalf("add participant: %v", err)
	}
	// Idempotent.
	if err := s.AddParticipant(ctx, room.ID, player.ID); err != nil {
		t.Fatalf("re-add participant: %v", err)
	}

	ids, err := s.ListParticipants(ctx, room.ID)
	if err != nil {
		t.Fatalf("list participants: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(ids))
	}

	rooms, err := s.ListRoomsForUser(ctx, player.ID)
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(rooms) != 1 || rooms[0].ID != room.ID {
		t.Fatalf("expected player's room list to contain %s, got %+v", room.ID, rooms)
	}

	if err := s.RemoveParticipant(ctx, room.ID, player.ID); err != nil {
		t.Fatalf("remove participant: %v", err)
	}
	ok, _ := s.IsParticipant(ctx, room.ID, player.ID)
	if ok {
		t.Fatal("player should be removed")
	}
}

func TestMapPartialUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := createTestUser(t, s, "owner@example.com")
	room, _ := s.CreateRoom(ctx, "room", owner.ID)
	m, err := s.CreateMap(ctx, &store.Map{RoomID: room.ID, Name: "Dungeon", Width: 30, Height: 20})
	if err != nil {
		t.Fatalf("create map: %v", err)
	}

	updated, err := s.UpdateMapFields(ctx, m.ID, map[string]any{
		"name":          "Crypt",
		"width":         float64(40),
		"backgroundUrl": "https://cdn.example.com/crypt.png",
	})
	if err != nil {
		t.Fatalf("update map: %v", err)
	}
	if updated.Name != "Crypt" || updated.Width != 40 || updated.BackgroundURL != "https://cdn.example.com/crypt.png" {
		t.Fatalf("unexpected map after update: %+v", updated)
	}
	if updated.Height != 20 {
		t.Fatal("untouched fields must keep their value")
	}

	// Unknown keys are ignored, not applied.
	same, err := s.UpdateMapFields(ctx, m.ID, map[string]any{"roomId": "evil"})
	if err != nil {
		t.Fatalf("update with unknown key: %v", err)
	}
	if same.RoomID != room.ID {
		t.Fatal("unknown update keys must not change columns")
	}

	if _, err := s.UpdateMapFields(ctx, "missing", map[string]any{"name": "x"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteMapCascadesTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := createTestUser(t, s, "owner@example.com")
	room, _ := s.CreateRoom(ctx, "room", owner.ID)
	m, _ := s.CreateMap(ctx, &store.Map{RoomID: room.ID, Name: "Dungeon"})
	tok, err := s.CreateToken(ctx, &store.Token{MapID: m.ID, OwnerID: owner.ID, Name: "Hero", X: 3, Y: 4})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	if err := s.DeleteMap(ctx, m.ID); err != nil {
		t.Fatalf("delete map: %v", err)
	}
	if _, err := s.GetMapByID(ctx, m.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected map to be gone, got %v", err)
	}
	if _, err := s.GetTokenByID(ctx, tok.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected token to be cascaded away, got %v", err)
	}
}

func TestTokenPosition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := createTestUser(t, s, "owner@example.com")
	room, _ := s.CreateRoom(ctx, "room", owner.ID)
	m, _ := s.CreateMap(ctx, &store.Map{RoomID: room.ID, Name: "Dungeon"})
	tok, _ := s.CreateToken(ctx, &store.Token{MapID: m.ID, OwnerID: owner.ID, Name: "Hero"})

	moved, err := s.UpdateTokenPosition(ctx, tok.ID, 12.5, 7.25)
	if err != nil {
		t.Fatalf("move token: %v", err)
	}
	if moved.X != 12.5 || moved.Y != 7.25 {
		t.Fatalf("expected (12.5, 7.25), got (%v, %v)", moved.X, moved.Y)
	}

	if _, err := s.UpdateTokenPosition(ctx, "missing", 0, 0); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	list, err := s.ListTokensForMap(ctx, m.ID)
	if err != nil {
		t.Fatalf("list tokens: %v", err)
	}
	if len(list) != 1 || list[0].ID != tok.ID {
		t.Fatalf("unexpected token list: %+v", list)
	}

	if err := s.DeleteToken(ctx, tok.ID); err != nil {
		t.Fatalf("delete token: %v", err)
	}
	if err := s.DeleteToken(ctx, tok.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
