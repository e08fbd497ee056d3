package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/ppinggu9/trpg-server-sub001/internal/auth"
	"github.com/ppinggu9/trpg-server-sub001/internal/config"
	"github.com/ppinggu9/trpg-server-sub001/internal/core"
	"github.com/ppinggu9/trpg-server-sub001/internal/proto"
	"github.com/ppinggu9/trpg-server-sub001/internal/service/access"
	"github.com/ppinggu9/trpg-server-sub001/internal/service/maps"
	"github.com/ppinggu9/trpg-server-sub001/internal/service/tokens"
	"github.com/ppinggu9/trpg-server-sub001/internal/store/sqlite"
)

type testEnv struct {
	ts *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.Default()
	cfg.JWTSecret = "test-secret"

	logger := zerolog.Nop()
	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	})

	bus := core.NewBus()
	mapService := maps.NewService(st, bus, &logger)
	tokenService := tokens.NewService(st, bus, &logger)
	gateway := core.NewGateway(access.NewService(st), mapService, tokenService, bus, &logger)

	srv := NewServer(gateway, authService, mapService, tokenService, st, cfg, &logger)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts}
}

// doJSON performs an authenticated JSON request and decodes the response body.
func (e *testEnv) doJSON(t *testing.T, method, path, token string, body any, wantStatus int, out any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := stdhttp.NewRequest(method, e.ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: expected status %d, got %d", method, path, wantStatus, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
}

func (e *testEnv) register(t *testing.T, email, nickname string) string {
	t.Helper()
	var resp AuthResponse
	e.doJSON(t, stdhttp.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"nickname": nickname,
		"password": "supersecret",
	}, stdhttp.StatusCreated, &resp)
	return resp.Token
}

func (e *testEnv) createRoom(t *testing.T, token, name string) string {
	t.Helper()
	var resp RoomResponse
	e.doJSON(t, stdhttp.MethodPost, "/api/rooms", token, map[string]string{"name": name}, stdhttp.StatusCreated, &resp)
	return resp.ID
}

func (e *testEnv) createMap(t *testing.T, token, roomID, name string) string {
	t.Helper()
	var resp proto.MapPayload
	e.doJSON(t, stdhttp.MethodPost, "/api/maps", token, map[string]any{
		"roomId": roomID,
		"name":   name,
		"width":  30,
		"height": 20,
	}, stdhttp.StatusCreated, &resp)
	return resp.ID
}

func (e *testEnv) createToken(t *testing.T, token, mapID, name string) string {
	t.Helper()
	var resp proto.TokenPayload
	e.doJSON(t, stdhttp.MethodPost, "/api/tokens", token, map[string]any{
		"mapId": mapID,
		"name":  name,
		"x":     1.0,
		"y":     1.0,
	}, stdhttp.StatusCreated, &resp)
	return resp.ID
}

// wsSession is a connected test WebSocket client.
type wsSession struct {
	conn *websocket.Conn
	ctx  context.Context
}

// wsEnvelope mirrors the outbound wire shape with an undecoded data field.
type wsEnvelope struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func (e *testEnv) dialWS(t *testing.T, ctx context.Context, token string) *wsSession {
	t.Helper()

	url := "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "test done") })
	return &wsSession{conn: conn, ctx: ctx}
}

func (s *wsSession) sendMsg(t *testing.T, msgType string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s data: %v", msgType, err)
	}
	if err := wsjson.Write(s.ctx, s.conn, proto.Inbound{Type: msgType, Data: raw}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// expect reads messages until one of the wanted type arrives.
func (s *wsSession) expect(t *testing.T, msgType string) wsEnvelope {
	t.Helper()
	for {
		var env wsEnvelope
		if err := wsjson.Read(s.ctx, s.conn, &env); err != nil {
			t.Fatalf("waiting for %s: %v", msgType, err)
		}
		if env.Type == msgType {
			return env
		}
	}
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)

	resp, err := e.ts.Client().Get(e.ts.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestAuthEndpoints(t *testing.T) {
	e := newTestEnv(t)

	token := e.register(t, "gm@example.com", "gm")
	if token == "" {
		t.Fatal("register must return a token")
	}

	// Duplicate registration conflicts.
	e.doJSON(t, stdhttp.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "gm@example.com",
		"nickname": "gm2",
		"password": "supersecret",
	}, stdhttp.StatusConflict, nil)

	var login AuthResponse
	e.doJSON(t, stdhttp.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "gm@example.com",
		"password": "supersecret",
	}, stdhttp.StatusOK, &login)
	if login.Token == "" {
		t.Fatal("login must return a token")
	}

	e.doJSON(t, stdhttp.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "gm@example.com",
		"password": "wrongpass",
	}, stdhttp.StatusUnauthorized, nil)
}

func TestAPIRejectsMissingToken(t *testing.T) {
	e := newTestEnv(t)
	e.doJSON(t, stdhttp.MethodGet, "/api/rooms", "", nil, stdhttp.StatusUnauthorized, nil)
}

func TestWSRejectsBadCredential(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/ws?token=garbage"
	conn, resp, err := websocket.Dial(ctx, url, nil)
	if err == nil {
		conn.Close(websocket.StatusNormalClosure, "")
		t.Fatal("dial with a bad credential must fail")
	}
	if resp != nil && resp.StatusCode != stdhttp.StatusUnauthorized {
		t.Fatalf("expected 401 refusal, got %d", resp.StatusCode)
	}
}

func TestSessionFlow(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	gmToken := e.register(t, "gm@example.com", "gamemaster")
	playerToken := e.register(t, "player@example.com", "player")

	roomID := e.createRoom(t, gmToken, "Curse of Strahd")
	e.doJSON(t, stdhttp.MethodPost, fmt.Sprintf("/api/rooms/%s/join", roomID), playerToken, nil, stdhttp.StatusNoContent, nil)

	mapID := e.createMap(t, gmToken, roomID, "Dungeon")
	tokenID := e.createToken(t, gmToken, mapID, "Hero")

	gm := e.dialWS(t, ctx, gmToken)
	player := e.dialWS(t, ctx, playerToken)

	// Joining a map without live room presence is refused.
	player.sendMsg(t, proto.InboundTypeJoinMap, proto.JoinMapData{MapID: mapID})
	env := player.expect(t, proto.OutboundTypeError)
	if env.Error == nil || env.Error.Message != core.MsgRoomRequired {
		t.Fatalf("expected %q, got %+v", core.MsgRoomRequired, env.Error)
	}

	gm.sendMsg(t, proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomID: roomID})
	var joinedRoom proto.JoinedRoomData
	if err := json.Unmarshal(gm.expect(t, proto.OutboundTypeJoinedRoom).Data, &joinedRoom); err != nil {
		t.Fatalf("decode joinedRoom: %v", err)
	}
	if joinedRoom.RoomID != roomID {
		t.Fatalf("expected room %s, got %s", roomID, joinedRoom.RoomID)
	}

	gm.sendMsg(t, proto.InboundTypeJoinMap, proto.JoinMapData{MapID: mapID})
	var joinedMap proto.JoinedMapData
	if err := json.Unmarshal(gm.expect(t, proto.OutboundTypeJoinedMap).Data, &joinedMap); err != nil {
		t.Fatalf("decode joinedMap: %v", err)
	}
	if joinedMap.Map.ID != mapID || joinedMap.Map.Name != "Dungeon" {
		t.Fatalf("unexpected map snapshot: %+v", joinedMap.Map)
	}
	if len(joinedMap.Tokens) != 1 || joinedMap.Tokens[0].ID != tokenID {
		t.Fatalf("unexpected token list: %+v", joinedMap.Tokens)
	}

	player.sendMsg(t, proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomID: roomID})
	player.expect(t, proto.OutboundTypeJoinedRoom)
	player.sendMsg(t, proto.InboundTypeJoinMap, proto.JoinMapData{MapID: mapID})
	player.expect(t, proto.OutboundTypeJoinedMap)

	// A token move is broadcast to everyone on the map.
	gm.sendMsg(t, proto.InboundTypeMoveToken, proto.MoveTokenData{TokenID: tokenID, X: 5, Y: 7})
	for _, session := range []*wsSession{gm, player} {
		var moved proto.TokenPayload
		if err := json.Unmarshal(session.expect(t, proto.OutboundTypeTokenUpdated).Data, &moved); err != nil {
			t.Fatalf("decode token:updated: %v", err)
		}
		if moved.ID != tokenID || moved.X != 5 || moved.Y != 7 {
			t.Fatalf("unexpected moved token: %+v", moved)
		}
	}

	// Same for a partial map update. The applied fields arrive flat in the
	// data object, next to mapId.
	gm.sendMsg(t, proto.InboundTypeUpdateMap, proto.UpdateMapData{MapID: mapID, Updates: map[string]any{"name": "Crypt"}})
	for _, session := range []*wsSession{gm, player} {
		var updated map[string]any
		if err := json.Unmarshal(session.expect(t, proto.OutboundTypeMapUpdated).Data, &updated); err != nil {
			t.Fatalf("decode mapUpdated: %v", err)
		}
		if updated["mapId"] != mapID || updated["name"] != "Crypt" {
			t.Fatalf("unexpected map update: %+v", updated)
		}
		if _, nested := updated["updates"]; nested {
			t.Fatal("update fields must not be nested under an updates key")
		}
	}
}
