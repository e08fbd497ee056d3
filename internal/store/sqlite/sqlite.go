package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ppinggu9/trpg-server-sub001/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	nickname      TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	owner_id   TEXT NOT NULL REFERENCES users(id),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS room_participants (
	room_id   TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
	user_id   TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (room_id, user_id)
);

CREATE TABLE IF NOT EXISTS maps (
	id             TEXT PRIMARY KEY,
	room_id        TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
	name           TEXT NOT NULL,
	width          INTEGER NOT NULL DEFAULT 0,
	height         INTEGER NOT NULL DEFAULT 0,
	background_url TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tokens (
	id         TEXT PRIMARY KEY,
	map_id     TEXT NOT NULL REFERENCES maps(id) ON DELETE CASCADE,
	owner_id   TEXT NOT NULL REFERENCES users(id),
	name       TEXT NOT NULL,
	x          REAL NOT NULL DEFAULT 0,
	y          REAL NOT NULL DEFAULT 0,
	image_url  TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_maps_room ON maps(room_id);
CREATE INDEX IF NOT EXISTS idx_tokens_map ON tokens(map_id);
`

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file (":memory:" for tests).
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, email, nickname, passwordHash string) (*store.User, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO users (id, email, nickname, password_hash)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, id, email, nickname, passwordHash); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	query := `
		SELECT id, email, nickname, password_hash, created_at
		FROM users WHERE id = ?
	`
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	query := `
		SELECT id, email, nickname, password_hash, created_at
		FROM users WHERE email = ?
	`
	return scanUser(s.db.QueryRowContext(ctx, query, email))
}

func scanUser(row *sql.Row) (*store.User, error) {
	var u store.User
	err := row.Scan(&u.ID, &u.Email, &u.Nickname, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// ==== RoomStore implementation ====

// CreateRoom creates a new room and adds the owner as a participant.
func (s *SQLiteStore) CreateRoom(ctx context.Context, name, ownerID string) (*store.Room, error) {
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rooms (id, name, owner_id) VALUES (?, ?, ?)`, id, name, ownerID); err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO room_participants (room_id, user_id) VALUES (?, ?)`, id, ownerID); err != nil {
		return nil, fmt.Errorf("insert owner participant: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return s.GetRoomByID(ctx, id)
}

// GetRoomByID retrieves a room by ID.
func (s *SQLiteStore) GetRoomByID(ctx context.Context, id string) (*store.Room, error) {
	var r store.Room
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, owner_id, created_at FROM rooms WHERE id = ?`, id).
		Scan(&r.ID, &r.Name, &r.OwnerID, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan room: %w", err)
	}
	return &r, nil
}

// ListRoomsForUser lists all rooms the user participates in.
func (s *SQLiteStore) ListRoomsForUser(ctx context.Context, userID string) ([]*store.Room, error) {
	query := `
		SELECT r.id, r.name, r.owner_id, r.created_at
		FROM rooms r
		JOIN room_participants p ON p.room_id = r.id
		WHERE p.user_id = ?
		ORDER BY r.created_at
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*store.Room
	for rows.Next() {
		var r store.Room
		if err := rows.Scan(&r.ID, &r.Name, &r.OwnerID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, &r)
	}
	return rooms, rows.Err()
}

// AddParticipant adds a user to a room. Idempotent.
func (s *SQLiteStore) AddParticipant(ctx context.Context, roomID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO room_participants (room_id, user_id) VALUES (?, ?)`, roomID, userID)
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

// RemoveParticipant removes a user from a room.
func (s *SQLiteStore) RemoveParticipant(ctx context.Context, roomID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM room_participants WHERE room_id = ? AND user_id = ?`, roomID, userID)
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	return nil
}

// IsParticipant reports whether the user participates in the room.
func (s *SQLiteStore) IsParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM room_participants WHERE room_id = ? AND user_id = ?`, roomID, userID).
		Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query participant: %w", err)
	}
	return n > 0, nil
}

// ListParticipants lists all participant user IDs of a room.
func (s *SQLiteStore) ListParticipants(ctx context.Context, roomID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM room_participants WHERE room_id = ? ORDER BY joined_at`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// ==== MapStore implementation ====

// CreateMap creates a new map inside a room.
func (s *SQLiteStore) CreateMap(ctx context.Context, m *store.Map) (*store.Map, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO maps (id, room_id, name, width, height, background_url)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query, id, m.RoomID, m.Name, m.Width, m.Height, m.BackgroundURL)
	if err != nil {
		return nil, fmt.Errorf("insert map: %w", err)
	}
	return s.GetMapByID(ctx, id)
}

// GetMapByID retrieves a map by ID.
func (s *SQLiteStore) GetMapByID(ctx context.Context, id string) (*store.Map, error) {
	var m store.Map
	err := s.db.QueryRowContext(ctx, `
		SELECT id, room_id, name, width, height, background_url, created_at, updated_at
		FROM maps WHERE id = ?`, id).
		Scan(&m.ID, &m.RoomID, &m.Name, &m.Width, &m.Height, &m.BackgroundURL, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan map: %w", err)
	}
	return &m, nil
}

// ListMapsForRoom lists all maps belonging to a room.
func (s *SQLiteStore) ListMapsForRoom(ctx context.Context, roomID string) ([]*store.Map, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, name, width, height, background_url, created_at, updated_at
		FROM maps WHERE room_id = ? ORDER BY created_at`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query maps: %w", err)
	}
	defer rows.Close()

	var maps []*store.Map
	for rows.Next() {
		var m store.Map
		if err := rows.Scan(&m.ID, &m.RoomID, &m.Name, &m.Width, &m.Height, &m.BackgroundURL, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan map: %w", err)
		}
		maps = append(maps, &m)
	}
	return maps, rows.Err()
}

// mapColumns maps partial-update keys to their SQL columns.
var mapColumns = map[string]string{
	"name":          "name",
	"width":         "width",
	"height":        "height",
	"backgroundUrl": "background_url",
}

// UpdateMapFields applies a partial update and returns the updated map.
func (s *SQLiteStore) UpdateMapFields(ctx context.Context, id string, updates map[string]any) (*store.Map, error) {
	sets := make([]string, 0, len(updates)+1)
	args := make([]any, 0, len(updates)+1)
	for key, value := range updates {
		col, ok := mapColumns[key]
		if !ok {
			continue
		}
		sets = append(sets, col+" = ?")
		args = append(args, value)
	}
	if len(sets) == 0 {
		return s.GetMapByID(ctx, id)
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC())
	args = append(args, id)

	query := "UPDATE maps SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update map: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetMapByID(ctx, id)
}

// DeleteMap removes a map and all tokens placed on it.
func (s *SQLiteStore) DeleteMap(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM maps WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete map: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ==== TokenStore implementation ====

// CreateToken places a new token on a map.
func (s *SQLiteStore) CreateToken(ctx context.Context, t *store.Token) (*store.Token, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO tokens (id, map_id, owner_id, name, x, y, image_url)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query, id, t.MapID, t.OwnerID, t.Name, t.X, t.Y, t.ImageURL)
	if err != nil {
		return nil, fmt.Errorf("insert token: %w", err)
	}
	return s.GetTokenByID(ctx, id)
}

// GetTokenByID retrieves a token by ID.
func (s *SQLiteStore) GetTokenByID(ctx context.Context, id string) (*store.Token, error) {
	var t store.Token
	err := s.db.QueryRowContext(ctx, `
		SELECT id, map_id, owner_id, name, x, y, image_url, created_at, updated_at
		FROM tokens WHERE id = ?`, id).
		Scan(&t.ID, &t.MapID, &t.OwnerID, &t.Name, &t.X, &t.Y, &t.ImageURL, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan token: %w", err)
	}
	return &t, nil
}

// ListTokensForMap lists all tokens placed on a map.
func (s *SQLiteStore) ListTokensForMap(ctx context.Context, mapID string) ([]*store.Token, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, map_id, owner_id, name, x, y, image_url, created_at, updated_at
		FROM tokens WHERE map_id = ? ORDER BY created_at`, mapID)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	tokens := make([]*store.Token, 0)
	for rows.Next() {
		var t store.Token
		if err := rows.Scan(&t.ID, &t.MapID, &t.OwnerID, &t.Name, &t.X, &t.Y, &t.ImageURL, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, &t)
	}
	return tokens, rows.Err()
}

// UpdateTokenPosition moves a token to new coordinates.
func (s *SQLiteStore) UpdateTokenPosition(ctx context.Context, id string, x, y float64) (*store.Token, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tokens SET x = ?, y = ?, updated_at = ? WHERE id = ?`, x, y, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("update token position: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetTokenByID(ctx, id)
}

// DeleteToken removes a token from its map.
func (s *SQLiteStore) DeleteToken(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}
