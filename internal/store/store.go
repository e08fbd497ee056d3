package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// User represents a registered user.
type User struct {
	ID           string
	Email        string
	Nickname     string
	PasswordHash string
	CreatedAt    time.Time
}

// Room represents a collaborative session container.
type Room struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
}

// Participant represents room membership of a user.
type Participant struct {
	RoomID   string
	UserID   string
	JoinedAt time.Time
}

// Map represents a tabletop surface belonging to exactly one room.
type Map struct {
	ID            string
	RoomID        string
	Name          string
	Width         int
	Height        int
	BackgroundURL string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Token represents a placeable entity on a map.
type Token struct {
	ID        string
	MapID     string
	OwnerID   string
	Name      string
	X         float64
	Y         float64
	ImageURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, email, nickname, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// RoomStore handles room and participant persistence.
type RoomStore interface {
	// CreateRoom creates a new room owned by ownerID.
	// The owner is added as a participant in the same transaction.
	CreateRoom(ctx context.Context, name, ownerID string) (*Room, error)

	// GetRoomByID retrieves a room by ID.
	GetRoomByID(ctx context.Context, id string) (*Room, error)

	// ListRoomsForUser lists all rooms the user participates in.
	ListRoomsForUser(ctx context.Context, userID string) ([]*Room, error)

	// AddParticipant adds a user to a room. Idempotent.
	AddParticipant(ctx context.Context, roomID, userID string) error

	// RemoveParticipant removes a user from a room.
	RemoveParticipant(ctx context.Context, roomID, userID string) error

	// IsParticipant reports whether the user participates in the room.
	IsParticipant(ctx context.Context, roomID, userID string) (bool, error)

	// ListParticipants lists all participant user IDs of a room.
	ListParticipants(ctx context.Context, roomID string) ([]string, error)
}

// MapStore handles map persistence.
type MapStore interface {
	// CreateMap creates a new map inside a room.
	CreateMap(ctx context.Context, m *Map) (*Map, error)

	// GetMapByID retrieves a map by ID.
	GetMapByID(ctx context.Context, id string) (*Map, error)

	// ListMapsForRoom lists all maps belonging to a room.
	ListMapsForRoom(ctx context.Context, roomID string) ([]*Map, error)

	// UpdateMapFields applies a partial update and returns the updated map.
	// Recognized keys: name, width, height, backgroundUrl.
	UpdateMapFields(ctx context.Context, id string, updates map[string]any) (*Map, error)

	// DeleteMap removes a map and all tokens placed on it.
	DeleteMap(ctx context.Context, id string) error
}

// TokenStore handles token persistence.
type TokenStore interface {
	// CreateToken places a new token on a map.
	CreateToken(ctx context.Context, t *Token) (*Token, error)

	// GetTokenByID retrieves a token by ID.
	GetTokenByID(ctx context.Context, id string) (*Token, error)

	// ListTokensForMap lists all tokens placed on a map.
	ListTokensForMap(ctx context.Context, mapID string) ([]*Token, error)

	// UpdateTokenPosition moves a token to new coordinates.
	UpdateTokenPosition(ctx context.Context, id string, x, y float64) (*Token, error)

	// DeleteToken removes a token from its map.
	DeleteToken(ctx context.Context, id string) error
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	MapStore
	TokenStore

	// Close closes the underlying database connection.
	Close() error
}
