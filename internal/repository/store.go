// Package repository persists users, pairs, photos, payment orders, shared sessions and memory games.
// Each store has a Postgres implementation on pgx and an in-memory one for local runs and tests.
package repository

import (
	"context"

	"love-sync-backend/internal/models"
)

// UserStore persists anonymous users
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByCode(ctx context.Context, code string) (*models.User, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	UpdatePushToken(ctx context.Context, userID string, pushToken *string) error
	SetPaid(ctx context.Context, paid bool, userIDs ...string) error
	ListPushTokens(ctx context.Context) ([]string, error)
}

// PairStore persists partner links
type PairStore interface {
	Create(ctx context.Context, pair *models.Pair) error
	GetByID(ctx context.Context, id string) (*models.Pair, error)
	GetByUserID(ctx context.Context, userID string) (*models.Pair, error)
	Delete(ctx context.Context, id string) error
	UserHasPair(ctx context.Context, userID string) (bool, error)
}

// PhotoStore persists couple memory images
type PhotoStore interface {
	Create(ctx context.Context, photo *models.Photo) error
	GetByID(ctx context.Context, id string) (*models.Photo, error)
	GetByPairID(ctx context.Context, pairID string, limit, offset int) ([]*models.Photo, int, error)
}

// OrderStore persists payment orders
type OrderStore interface {
	Create(ctx context.Context, order *models.PaymentOrder) error
	GetByID(ctx context.Context, id string) (*models.PaymentOrder, error)
	// MarkPaid flips a created order to paid. It reports false if the order was already paid.
	MarkPaid(ctx context.Context, id, paymentID string) (*models.PaymentOrder, bool, error)
}

// UpdateFunc mutates a session in place and reports whether anything changed.
// Returning false discards the mutation.
type UpdateFunc func(s *models.Session) (bool, error)

// SessionStore persists shared sessions. Update is an atomic read-modify-write: concurrent
// updates of the same id are serialized, so fn always sees the latest committed record.
type SessionStore interface {
	Create(ctx context.Context, s *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Update(ctx context.Context, id string, fn UpdateFunc) (*models.Session, bool, error)
}

// GameUpdateFunc mutates a memory game in place and reports whether anything changed
type GameUpdateFunc func(g *models.MemoryGame) (bool, error)

// GameStore persists memory games. Update serializes writers of one game like SessionStore does.
type GameStore interface {
	Create(ctx context.Context, g *models.MemoryGame) error
	Get(ctx context.Context, id string) (*models.MemoryGame, error)
	Update(ctx context.Context, id string, fn GameUpdateFunc) (*models.MemoryGame, bool, error)
}

var (
	_ UserStore    = (*UserRepository)(nil)
	_ PairStore    = (*PairRepository)(nil)
	_ PhotoStore   = (*PhotoRepository)(nil)
	_ OrderStore   = (*OrderRepository)(nil)
	_ SessionStore = (*SessionRepository)(nil)
	_ GameStore    = (*GameRepository)(nil)

	_ UserStore    = (*MemoryUserStore)(nil)
	_ PairStore    = (*MemoryPairStore)(nil)
	_ PhotoStore   = (*MemoryPhotoStore)(nil)
	_ OrderStore   = (*MemoryOrderStore)(nil)
	_ SessionStore = (*MemorySessionStore)(nil)
	_ GameStore    = (*MemoryGameStore)(nil)
)
