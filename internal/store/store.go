package store

import (
	"context"
	"errors"
	"time"

	"github.com/jaminalder/tic-tac-toe-history/internal/domain"
)

// ErrNotFound is returned when no game is stored under an id.
var ErrNotFound = errors.New("game not found")

// Game is the stored form of one game session.
type Game struct {
	ID        string         `json:"id"`
	Owner     string         `json:"owner"`
	History   []domain.Board `json:"history"`
	Current   int            `json:"current"`
	Ascending bool           `json:"ascending"`
	Created   time.Time      `json:"created"`
	Updated   time.Time      `json:"updated"`
}

// Clone returns a deep copy.
func (g *Game) Clone() *Game {
	cp := *g
	cp.History = append([]domain.Board(nil), g.History...)
	return &cp
}

// Store persists game sessions.
type Store interface {
	SaveGame(ctx context.Context, game *Game) error
	GetGame(ctx context.Context, id string) (*Game, error)
	DeleteGame(ctx context.Context, id string) error
}
