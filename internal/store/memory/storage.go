package memory

import (
	"context"
	"sync"

	"github.com/jaminalder/tic-tac-toe-history/internal/store"
)

// Storage keeps games in a map. Values are copied in and out so callers
// never share a slice with the store.
type Storage struct {
	mu    sync.RWMutex
	games map[string]*store.Game
}

// New creates an empty in-memory store.
func New() *Storage {
	return &Storage{games: make(map[string]*store.Game)}
}

var _ store.Store = (*Storage)(nil)

func (s *Storage) SaveGame(_ context.Context, game *store.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[game.ID] = game.Clone()
	return nil
}

func (s *Storage) GetGame(_ context.Context, id string) (*store.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return g.Clone(), nil
}

func (s *Storage) DeleteGame(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, id)
	return nil
}
