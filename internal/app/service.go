package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jaminalder/tic-tac-toe-history/internal/domain"
	"github.com/jaminalder/tic-tac-toe-history/internal/store"
)

// Errors exposed by the service layer.
var (
	ErrNotFound    = errors.New("game not found")
	ErrNotOwner    = errors.New("not the game owner")
	ErrInvalidCell = errors.New("invalid cell")
)

// GameState is one game session: who owns it and its controller.
type GameState struct {
	ID         string
	Owner      string
	Controller *Controller
	Created    time.Time
	Updated    time.Time
}

// View renders the controller's current state.
func (gs GameState) View() GameView { return gs.Controller.View() }

// subscriber channels are only closed with Service.mu held.
type subscriber struct {
	ch        chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.ch)
		close(s.done)
	})
}

// Service manages games in a store and fans out updates to subscribers.
type Service struct {
	mu     sync.Mutex
	store  store.Store
	log    *slog.Logger
	now    func() time.Time
	subs   map[string]map[*subscriber]struct{}
	render func(GameState) []byte
}

// NewService creates a service with a renderer that broadcasts nothing
// useful until SetRenderer is called.
func NewService(st store.Store, logger *slog.Logger) *Service {
	return NewServiceWithRenderer(st, logger, nil)
}

// NewServiceWithRenderer allows injecting a renderer for broadcast payloads.
func NewServiceWithRenderer(st store.Store, logger *slog.Logger, renderer func(GameState) []byte) *Service {
	if renderer == nil {
		renderer = func(GameState) []byte { return nil }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		log:    logger,
		now:    time.Now,
		subs:   make(map[string]map[*subscriber]struct{}),
		render: renderer,
	}
}

// SetRenderer replaces the broadcast renderer function.
func (s *Service) SetRenderer(renderer func(GameState) []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if renderer == nil {
		s.render = func(GameState) []byte { return nil }
		return
	}
	s.render = renderer
}

// CreateGame creates a game at the empty board owned by owner.
func (s *Service) CreateGame(ctx context.Context, owner string) (*GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	gs := &GameState{
		ID:         uuid.NewString(),
		Owner:      owner,
		Controller: NewController(),
		Created:    now,
		Updated:    now,
	}
	if err := s.store.SaveGame(ctx, toRecord(gs)); err != nil {
		return nil, fmt.Errorf("save game: %w", err)
	}
	s.log.Debug("game created", slog.String("game_id", gs.ID), slog.String("owner", owner))
	return gs, nil
}

// Get loads a game. The returned state is private to the caller.
func (s *Service) Get(ctx context.Context, id string) (*GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx, id)
}

// Play clicks cell for the owner. Clicks that the board ignores (taken
// cell, finished game) are not errors; the unchanged state is returned.
func (s *Service) Play(ctx context.Context, id, owner string, cell int) (*GameState, error) {
	if !domain.ValidIndex(cell) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCell, cell)
	}
	return s.mutate(ctx, id, owner, func(c *Controller) (bool, error) {
		return c.Click(cell), nil
	})
}

// Jump moves the owner's view to an earlier or later move.
func (s *Service) Jump(ctx context.Context, id, owner string, move int) (*GameState, error) {
	return s.mutate(ctx, id, owner, func(c *Controller) (bool, error) {
		if move == c.CurrentMove() {
			return false, nil
		}
		return true, c.JumpTo(move)
	})
}

// Toggle flips the move list order.
func (s *Service) Toggle(ctx context.Context, id, owner string) (*GameState, error) {
	return s.mutate(ctx, id, owner, func(c *Controller) (bool, error) {
		c.ToggleOrder()
		return true, nil
	})
}

// mutate loads, checks ownership, applies fn, saves and broadcasts when fn
// reports a change.
func (s *Service) mutate(ctx context.Context, id, owner string, fn func(*Controller) (bool, error)) (*GameState, error) {
	s.mu.Lock()
	gs, err := s.loadLocked(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if gs.Owner != owner {
		s.mu.Unlock()
		s.log.Debug("mutation rejected", slog.String("game_id", id), slog.String("reason", "not owner"))
		return gs, ErrNotOwner
	}
	changed, err := fn(gs.Controller)
	if err != nil {
		s.mu.Unlock()
		return gs, err
	}
	if !changed {
		s.mu.Unlock()
		return gs, nil
	}
	gs.Updated = s.now()
	if err := s.store.SaveGame(ctx, toRecord(gs)); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("save game: %w", err)
	}

	s.broadcastLocked(id, s.render(*gs))
	s.mu.Unlock()
	return gs, nil
}

// Delete removes the owner's game and disconnects its watchers.
func (s *Service) Delete(ctx context.Context, id, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.store.GetGame(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("load game %s: %w", id, err)
	}
	if rec.Owner != owner {
		return ErrNotOwner
	}
	if err := s.store.DeleteGame(ctx, id); err != nil {
		return fmt.Errorf("delete game %s: %w", id, err)
	}
	for sub := range s.subs[id] {
		sub.close()
	}
	delete(s.subs, id)
	s.log.Debug("game deleted", slog.String("game_id", id))
	return nil
}

// broadcastLocked hands payload to every subscriber of id. Sends never
// block: a subscriber whose buffer is still full is closed and dropped.
// Closing only happens with s.mu held, so a send cannot meet a closed channel.
func (s *Service) broadcastLocked(id string, payload []byte) {
	dropped := 0
	for sub := range s.subs[id] {
		select {
		case sub.ch <- payload:
		default:
			sub.close()
			delete(s.subs[id], sub)
			dropped++
		}
	}
	if len(s.subs[id]) == 0 {
		delete(s.subs, id)
	}
	if dropped > 0 {
		s.log.Debug("dropped slow subscribers", slog.String("game_id", id), slog.Int("count", dropped))
	}
}

// Subscribe registers a subscriber for a game. Returns a channel and an
// unsubscribe func; cancelling ctx unsubscribes too.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan []byte, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.subs[id]
	if set == nil {
		set = make(map[*subscriber]struct{})
		s.subs[id] = set
	}
	sub := &subscriber{ch: make(chan []byte, 1), done: make(chan struct{})}
	set[sub] = struct{}{}

	unsub := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if set, ok := s.subs[id]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(s.subs, id)
			}
		}
		sub.close()
	}
	go func() {
		select {
		case <-ctx.Done():
			unsub()
		case <-sub.done:
		}
	}()
	return sub.ch, unsub
}

func (s *Service) loadLocked(ctx context.Context, id string) (*GameState, error) {
	rec, err := s.store.GetGame(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load game %s: %w", id, err)
	}
	ctrl, err := RestoreController(rec.History, rec.Current, rec.Ascending)
	if err != nil {
		return nil, fmt.Errorf("load game %s: %w", id, err)
	}
	return &GameState{
		ID:         rec.ID,
		Owner:      rec.Owner,
		Controller: ctrl,
		Created:    rec.Created,
		Updated:    rec.Updated,
	}, nil
}

func toRecord(gs *GameState) *store.Game {
	return &store.Game{
		ID:        gs.ID,
		Owner:     gs.Owner,
		History:   gs.Controller.History(),
		Current:   gs.Controller.CurrentMove(),
		Ascending: gs.Controller.Ascending(),
		Created:   gs.Created,
		Updated:   gs.Updated,
	}
}
