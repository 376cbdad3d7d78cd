package app

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/jaminalder/tic-tac-toe-history/internal/domain"
)

// Errors returned by the controller.
var (
	ErrMoveOutOfRange = errors.New("move out of range")
	ErrCorruptHistory = errors.New("corrupt history")
)

// Controller owns the move history of one game, the move currently shown
// and the order the move list is listed in. State only changes through
// SubmitMove, JumpTo and ToggleOrder.
type Controller struct {
	history   []domain.Board
	current   int
	ascending bool
}

// NewController starts a game at the empty board.
func NewController() *Controller {
	return &Controller{history: []domain.Board{{}}, ascending: true}
}

// RestoreController rebuilds a controller from stored state after checking
// that the history could have been produced by play.
func RestoreController(history []domain.Board, current int, ascending bool) (*Controller, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: empty history", ErrCorruptHistory)
	}
	if history[0] != (domain.Board{}) {
		return nil, fmt.Errorf("%w: move 0 is not the empty board", ErrCorruptHistory)
	}
	for k := 1; k < len(history); k++ {
		if err := checkStep(history[k-1], history[k], domain.TurnFor(k-1)); err != nil {
			return nil, fmt.Errorf("%w: move %d: %v", ErrCorruptHistory, k, err)
		}
	}
	if current < 0 || current >= len(history) {
		return nil, fmt.Errorf("%w: current move %d of %d", ErrCorruptHistory, current, len(history))
	}
	h := make([]domain.Board, len(history))
	copy(h, history)
	return &Controller{history: h, current: current, ascending: ascending}, nil
}

func checkStep(prev, next domain.Board, turn domain.Cell) error {
	if domain.EvaluateWinner(prev).HasWinner() {
		return errors.New("move after a win")
	}
	changed := 0
	for i := range prev {
		if prev[i] == next[i] {
			continue
		}
		if prev[i] != domain.Empty || next[i] != turn {
			return fmt.Errorf("cell %d: %q to %q", i, prev[i], next[i])
		}
		changed++
	}
	if changed != 1 {
		return fmt.Errorf("%d cells changed", changed)
	}
	return nil
}

// SubmitMove drops any moves after the current one, appends next and makes
// it current.
func (c *Controller) SubmitMove(next domain.Board) {
	c.history = append(c.history[:c.current+1:c.current+1], next)
	c.current = len(c.history) - 1
}

// JumpTo shows an earlier (or later) move.
func (c *Controller) JumpTo(move int) error {
	if move < 0 || move >= len(c.history) {
		return fmt.Errorf("%w: %d", ErrMoveOutOfRange, move)
	}
	c.current = move
	return nil
}

// ToggleOrder flips the move list between ascending and descending.
func (c *Controller) ToggleOrder() {
	c.ascending = !c.ascending
}

// Click plays cell i for the side to move. It reports whether a move was
// made; clicks on taken cells or finished games do nothing.
func (c *Controller) Click(i int) bool {
	played := false
	HandleClick(c.Current(), c.XIsNext(), i, func(next domain.Board) {
		c.SubmitMove(next)
		played = true
	})
	return played
}

// XIsNext reports whether X moves from the current position.
func (c *Controller) XIsNext() bool { return c.current%2 == 0 }

// Current returns the board being shown.
func (c *Controller) Current() domain.Board { return c.history[c.current] }

// CurrentMove returns the history index being shown.
func (c *Controller) CurrentMove() int { return c.current }

// Ascending reports the move list order.
func (c *Controller) Ascending() bool { return c.ascending }

// History returns a copy of every snapshot, oldest first.
func (c *Controller) History() []domain.Board {
	out := make([]domain.Board, len(c.history))
	copy(out, c.history)
	return out
}

// MoveEntry is one line of the move list. Link is false for the entry
// describing the move currently shown.
type MoveEntry struct {
	Move  int
	Label string
	Link  bool
}

// GameView is the full rendered state of a game.
type GameView struct {
	Board       BoardView
	Moves       []MoveEntry
	CurrentMove int
	Ascending   bool
}

// View computes what to show for the current state.
func (c *Controller) View() GameView {
	moves := make([]MoveEntry, 0, len(c.history))
	for move := range c.history {
		e := MoveEntry{Move: move, Link: true}
		switch {
		case move > 0 && move == c.current:
			e.Label = "you are at move #" + strconv.Itoa(move)
			e.Link = false
		case move > 0:
			e.Label = "Go to move #" + strconv.Itoa(move)
		default:
			e.Label = "Go to game start"
		}
		moves = append(moves, e)
	}
	if !c.ascending {
		for i, j := 0, len(moves)-1; i < j; i, j = i+1, j-1 {
			moves[i], moves[j] = moves[j], moves[i]
		}
	}
	return GameView{
		Board:       RenderBoard(c.Current(), c.XIsNext()),
		Moves:       moves,
		CurrentMove: c.current,
		Ascending:   c.ascending,
	}
}
