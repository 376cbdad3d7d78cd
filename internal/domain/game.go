package domain

import (
	"errors"
	"fmt"
)

// Cell represents a board cell state.
type Cell uint8

const (
	Empty Cell = iota
	X
	O
)

// Size is the number of cells on a board.
const Size = 9

// ErrOutOfBounds is returned for cell indexes outside 0..8.
var ErrOutOfBounds = errors.New("out of bounds")

func (c Cell) String() string {
	switch c {
	case X:
		return "X"
	case O:
		return "O"
	default:
		return ""
	}
}

// MarshalText encodes a cell as "", "X" or "O".
func (c Cell) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes the output of MarshalText.
func (c *Cell) UnmarshalText(b []byte) error {
	switch string(b) {
	case "":
		*c = Empty
	case "X":
		*c = X
	case "O":
		*c = O
	default:
		return fmt.Errorf("unknown cell %q", string(b))
	}
	return nil
}

// TurnFor returns the symbol that moves after the given number of moves.
func TurnFor(move int) Cell {
	if move%2 == 0 {
		return X
	}
	return O
}

// Board is a fixed 3x3 board stored row-major. It is a value type: Place
// returns a new board and leaves the receiver alone.
type Board [Size]Cell

// ValidIndex reports whether i addresses a cell.
func ValidIndex(i int) bool {
	return i >= 0 && i < Size
}

// Place returns a copy of b with cell i set to c.
func (b Board) Place(i int, c Cell) (Board, error) {
	if !ValidIndex(i) {
		return b, ErrOutOfBounds
	}
	b[i] = c
	return b, nil
}

// Filled counts non-empty cells.
func (b Board) Filled() int {
	n := 0
	for _, c := range b {
		if c != Empty {
			n++
		}
	}
	return n
}
