package app

import (
	"github.com/jaminalder/tic-tac-toe-history/internal/domain"
)

// Square is one rendered cell.
type Square struct {
	Index   int
	Value   domain.Cell
	Winning bool
}

// BoardView is everything needed to draw a board: status line and cells.
type BoardView struct {
	Status  string
	State   domain.Status
	Result  domain.WinResult
	Squares [domain.Size]Square
}

// Rows splits the squares into the 3x3 grid.
func (v BoardView) Rows() [][]Square {
	rows := make([][]Square, 0, 3)
	for r := 0; r < 3; r++ {
		rows = append(rows, v.Squares[r*3:r*3+3])
	}
	return rows
}

func turnSymbol(xIsNext bool) domain.Cell {
	if xIsNext {
		return domain.X
	}
	return domain.O
}

// RenderBoard computes the view of a snapshot. It has no side effects.
func RenderBoard(squares domain.Board, xIsNext bool) BoardView {
	res := domain.EvaluateWinner(squares)
	v := BoardView{Result: res}
	switch {
	case res.HasWinner():
		v.State = domain.Won
		v.Status = "Winner: " + res.Winner.String()
	case domain.IsDraw(squares):
		v.State = domain.Drawn
		v.Status = "Draw!"
	default:
		v.State = domain.InProgress
		v.Status = "Next player: " + turnSymbol(xIsNext).String()
	}
	for i, c := range squares {
		v.Squares[i] = Square{Index: i, Value: c, Winning: res.Contains(i)}
	}
	return v
}

// HandleClick builds the board that follows a click on cell i and hands it
// to onPlay. Clicks on taken cells or on a won board are ignored.
func HandleClick(squares domain.Board, xIsNext bool, i int, onPlay func(domain.Board)) {
	if !domain.ValidIndex(i) {
		return
	}
	// winner is checked again here even though RenderBoard already knows it
	if squares[i] != domain.Empty || domain.EvaluateWinner(squares).HasWinner() {
		return
	}
	next, err := squares.Place(i, turnSymbol(xIsNext))
	if err != nil {
		return
	}
	onPlay(next)
}
