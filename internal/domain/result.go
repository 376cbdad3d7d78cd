package domain

// Line is one row, column or diagonal.
type Line [3]int

// Lines in the order they are checked: rows, columns, then the main and
// anti diagonals.
var Lines = [8]Line{
	// rows
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	// cols
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	// diags
	{0, 4, 8}, {2, 4, 6},
}

// WinResult is the outcome of EvaluateWinner. The zero value means no winner.
type WinResult struct {
	Winner Cell
	Line   Line
}

// HasWinner reports whether a line was completed.
func (w WinResult) HasWinner() bool {
	return w.Winner != Empty
}

// Contains reports whether cell i is part of the winning line.
func (w WinResult) Contains(i int) bool {
	if !w.HasWinner() {
		return false
	}
	for _, idx := range w.Line {
		if idx == i {
			return true
		}
	}
	return false
}

// EvaluateWinner returns the first completed line in Lines order.
func EvaluateWinner(b Board) WinResult {
	for _, ln := range Lines {
		a := b[ln[0]]
		if a != Empty && a == b[ln[1]] && a == b[ln[2]] {
			return WinResult{Winner: a, Line: ln}
		}
	}
	return WinResult{}
}

// IsDraw reports whether every cell is taken. It does not look for a
// winner; a full board with a completed line is a win.
func IsDraw(b Board) bool {
	return b.Filled() == Size
}

// Status is the state of a single game position.
type Status uint8

const (
	InProgress Status = iota
	Won
	Drawn
)

func (s Status) String() string {
	switch s {
	case Won:
		return "won"
	case Drawn:
		return "drawn"
	default:
		return "in-progress"
	}
}

// StatusOf classifies a board. Wins take precedence over draws.
func StatusOf(b Board) Status {
	if EvaluateWinner(b).HasWinner() {
		return Won
	}
	if IsDraw(b) {
		return Drawn
	}
	return InProgress
}
