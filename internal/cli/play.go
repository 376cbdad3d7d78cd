package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jaminalder/tic-tac-toe-history/internal/app"
)

const playHelp = `commands:
  N | click N   play cell N (0-8, row by row)
  jump N        go to move N
  toggle        reverse the move list
  quit          leave`

func newPlayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Play in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return play(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// play runs one terminal game until quit or end of input.
func play(in io.Reader, out io.Writer) error {
	c := app.NewController()
	writeView(out, c.View())
	fmt.Fprintln(out, playHelp)

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		quit, err := runCommand(c, sc.Text())
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		if quit {
			return nil
		}
		writeView(out, c.View())
	}
}

var errUnknownCommand = errors.New("unknown command, type help")

// runCommand applies one input line to the controller.
func runCommand(c *app.Controller, line string) (quit bool, err error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return false, nil
	}
	arg := func() (int, error) {
		if len(fields) != 2 {
			return 0, fmt.Errorf("%s needs a number", fields[0])
		}
		return strconv.Atoi(fields[1])
	}
	switch fields[0] {
	case "q", "quit", "exit":
		return true, nil
	case "h", "help":
		return false, errors.New(playHelp)
	case "t", "toggle":
		c.ToggleOrder()
		return false, nil
	case "j", "jump":
		n, err := arg()
		if err != nil {
			return false, err
		}
		return false, c.JumpTo(n)
	case "c", "click":
		n, err := arg()
		if err != nil {
			return false, err
		}
		c.Click(n)
		return false, nil
	}
	if n, err := strconv.Atoi(fields[0]); err == nil && len(fields) == 1 {
		c.Click(n)
		return false, nil
	}
	return false, errUnknownCommand
}

// writeView prints the board, status and move list. Empty cells show their
// index; winning cells are bracketed.
func writeView(out io.Writer, v app.GameView) {
	fmt.Fprintln(out)
	for r, row := range v.Board.Rows() {
		if r > 0 {
			fmt.Fprintln(out, "---+---+---")
		}
		cells := make([]string, 0, len(row))
		for _, sq := range row {
			label := sq.Value.String()
			if label == "" {
				label = strconv.Itoa(sq.Index)
			}
			if sq.Winning {
				cells = append(cells, "["+label+"]")
			} else {
				cells = append(cells, " "+label+" ")
			}
		}
		fmt.Fprintln(out, strings.Join(cells, "|"))
	}
	fmt.Fprintln(out, v.Board.Status)
	for _, m := range v.Moves {
		marker := " "
		if !m.Link {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %d. %s\n", marker, m.Move, m.Label)
	}
}
