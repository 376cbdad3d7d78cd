package main

import "github.com/jaminalder/tic-tac-toe-history/internal/cli"

func main() {
	cli.Execute()
}
