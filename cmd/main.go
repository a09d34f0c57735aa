package main

import (
	"os"

	"luahost/cmd/commands"
)

func main() {
	cli := commands.NewRootCmd()

	err := cli.Execute()
	if err != nil {
		os.Exit(1)
	}
}
