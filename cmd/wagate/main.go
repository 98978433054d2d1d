package main

import (
	"os"

	"wagate/cmd/wagate/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
