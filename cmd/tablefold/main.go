package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/tablefold/tablefold/cmd/tablefold/commands"
	"github.com/tablefold/tablefold/cmd/tablefold/ui"
)

func main() {
	_ = godotenv.Load()

	if err := commands.Execute(); err != nil {
		ui.Error("%v", err)
		os.Exit(1)
	}
}
