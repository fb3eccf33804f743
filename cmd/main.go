package main

import (
	"os"

	"warp-quiz-server/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
