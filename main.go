package main

import (
	"os"

	"github.com/bryan-buckman/feedrewrite/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
