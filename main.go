package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/serif/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "serif: %v\n", err)
		os.Exit(1)
	}
}
