package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/HerbHall/lockboxctl/internal/dispatch"
)

func main() {
	cmd := newRootCommand()
	err := cmd.Execute()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(dispatch.ExitCode(err))
}
