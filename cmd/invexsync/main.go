package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dummy-intern104/invex-ai/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
