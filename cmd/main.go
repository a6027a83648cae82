package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotx/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	runner := NewRunner(RunnerOpts{
		Input:    os.Stdin,
		Output:   os.Stdout,
		EnvFiles: []string{".env"},
	})

	app := &cli.Command{
		Name:     "spotx",
		Usage:    "Download tracks and podcast episodes from links read on stdin",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
