// Package main starts an automated evaluation run.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	runnercmd "github.com/balazsbme/futurehuman/internal/cmd/runner"
)

func main() {
	log.SetPrefix("[RUNNER] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runnercmd.Main(ctx, os.Args[1:]); err != nil {
		log.Fatalf("failed to run: %v", err)
	}
}
