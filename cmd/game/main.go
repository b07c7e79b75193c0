// Package main starts the game service process lifecycle.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	gamecmd "github.com/balazsbme/futurehuman/internal/cmd/game"
)

func main() {
	log.SetPrefix("[GAME] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := gamecmd.Main(ctx, os.Args[1:]); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
