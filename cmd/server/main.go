// cmd/server is the crashcore process entrypoint: build the wired
// FiberServer, start the round engine and hub, serve HTTP/WebSocket,
// and shut down cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crashcore/internal/server"
)

func main() {
	srv := server.New()
	srv.Start()

	go func() {
		if err := srv.Listen(":" + srv.Port()); err != nil {
			log.Printf("server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Println("shutting down")
	srv.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
}
