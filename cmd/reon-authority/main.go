// Command reon-authority is the central authority server for online
// access validation.
//
// Controllers running the online strategy forward access requests
// here; the authority answers from its own credential database using
// the same validation rules a controller applies offline.
//
// Usage:
//
//	reon-authority [flags]
//
// Flags:
//
//	-address string  Listen address (default ":7031")
//	-db string       Credential database path (default "authority.db")
//
// Example:
//
//	reon-authority -address :7031 -db /var/lib/reon/authority.db
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/reon-protocol/reon-go/internal/db"
	"github.com/reon-protocol/reon-go/pkg/authority"
	reonlog "github.com/reon-protocol/reon-go/pkg/log"
	"github.com/reon-protocol/reon-go/pkg/store"
	"github.com/reon-protocol/reon-go/pkg/validation"
)

var (
	address = flag.String("address", fmt.Sprintf(":%d", authority.DefaultPort), "Listen address")
	dbPath  = flag.String("db", "authority.db", "Credential database path")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	log.Println("REON Authority Server")
	log.Printf("Listen address: %s", *address)
	log.Printf("Database: %s", *dbPath)

	gormDB, err := db.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	logger := reonlog.NewSlogAdapter(slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: slog.LevelInfo})))

	server, err := authority.NewServer(authority.ServerConfig{
		Address:   *address,
		Validator: validation.NewOfflineValidator(store.NewGormStore(gormDB)),
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := server.Start(ctx); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("Listening on %s", server.Addr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received signal: %v", sig)

	log.Println("Shutting down...")
	if err := server.Stop(); err != nil {
		log.Printf("Error stopping server: %v", err)
	}
}
