package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"weatherbot/cmd"
	"weatherbot/database"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			if err := handleMigrationCommand(); err != nil {
				log.Fatal("Migration error: ", err)
			}
			return
		case "admin":
			if err := cmd.Admin(context.Background(), os.Args[2:], os.Stdout); err != nil {
				log.Fatal("Admin error: ", err)
			}
			return
		}
	}

	// Normal bot operation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	if err := cmd.Run(ctx); err != nil {
		log.Fatal("Application error: ", err)
	}
}

// handleMigrationCommand reads the database URL straight from the
// environment so migrations run without the provider key or Discord token
func handleMigrationCommand() error {
	_ = godotenv.Load()
	databaseURL := database.ConstructDatabaseURL(os.Getenv("DATABASE_URL"), os.Getenv("DATABASE_NAME"))
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrations")
	}
	return database.RunCommand(databaseURL, os.Args[2:])
}
