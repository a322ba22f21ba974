package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"tiendatec/internal/app"
	"tiendatec/internal/config"
	"tiendatec/internal/services"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// --- Initialize database, services and routes ---
	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return application.Listen()
	})

	g.Go(func() error {
		return application.Scheduler.Run(ctx)
	})

	// Stock alerts are derived from the catalog events the service publishes.
	if mq := application.Events(); mq != nil {
		alerts := services.NewStockAlerts()
		g.Go(func() error {
			log.Println("Starting RabbitMQ consumer for catalog events...")
			return mq.Consume(ctx, alerts.HandleEvent)
		})
	}

	// Wait for interrupt signal (or a failed component) to shut down the server
	g.Go(func() error {
		<-ctx.Done()
		log.Println("Shutting down server...")
		return application.Fiber.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Errorf("Server stopped with error: %v", err)
		application.Close()
		os.Exit(1)
	}
	log.Println("Server gracefully stopped")
}
