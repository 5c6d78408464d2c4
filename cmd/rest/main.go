package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"docchat-client/internal/bootstrap"
	"docchat-client/internal/config"
	"docchat-client/internal/server"
	"docchat-client/internal/tracer"
	"docchat-client/pkg/database"

	"gorm.io/gorm"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database (empty DSN runs on the in-memory store)
	var gormDB *gorm.DB
	if cfg.Database.Connection != "" {
		var err error
		gormDB, err = database.NewGormDBFromDSN(cfg.Database.Connection)
		if err != nil {
			log.Panicf("Unable to connect to GORM DB: %v", err)
		}
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg, bootstrap.Options{})
	defer container.Close()

	// Tracer before the server so otelfiber picks up the provider.
	shutdownTracer := tracer.InitTracer(cfg.Tracing, container.Logger)
	defer shutdownTracer(context.Background())

	// 4. Start Background Services
	if err := container.ConsumerService.Consume(context.Background()); err != nil {
		container.Logger.Error("Main", "Background consumer failed", map[string]interface{}{"error": err.Error()})
	}

	if cfg.Auth.AccessToken != "" {
		if _, err := container.IdentityService.SignIn(context.Background(), cfg.Auth.AccessToken); err != nil {
			container.Logger.Warn("Main", "Startup sign-in failed", map[string]interface{}{"error": err.Error()})
		}
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		if err := srv.Shutdown(); err != nil {
			container.Logger.Error("Main", "Shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	// 6. Run Server
	if err := srv.Run(); err != nil {
		container.Logger.Error("Main", "Server stopped", map[string]interface{}{"error": err.Error()})
	}
}
