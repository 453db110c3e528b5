package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nugget/internal/config"
	"nugget/internal/di"
	serverhttp "nugget/internal/server/http"
	"nugget/internal/shared/logging"
)

// shutdownWait bounds graceful shutdown after SIGINT/SIGTERM.
const shutdownWait = 10 * time.Second

func main() {
	logger := logging.NewComponentLogger("main")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger.Info("starting nugget server mode=%s port=%d store=%s", cfg.Mode, cfg.Server.Port, cfg.Store.Backend)

	container, err := di.BuildContainer(cfg)
	if err != nil {
		log.Fatalf("build container: %v", err)
	}

	srv := serverhttp.NewServer(container.Chat, serverhttp.Config{
		Port:        cfg.Server.Port,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, container.Logger)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()
	logger.Info("listening on :%d", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	logger.Info("server stopped")
}
