package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/R3E-Network/worldserver/internal/config"
	"github.com/R3E-Network/worldserver/internal/gameserver"
	"github.com/R3E-Network/worldserver/internal/logging"
)

func main() {
	addr := flag.String("addr", "", "HTTP/websocket listen address (overrides HTTP_HOST/HTTP_PORT)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	log := logging.New("worldserver", cfg.Logging.Level, cfg.Logging.Format)

	listenAddr := cfg.Server.Addr()
	if trimmed := *addr; trimmed != "" {
		listenAddr = trimmed
	}

	app := gameserver.New(cfg, log)
	if err := app.Start(listenAddr); err != nil {
		log.WithField("error", err.Error()).Fatal("start worldserver")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.Stop(shutdownCtx); err != nil {
		log.WithField("error", err.Error()).Fatal("shutdown worldserver")
	}
}
