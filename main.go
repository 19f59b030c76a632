package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/playmat/playmat/internal/config"
	"github.com/playmat/playmat/internal/game"
	"github.com/playmat/playmat/internal/handlers"
	"github.com/playmat/playmat/internal/historian"
	"github.com/playmat/playmat/internal/middleware"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	hist, err := historian.Connect(context.Background(), cfg.RedisAddr, cfg.RedisDB, cfg.HistorianQueue, logger)
	if err != nil {
		logger.Fatalf("failed to init historian: %v", err)
	}
	defer hist.Close()

	registry := game.NewRegistry(cfg.GracePeriod, logger, hist)
	gameServer := handlers.NewGameServer(registry, logger)

	mux := gameServer.Routes()

	server := &http.Server{
		Handler:     middleware.RequestLogger(logger)(mux),
		ReadTimeout: time.Second * 10,
		// No WriteTimeout: websocket sessions outlive any sane value.
	}

	l, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Fatalf("failed to listen: %v", err)
	}
	logger.Infof("listening on %s", l.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(l)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errc:
		logger.Errorf("failed to serve: %v", err)
	case sig := <-sigs:
		logger.Infof("terminating: %v", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("shutdown: %v", err)
	}
}
