package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/strifelab/lobbyd/internal/config"
	"github.com/strifelab/lobbyd/internal/gateway"
	"github.com/strifelab/lobbyd/internal/logging"
	"github.com/strifelab/lobbyd/internal/ports"
	"github.com/strifelab/lobbyd/internal/room"
)

func main() {
	configPath := flag.String("config", "", "path to config file (empty = defaults + env)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logr.Sync()

	publicIP := cfg.Server.PublicIP
	if publicIP == "" {
		publicIP = config.LocalIP()
	}

	alloc := ports.New(cfg.Ports.Min, cfg.Ports.Max)
	bus := room.NewBus()
	reg := room.NewRegistry(alloc, bus, logr, room.ServerConfig{
		Executable:      cfg.GameServer.Executable,
		PublicIP:        publicIP,
		ForceReadyAfter: cfg.GameServer.ForceReadyAfter,
	})

	gw := gateway.New(logr, reg, bus)

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: gw.Router(),
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logr.Info("lobby server listening",
			zap.String("addr", cfg.Server.ListenAddr),
			zap.String("public_ip", publicIP))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server error", zap.Error(err))
		}
	}()

	<-done
	logr.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("shutdown error", zap.Error(err))
	}
}
