package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/chatrouter/imessage-channel/internal/api"
	"github.com/chatrouter/imessage-channel/internal/conf"
	"github.com/chatrouter/imessage-channel/internal/data"
	"github.com/chatrouter/imessage-channel/internal/infra/applescript"
	"github.com/chatrouter/imessage-channel/internal/service"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := conf.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	// Durable router state, shared across restarts
	state, err := data.NewStateStore(cfg.Store.StateDBPath)
	if err != nil {
		sugar.Fatalw("failed to open state store", "path", cfg.Store.StateDBPath, "error", err)
	}
	defer state.Close()

	// Registry stands in for the router: registered chats receive messages
	registry := service.NewRegistry(sugar)
	for _, jid := range cfg.RegisteredChats {
		registry.Register(jid, jid)
	}

	dispatch := applescript.NewRunner(sugar)
	channel := service.NewChannel(cfg, state, dispatch, registry, data.OpenChatLog, sugar)

	if err := channel.Connect(context.Background()); err != nil {
		sugar.Fatalw("failed to connect channel", "error", err)
	}
	sugar.Infow("imessage channel started",
		"connected", channel.IsConnected(), "assistant", cfg.Assistant.Name)

	var apiServer *api.Server
	if cfg.API.Port > 0 {
		apiServer = api.NewServer(channel, registry, cfg.API.Port, sugar)
		go func() {
			if err := apiServer.Start(); err != nil {
				sugar.Errorw("control API stopped", "error", err)
			}
		}()
	}

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down...")
	channel.Disconnect()
	if apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := apiServer.Stop(shutdownCtx); err != nil {
			sugar.Warnw("control API shutdown failed", "error", err)
		}
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
