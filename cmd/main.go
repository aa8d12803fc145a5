/*
Package main is the entry point for the chat room server.

It is responsible for parsing command-line flags, loading configuration, initializing the
global logging system, setting up the HTTP server and the chat manager, optionally mirroring
room events to NATS, and gracefully handling operating system interrupt signals (SIGINT,
SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v3"

	"chatroom/internal/app/chat"
	"chatroom/internal/app/relay"
	"chatroom/internal/configs"
	"chatroom/internal/handler"
	"chatroom/internal/pkg/logx"
)

const (
	appName         = "chatroom"
	shutdownTimeout = 5 * time.Second
)

func main() {
	cmd := &cli.Command{
		Name:  appName,
		Usage: "single-room WebSocket chat server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "optional dotenv file loaded before the environment is read"},
			&cli.StringFlag{Name: "host", Usage: "listen host (overrides HOST)"},
			&cli.IntFlag{Name: "port", Usage: "listen port (overrides PORT)"},
			&cli.StringFlag{Name: "env", Usage: "running environment (overrides ENVIRONMENT)"},
			&cli.StringFlag{Name: "static-dir", Usage: "directory holding index.html, style.css and client.js (overrides STATIC_DIR)"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies command-line overrides.
func loadConfig(cmd *cli.Command) (*configs.AppConfig, error) {
	if err := configs.LoadEnvFile(cmd.String("env-file")); err != nil {
		return nil, err
	}

	cfg, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if cmd.IsSet("host") {
		cfg.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("env") {
		cfg.Environment = cmd.String("env")
	}
	if cmd.IsSet("static-dir") {
		cfg.StaticDir = cmd.String("static-dir")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Initialize global logger
	logx.InitGlobalLogger(logx.Options{
		Development: cfg.IsDevelopment(),
		Level:       cfg.LogLevel,
		FilePath:    cfg.LogFile,
		MaxSizeMB:   cfg.LogMaxSizeMB,
		MaxBackups:  cfg.LogMaxBackups,
		MaxAgeDays:  cfg.LogMaxAgeDays,
	})
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Str("addr", cfg.Addr()).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Int("hub_buffer_size", cfg.HubBufferSize).
		Dur("pong_wait", cfg.PongWait).
		Bool("relay", cfg.NatsURL != "").
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager := chat.NewManager(chat.ManagerConfig{
		HubBufferSize: cfg.HubBufferSize,
		Session: chat.SessionConfig{
			SendQueueSize:  cfg.SendQueueSize,
			MaxMessageSize: cfg.MaxMessageSize,
			PongWait:       cfg.PongWait,
			WriteWait:      chat.DefaultWriteWait,
		},
	})

	nc, relayDone := startRelay(cfg, manager.Hub())

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler.Router(&handler.AppDeps{Manager: manager, Config: cfg}),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logx.Info(fmt.Sprintf("Chat server starting on http://%s", cfg.Addr()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var startErr error
	select {
	case <-ctx.Done():
		logx.Info("Received shutdown signal. Starting graceful shutdown...")
	case startErr = <-serveErr:
		if startErr != nil {
			logx.Error(startErr, "Server failed to start")
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	// hijacked WebSocket connections are not tracked by the server, so sessions are stopped separately
	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	if err := manager.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Chat sessions did not stop in time")
	}

	if relayDone != nil {
		<-relayDone
		if err := nc.Drain(); err != nil {
			logx.Error(err, "Failed to drain NATS connection")
		}
	}

	logx.Info("Server gracefully stopped.")
	return startErr
}

// startRelay connects to NATS and mirrors hub events when a URL is configured.
// A failed connection is logged and the server runs without the relay.
func startRelay(cfg *configs.AppConfig, hub *chat.Hub) (*nats.Conn, <-chan struct{}) {
	if cfg.NatsURL == "" {
		return nil, nil
	}

	nc, err := relay.Connect(cfg.NatsURL, appName)
	if err != nil {
		logx.Error(err, "Error connecting to NATS")
		logx.Warn("Running without NATS connection. Event relay will be disabled.")
		return nil, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := relay.New(hub, nc, cfg.NatsSubject).Run(context.Background()); err != nil {
			logx.Error(err, "Event relay stopped unexpectedly")
		}
	}()

	return nc, done
}
