// Package main runs the arcade game server: the REST API, the websocket
// update stream and the invitation expiry job.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arcade/cmd/arcade-server/cli"
	"arcade/internal/server/config"
	"arcade/internal/server/http"
	"arcade/internal/server/processor"
	"arcade/internal/server/realtime"
	"arcade/internal/server/service"
	"arcade/internal/server/storage"
	"arcade/internal/server/storage/pgstore"
	"arcade/internal/server/stream"
	"arcade/internal/server/telemetry"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
	devSecret               = "dev-secret-minimum-32-characters-long"
)

func main() {
	// Check for CLI database commands
	if len(os.Args) > 1 && os.Args[1] == "db" {
		if err := cli.Run(os.Args[2:]); err != nil {
			log.Fatalf("CLI error: %v", err)
		}
		os.Exit(0)
	}

	envFile := ".env"
	if v := os.Getenv("ARCADE_ENV_FILE"); v != "" {
		envFile = v
	}
	cfg, err := config.Load(envFile)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Flags override the environment
	flag.StringVar(&cfg.APIHost, "api-host", cfg.APIHost, "API server host")
	flag.IntVar(&cfg.APIPort, "api-port", cfg.APIPort, "API server port")
	flag.IntVar(&cfg.WSPort, "ws-port", cfg.WSPort, "Websocket stream port (0 disables)")
	flag.BoolVar(&cfg.DevMode, "dev", cfg.DevMode, "Development mode (relaxed rate limits, fixed JWT secret)")
	flag.StringVar(&cfg.StoragePath, "storage-path", cfg.StoragePath, "Path to SQLite database file")
	flag.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "Postgres DSN (takes precedence over -storage-path)")
	flag.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "Redis URL for cross-instance change fan-out")
	flag.DurationVar(&cfg.InviteTTL, "invite-ttl", cfg.InviteTTL, "Expire pending invitations after this long (0 disables)")
	pidPath := flag.String("pid", "", "Optional path to write PID file")
	pidLock := flag.Bool("pid-lock", false, "Lock PID file to allow only one instance (requires -pid)")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if *pidLock && *pidPath == "" {
		log.Fatal("Error: -pid-lock flag requires the -pid flag to be set")
	}
	if *pidPath != "" {
		release, err := writePIDFile(*pidPath, *pidLock)
		if err != nil {
			log.Fatalf("Failed to manage PID file: %v", err)
		}
		defer release()
		log.Printf("PID file created at: %s (lock: %v)", *pidPath, *pidLock)
	}

	ctx := context.Background()

	otlpEndpoint := ""
	if cfg.TracingEnabled() {
		otlpEndpoint = cfg.OTelEndpoint
	}
	shutdownTracing, err := telemetry.Setup(ctx, "arcade-server", otlpEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	// 1. Storage
	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// 2. Change channel
	var channel realtime.Channel
	if cfg.RedisURL != "" {
		channel, err = realtime.NewRedisChannel(ctx, cfg.RedisURL)
		if err != nil {
			store.Close()
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		log.Printf("Realtime: redis (%s)", cfg.RedisURL)
	} else {
		channel = realtime.NewHub()
		log.Printf("Realtime: in-process hub (single instance)")
	}

	// 3. Service, processor and API
	svc, err := service.New(store, channel, cfg.Service())
	if err != nil {
		channel.Close()
		store.Close()
		log.Fatalf("Failed to initialize service: %v", err)
	}

	secret, err := jwtSecret(cfg)
	if err != nil {
		svc.Shutdown(gracefulShutdownTimeout)
		log.Fatalf("Failed to set up JWT secret: %v", err)
	}
	validate := http.HS256Validator(secret)

	proc := processor.New(svc)
	app := http.NewFiberApp(proc, svc, validate, http.Options{
		DevMode:   cfg.DevMode,
		RateLimit: cfg.RateLimit,
	})

	apiAddr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	go func() {
		log.Printf("Arcade API Server starting...")
		log.Printf("API Listening on: http://%s", apiAddr)
		log.Printf("Storage: %s", cfg.StoreKind())
		if cfg.InviteTTL > 0 {
			log.Printf("Invitations expire after %s", cfg.InviteTTL)
		}
		log.Printf("API Endpoints: http://%s/api/v1/games", apiAddr)
		log.Printf("Health: http://%s/health", apiAddr)

		if err := app.Listen(apiAddr); err != nil {
			log.Printf("API server listen error: %v", err)
		}
	}()

	// 4. Websocket stream (optional)
	var wsServer *nethttp.Server
	var streamer *stream.Server
	if cfg.WSPort != 0 {
		streamer = stream.NewServer(svc.Channel(), svc, stream.Config{Validate: validate})
		mux := nethttp.NewServeMux()
		mux.Handle("/ws", streamer)

		wsAddr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.WSPort)
		wsServer = &nethttp.Server{
			Addr:              wsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Printf("Stream Listening on: ws://%s/ws", wsAddr)
			if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
				log.Printf("Stream server error: %v", err)
			}
		}()
	}

	// Wait for an interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down servers...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Streams hold channel subscriptions, so they go before the service
	if streamer != nil {
		if err := streamer.Close(gracefulShutdownTimeout); err != nil {
			log.Printf("Stream close error: %v", err)
		}
		if err := wsServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Stream server forced to shutdown: %v", err)
		}
	}

	if err := svc.Shutdown(gracefulShutdownTimeout); err != nil {
		log.Printf("Service shutdown error: %v", err)
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("Tracing shutdown error: %v", err)
	}

	log.Println("Servers exited")
}

func openStore(cfg *config.Config) (storage.GameStore, error) {
	switch cfg.StoreKind() {
	case config.StorePostgres:
		log.Printf("Initializing postgres storage")
		return pgstore.Open(cfg.DatabaseURL)
	case config.StoreSQLite:
		log.Printf("Initializing persistent storage at: %s", cfg.StoragePath)
		store, err := storage.NewStore(cfg.StoragePath, cfg.DevMode)
		if err != nil {
			return nil, err
		}
		if err := store.InitDB(); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
		return store, nil
	default:
		log.Printf("Persistent storage disabled, games live in memory (use -storage-path or -database-url)")
		return storage.NewMemoryStore(), nil
	}
}

// jwtSecret returns the configured secret, a fixed one in dev mode, or a
// random one that invalidates tokens on restart
func jwtSecret(cfg *config.Config) ([]byte, error) {
	switch {
	case cfg.JWTSecret != "":
		return []byte(cfg.JWTSecret), nil
	case cfg.DevMode:
		log.Printf("Using fixed JWT secret (dev mode)")
		return []byte(devSecret), nil
	default:
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
		log.Printf("JWT secret generated (tokens valid until restart)")
		return secret, nil
	}
}
