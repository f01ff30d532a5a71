package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"truledgr/backend/internal/config"
	"truledgr/backend/internal/db"
	"truledgr/backend/internal/ratelimit"
	"truledgr/backend/internal/security"
	"truledgr/backend/internal/server"
	"truledgr/backend/internal/telemetry"
	telemetryotel "truledgr/backend/internal/telemetry/otel"
)

const serviceName = "truledgr-backend"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()
	bunDB, err := db.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close(bunDB)

	if cfg.DBAutoMigrate {
		if err := db.EnsureSchema(ctx, bunDB); err != nil {
			log.Fatalf("schema: %v", err)
		}
		logger.Info("database schema ensured")
	}

	secret := cfg.JWTSecretKey
	if secret == "" && cfg.JWTPrivateKey == "" && cfg.JWTPublicKey == "" {
		// Only reachable outside production; tokens do not survive a restart.
		if secret, err = security.NewOpaqueToken(); err != nil {
			log.Fatalf("jwt: %v", err)
		}
		logger.Warn("JWT_SECRET_KEY is not set; using an ephemeral development key")
	}
	codec, err := security.LoadCodec(secret, cfg.JWTPrivateKey, cfg.JWTPublicKey, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		log.Fatalf("jwt: %v", err)
	}

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Settings{
		Endpoint:       cfg.OTLPEndpoint,
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.Env,
		Insecure:       cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	metrics, err := telemetryotel.NewAuthMetrics(providers.MeterProvider)
	if err != nil {
		log.Fatalf("telemetry metrics: %v", err)
	}

	components := server.Components{
		DB:      bunDB,
		Hasher:  security.NewHasher(cfg.BcryptCost),
		Codec:   codec,
		TTLs:    cfg.ServiceConfig(),
		Metrics: metrics,
		Emitter: telemetryotel.NewEventEmitter(providers.LoggerProvider),
		Logger:  logger,
	}
	if cfg.RedisURL != "" {
		client, err := ratelimit.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer client.Close()
		components.Limiter = ratelimit.NewLoginLimiter(client, cfg.LoginMaxAttempts, cfg.LoginCooldown())
		logger.Info("login throttling enabled", "max_attempts", cfg.LoginMaxAttempts, "cooldown", cfg.LoginCooldown())
	}

	app := server.NewApp(components)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	// Let in-flight async audit emits finish before the log exporter goes away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown", "error", err)
	}
	logger.Info("HTTP server stopped")
}
