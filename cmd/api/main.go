package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-otp-auth/internal/config"
	"github.com/go-otp-auth/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-otp-auth/internal/infrastructure/jwt"
	mongostore "github.com/go-otp-auth/internal/infrastructure/mongo"
	"github.com/go-otp-auth/internal/infrastructure/smtp"
	"github.com/go-otp-auth/internal/logger"
	transporthttp "github.com/go-otp-auth/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(logger.New(cfg.IsProduction(), cfg.LogLevel))
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}

	deps := &transporthttp.Deps{
		Mailer: smtp.NewMailer(cfg.SMTP),
	}
	closeStores, err := openStores(context.Background(), cfg, deps)
	if err != nil {
		slog.Error("store unavailable", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	defer closeStores()

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		slog.Error("jwt provider unavailable", "err", err)
		os.Exit(1)
	}
	deps.JWTProvider = jwtProvider

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("forced shutdown", "err", err)
	}
	slog.Info("server stopped")
}

// openStores connects the configured document store and fills in the
// repositories on deps. The returned func releases the connection.
func openStores(ctx context.Context, cfg *config.Config, deps *transporthttp.Deps) (func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, err := mongostore.Connect(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.Mongo.Database)
		otps := db.Collection(cfg.Mongo.OTPsCollection)
		if err := mongostore.EnsureIndexes(ctx, otps); err != nil {
			slog.Warn("could not ensure mongo indexes", "err", err)
		}
		deps.UserRepo = mongostore.NewUserRepo(db.Collection(cfg.Mongo.UsersCollection))
		deps.OTPRepo = mongostore.NewOTPRepo(otps)
		return func() {
			if err := client.Disconnect(context.Background()); err != nil {
				slog.Error("mongo disconnect", "err", err)
			}
		}, nil
	default:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		// Creates tables that don't exist yet.
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		deps.UserRepo = dynamo.NewUserRepo(client, cfg.DynamoTables.Users)
		deps.OTPRepo = dynamo.NewOTPRepo(client, cfg.DynamoTables.OTPs)
		return func() {}, nil
	}
}
