// Command accountd runs the account service: HTTP API, Postgres
// system-of-record, Redis lookaside cache.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jchoi-dev/account-service/internal/auth"
	"github.com/jchoi-dev/account-service/internal/cache"
	"github.com/jchoi-dev/account-service/internal/config"
	"github.com/jchoi-dev/account-service/internal/logging"
	"github.com/jchoi-dev/account-service/internal/mail"
	"github.com/jchoi-dev/account-service/internal/server"
	"github.com/jchoi-dev/account-service/internal/store"
	"github.com/jchoi-dev/account-service/internal/user"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	// A local .env is a convenience for development; absence is fine.
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	log, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		App:    cfg.App.Name,
		Env:    cfg.App.Env,
	})
	if err != nil {
		zap.NewExample().Fatal("logger init failed", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("service failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		users      store.UserStore
		activities store.ActivityStore
		dbHealth   func(context.Context) error
	)
	switch cfg.DB.Driver {
	case "memory":
		mem := store.NewMemory()
		users, activities = mem, mem
		dbHealth = func(context.Context) error { return nil }
		log.Warn("using in-memory store, data will not survive restarts")
	default:
		pg, err := store.NewPG(ctx, store.PGConfig{
			DSN:          cfg.DB.DSN,
			MaxConns:     cfg.DB.MaxConns,
			MinConns:     cfg.DB.MinConns,
			QueryTimeout: cfg.DB.QueryTimeout,
		})
		if err != nil {
			return err
		}
		defer pg.Close()
		if cfg.DB.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				return err
			}
		}
		users, activities = pg, pg
		dbHealth = pg.Pool().Ping
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rdb.Close() }()
	cacheStore := cache.NewRedis(rdb, cfg.Redis.OpTimeout)
	if err := cacheStore.Ping(ctx); err != nil {
		// The cache is lookaside only; start degraded rather than
		// refusing to serve.
		log.Warn("redis unreachable at startup, serving without cache hits", zap.Error(err))
	}

	codec, err := auth.NewCodec(auth.CodecConfig{
		Secret:     []byte(cfg.Auth.JWTSecret),
		Issuer:     cfg.Auth.Issuer,
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
	})
	if err != nil {
		return err
	}

	sessions := auth.NewSessionCache(cacheStore, log)
	sessions.SetValidationTTL(cfg.Auth.ValidationTTL)
	inv := auth.NewInvalidator(sessions, log)
	verifier := auth.NewVerifier(cacheStore, mail.NewLogSender(log), log)
	metrics := auth.NewMetrics(prometheus.DefaultRegisterer)

	authSvc := auth.NewService(auth.ServiceConfig{
		Users:      users,
		Activities: activities,
		Codec:      codec,
		Sessions:   sessions,
		Inv:        inv,
		Verifier:   verifier,
		Metrics:    metrics,
		Logger:     log,
		BcryptCost: cfg.Auth.BcryptCost,
	})
	userSvc := user.NewService(users, activities, sessions, inv, log, cfg.Auth.BcryptCost)

	router := server.NewRouter(server.Deps{
		Auth:    server.NewAuthHandlers(authSvc, verifier, log),
		Users:   server.NewUserHandlers(userSvc, log),
		AuthSvc: authSvc,
		Health:  dbHealth,
		Logger:  log,
		Release: cfg.App.Env == "prod" || cfg.App.Env == "production",
		Public:  cfg.Server.PublicPrefixes,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("http listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
