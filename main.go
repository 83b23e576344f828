package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	auction "vehicle-auction/internal/auctionService"
	"vehicle-auction/internal/config"
	"vehicle-auction/internal/events"
	"vehicle-auction/internal/repository"
	"vehicle-auction/internal/server"
	session "vehicle-auction/internal/sessionService"
	"vehicle-auction/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil {
		utils.Debug("no .env file loaded", map[string]any{"error": err.Error()})
	}

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		utils.Fatal("invalid configuration", map[string]any{"error": err.Error()})
	}
	utils.SetLogLevel(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		utils.Fatal("server stopped with error", map[string]any{"error": err.Error()})
	}
	utils.Info("server stopped gracefully", nil)
}

func run(ctx context.Context, cfg config.Config) error {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	sessionStore, closeSessions, err := openSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSessions()

	publisher, closePublisher, err := openPublisher(cfg)
	if err != nil {
		return err
	}
	defer closePublisher()

	sessions := session.NewSessionService(store, sessionStore, utils.NewJWTUtil(cfg.JWTSecret, cfg.SessionTTL))
	if _, err := sessions.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		return err
	}
	auctions := auction.NewAuctionService(store, auction.WithPublisher(publisher))

	router := server.SetupRouter(sessions, auctions, server.Options{
		SessionTTL:   cfg.SessionTTL,
		SecureCookie: cfg.CookieSecure,
	})
	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		utils.Info("auction server listening", map[string]any{"addr": cfg.ServerAddr, "store": cfg.Store})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return auctions.RunLifecycle(gctx, cfg.SweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		utils.Info("shutting down server", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config) (repository.Store, func(), error) {
	if cfg.Store != config.StorePostgres {
		utils.Info("using in-memory store", nil)
		return repository.NewMemoryRepo(), func() {}, nil
	}

	pool, err := repository.ConnectPostgres(ctx, cfg.DB.DSN(), cfg.DB.MaxRetries, cfg.DB.RetryInterval)
	if err != nil {
		return nil, nil, err
	}
	repo := repository.NewPostgresRepo(pool)
	if err := repo.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return repo, pool.Close, nil
}

func openSessionStore(ctx context.Context, cfg config.Config) (repository.SessionStore, func(), error) {
	if cfg.Redis.Addr == "" {
		return repository.NewMemorySessionStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, err
	}
	utils.Info("connected to Redis", map[string]any{"addr": cfg.Redis.Addr})
	return repository.NewRedisSessionStore(client, cfg.Redis.KeyPrefix), func() { client.Close() }, nil
}

func openPublisher(cfg config.Config) (events.Publisher, func(), error) {
	if cfg.NATS.URL == "" {
		return events.LogPublisher{}, func() {}, nil
	}

	conn, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return nil, nil, err
	}
	utils.Info("connected to NATS", map[string]any{"url": cfg.NATS.URL})
	return events.NewNATSPublisher(conn, cfg.NATS.SubjectPrefix), conn.Close, nil
}
