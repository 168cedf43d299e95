package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"room-chat/internal/chat"
	"room-chat/internal/config"
	"room-chat/internal/history"
	"room-chat/internal/store"
)

func main() {
	// 1. Config
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// 2. Message Store (Platform Layer)
	var messageStore chat.MessageStore
	if cfg.DatabaseDSN != "" {
		pg, err := store.NewPostgres(cfg.DatabaseDSN)
		if err != nil {
			log.Error("failed to connect to PostgreSQL", "err", err)
			os.Exit(1)
		}
		defer pg.Close()
		if err := pg.Migrate(); err != nil {
			log.Error("migration failed", "err", err)
			os.Exit(1)
		}
		log.Info("connected to PostgreSQL, schema ready")
		messageStore = pg
	} else {
		log.Warn("DB_DSN not set, using in-memory store (messages lost on restart)")
		messageStore = store.NewMemory()
	}

	// 3. History Cache (optional)
	var historyCache chat.HistoryCache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
			log.Error("failed to connect to Redis", "err", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		log.Info("connected to Redis")
		historyCache = history.NewRedis(redisClient, cfg.HistoryLimit)
	}

	// 4. Chat Core
	registry := chat.NewRegistry(log)
	broadcaster := chat.NewBroadcaster(messageStore, registry, historyCache, log)
	handler := chat.NewHandler(chat.HandlerOptions{
		Registry:       registry,
		Broadcaster:    broadcaster,
		Store:          messageStore,
		History:        historyCache,
		Log:            log,
		HistoryLimit:   cfg.HistoryLimit,
		SendBuffer:     cfg.SendBuffer,
		MaxMessageSize: cfg.MaxMessageSize,
	})

	// 5. Routes
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	handler.Routes(r)

	srv := &http.Server{Addr: cfg.Addr, Handler: r}

	// 6. Run until signalled, then drain
	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-stop:
		log.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn("shutdown incomplete", "err", err)
		}
		registry.CloseAll()
	}
}
