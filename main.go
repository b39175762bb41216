package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"friendsAPI/handlers"
	"friendsAPI/internal/auth"
	"friendsAPI/internal/config"
	"friendsAPI/internal/logger"
	"friendsAPI/internal/notification"
	"friendsAPI/internal/ratelimit"
	"friendsAPI/internal/storage/postgres"
	"friendsAPI/middleware"
	"friendsAPI/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database connection pool")
		dbPool.Close()
	}()
	log.Info("connected to database")

	if err := postgres.Migrate(ctx, dbPool); err != nil {
		return err
	}

	counters, closeCounters, err := newCounterStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCounters()

	store := postgres.NewStore(dbPool)
	tokens := auth.NewTokenManager(auth.TokenOptions{
		Secret:     []byte(cfg.JWTSecret),
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	limiter := ratelimit.NewLimiter(counters, cfg.FriendRequestLimit, cfg.FriendRequestWindow)

	userService := services.NewUserService(store, auth.NewPasswordHasher(), tokens, log)
	friendRequestService := services.NewFriendRequestService(store, store, limiter, log)

	dispatcher := services.NewNotificationDispatcher(store, cfg.NotificationWorkers, log)
	defer dispatcher.Stop()

	fcmService, err := notification.NewFCMService(ctx, cfg.FCMCredentialsFile, log)
	if err != nil {
		log.Warn("could not initialize FCM, push notifications disabled", zap.Error(err))
	} else {
		dispatcher.SetPushProvider(fcmService)
		log.Info("FCM push provider initialized")
	}

	eventHub := services.NewEventHub(log)
	defer eventHub.Close()

	notificationService := services.NewNotificationService(store, dispatcher, log)
	notificationService.SetEventPublisher(eventHub)
	friendRequestService.SetNotifier(notificationService)

	middleware.InitPrometheus(services.Collectors()...)

	ipLimiter := middleware.NewIPRateLimiter(cfg.IPRateLimit, cfg.IPRateBurst)
	go ipLimiter.RunCleanup(ctx, time.Minute)

	r := handlers.NewRouter(handlers.RouterConfig{
		Auth:           handlers.NewAuthHandler(userService, log),
		Users:          handlers.NewUserHandler(userService, log),
		FriendRequests: handlers.NewFriendRequestHandler(friendRequestService, log),
		Notifications:  handlers.NewNotificationHandler(notificationService, log),
		Health:         handlers.NewHealthHandler(dbPool, "friendsAPI"),
		Events:         handlers.NewEventsHandler(eventHub, tokens, log),
		Verifier:       tokens,
		IPLimiter:      ipLimiter,
		Logger:         log,
		Metrics:        promhttp.Handler(),
		MetricsUser:    cfg.MetricsUser,
		MetricsPass:    cfg.MetricsPass,
	})

	// CORS configuration
	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
	)

	server := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("error starting server: %w", err)
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}

	log.Info("server shutdown complete")
	return nil
}

// newCounterStore returns the friend-request counter store: Redis when
// REDIS_URL is set so every instance shares one budget, memory otherwise.
func newCounterStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (ratelimit.Store, func(), error) {
	if cfg.RedisURL == "" {
		log.Info("REDIS_URL not set, using in-memory rate counters")
		mem := ratelimit.NewMemoryStore()
		go mem.RunJanitor(ctx, time.Minute)
		return mem, func() {}, nil
	}

	client, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	log.Info("using redis rate counters")
	closeFn := func() {
		if err := client.Close(); err != nil {
			log.Warn("failed to close redis client", zap.Error(err))
		}
	}
	return ratelimit.NewRedisStore(client, "friendsapi:"), closeFn, nil
}
