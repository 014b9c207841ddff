package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"blueprint-api/internal/config"
	"blueprint-api/internal/database"
	"blueprint-api/internal/generator"
	"blueprint-api/internal/handler"
	"blueprint-api/internal/middleware"
	"blueprint-api/internal/repository"
	"blueprint-api/internal/repository/memstore"
	"blueprint-api/internal/router"
	"blueprint-api/internal/service"
)

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

type stores struct {
	users  service.UserStore
	tokens service.RefreshTokenStore
	specs  service.SpecStore
	db     *database.DB
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	var cleanupFuncs []func()
	cleanup := func() {
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			cleanupFuncs[i]()
		}
	}

	st, closers, err := openStores(ctx, cfg)
	cleanupFuncs = append(cleanupFuncs, closers...)
	if err != nil {
		cleanup()
		return nil, err
	}

	tokenService, err := service.NewTokenService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, st.tokens)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	authService, err := service.NewAuthService(st.users, tokenService, service.PasswordPolicy{MinLength: cfg.PasswordMinLength}, cfg.BcryptCost)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}

	gateway := generator.New(generator.Options{
		APIKey:    cfg.OpenAIAPIKey,
		BaseURL:   cfg.OpenAIBaseURL,
		Model:     cfg.OpenAIModel,
		MaxTokens: cfg.OpenAIMaxTokens,
		Timeout:   cfg.OpenAITimeout,
	})
	if !gateway.Configured() {
		slog.Warn("OPENAI_API_KEY is not set; generation endpoints will return a configuration error")
	}
	specService := service.NewSpecService(st.specs, gateway)

	health := handler.NewHealthHandler(nil)
	if st.db != nil {
		health = handler.NewHealthHandler(st.db)
	}

	appRouter := router.New(cfg, middleware.NewAuthMiddleware(authService), router.Handlers{
		Auth:   handler.NewAuthHandler(authService),
		Spec:   handler.NewSpecHandler(specService),
		Health: health,
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{server: server, cleanupFuncs: cleanupFuncs}, nil
}

func openStores(ctx context.Context, cfg *config.Config) (stores, []func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		slog.Warn("using in-memory store; data is lost on restart")
		return stores{
			users:  memstore.NewUserStore(),
			tokens: memstore.NewTokenStore(),
			specs:  memstore.NewSpecStore(),
		}, nil, nil
	}

	var closers []func()

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return stores{}, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closers = append(closers, db.Close)

	if err := db.EnsureSchema(ctx); err != nil {
		return stores{}, closers, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	st := stores{
		users:  repository.NewUserRepository(db.Pool),
		tokens: repository.NewTokenRepository(db.Pool),
		specs:  repository.NewSpecRepository(db.Pool),
		db:     db,
	}

	if cfg.RedisURL != "" {
		client, err := repository.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return stores{}, closers, fmt.Errorf("failed to connect to redis: %w", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		st.tokens = repository.NewRedisTokenRepository(client)
		slog.Info("refresh tokens stored in redis")
	}

	slog.Info("database ready")
	return st, closers, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

func (a *App) Close() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
	a.cleanupFuncs = nil
}

// Run serves until SIGINT/SIGTERM or ctx is cancelled, then shuts down
// gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			a.Close()
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	a.Close()

	slog.Info("server stopped")
	return nil
}
