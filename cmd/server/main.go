package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/library-api/internal/config"
	"github.com/iliyamo/library-api/internal/database"
	"github.com/iliyamo/library-api/internal/handler"
	"github.com/iliyamo/library-api/internal/logger"
	"github.com/iliyamo/library-api/internal/middleware"
	"github.com/iliyamo/library-api/internal/queue"
	"github.com/iliyamo/library-api/internal/repository"
	"github.com/iliyamo/library-api/internal/repository/memory"
	"github.com/iliyamo/library-api/internal/router"
	"github.com/iliyamo/library-api/internal/service"
	"github.com/iliyamo/library-api/internal/worker"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win
	cfg := config.Load()

	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, db, err := openStores(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("storage init failed", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}
	if db != nil {
		defer db.Close()
	}

	policy, err := service.ParseReturnPolicy(cfg.Lifecycle.ReturnPolicy)
	if err != nil {
		zl.Fatal("invalid return policy", zap.Error(err))
	}
	var events service.Publisher = service.NopPublisher{}
	if cfg.Events.Enabled {
		events = queue.NewPublisher(cfg.Events.RabbitMQURL, zl)
		if cfg.Events.LogPath != "" {
			consumer := &queue.Consumer{URL: cfg.Events.RabbitMQURL, LogPath: cfg.Events.LogPath, Log: zl}
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					zl.Error("event consumer stopped", zap.Error(err))
				}
			}()
		}
	}

	lib := service.NewLibrary(stores, events,
		service.AuthOptions{
			JWTSecret:      cfg.JWTSecret,
			AccessTTLMin:   cfg.AccessTTLMin,
			RefreshTTLDays: cfg.RefreshTTLDays,
			BcryptCost:     cfg.BcryptCost,
		},
		service.LifecycleOptions{
			ReturnPolicy:       policy,
			LoanPeriod:         cfg.Lifecycle.LoanPeriod(),
			HoldForReservation: cfg.Lifecycle.HoldForReservation,
		}, zl)

	if cfg.Lifecycle.SweepInterval > 0 {
		go worker.NewOverdueSweeper(lib.Loans, zl, cfg.Lifecycle.SweepInterval).Start(ctx)
	}

	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if err != nil {
		zl.Warn("redis unavailable; rate limiting and caching disabled", zap.Error(err))
	} else {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(zl))
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, cfg.JWTSecret, zl))

	catalog := handler.NewCatalogHandler(lib.Catalog, zl)
	copies := handler.NewCopyHandler(lib.Copies, zl)
	loans := handler.NewLoanHandler(lib.Loans, zl)
	reservations := handler.NewReservationHandler(lib.Reservations, zl)
	invalidate := middleware.NewCacheInvalidator(cacheCfg, rdb)

	var pinger handler.Pinger
	if db != nil {
		pinger = db
	}
	router.RegisterRoutes(e, pinger)
	router.RegisterAuth(e, handler.NewAuthHandler(lib.Users, cfg.JWTSecret, zl), cfg.JWTSecret)
	router.RegisterPublic(e, catalog, copies, middleware.NewRedisCache(cacheCfg, rdb))
	router.RegisterMember(e, loans, reservations, cfg.JWTSecret, invalidate)
	router.RegisterAdmin(e, router.AdminHandlers{
		Users:        handler.NewUserHandler(lib.Users, zl),
		Catalog:      catalog,
		Copies:       copies,
		Loans:        loans,
		Reservations: reservations,
	}, cfg.JWTSecret, invalidate)

	addr := ":" + cfg.Port
	go func() {
		zl.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env),
			zap.String("storage", cfg.StorageDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("shutdown failed", zap.Error(err))
	}
	zl.Info("stopped")
}

// openStores returns the repositories for the configured driver.  The
// *sql.DB is nil for the memory driver.
func openStores(ctx context.Context, cfg config.Config, zl *zap.Logger) (service.Stores, *sql.DB, error) {
	if cfg.StorageDriver == config.DriverMemory {
		zl.Warn("using in-memory storage; data is lost on exit")
		st := memory.New()
		return service.Stores{
			Users:        st.Users(),
			Tokens:       st.Tokens(),
			Categories:   st.Categories(),
			Books:        st.Books(),
			Copies:       st.Copies(),
			Loans:        st.Loans(),
			Reservations: st.Reservations(),
		}, nil, nil
	}

	db, err := database.Open(ctx, database.Options{
		User:     cfg.DBUser,
		Password: cfg.DBPass,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
	})
	if err != nil {
		return service.Stores{}, nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return service.Stores{}, nil, err
	}
	return mysqlStores(db), db, nil
}

func mysqlStores(db *sql.DB) service.Stores {
	return service.Stores{
		Users:        repository.NewUserRepo(db),
		Tokens:       repository.NewTokenRepo(db),
		Categories:   repository.NewCategoryRepo(db),
		Books:        repository.NewBookRepo(db),
		Copies:       repository.NewCopyRepo(db),
		Loans:        repository.NewLoanRepo(db),
		Reservations: repository.NewReservationRepo(db),
	}
}
