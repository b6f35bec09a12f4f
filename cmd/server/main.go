// @title Free99 API
// @version 1.0
// @description 校园免费物品交换：发布、认领与私信
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/free99/config"
	"github.com/d60-Lab/free99/internal/api"
	"github.com/d60-Lab/free99/internal/api/handler"
	"github.com/d60-Lab/free99/internal/cache"
	"github.com/d60-Lab/free99/internal/repository"
	"github.com/d60-Lab/free99/internal/service"
	pkgcache "github.com/d60-Lab/free99/pkg/cache"
	"github.com/d60-Lab/free99/pkg/database"
	"github.com/d60-Lab/free99/pkg/logger"
	"github.com/d60-Lab/free99/pkg/sentry"
	"github.com/d60-Lab/free99/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(logger.Options{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Development: cfg.Log.Development,
	}); err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if enabled, err := sentry.Init(cfg.Sentry); err != nil {
		logger.Warn("sentry disabled", zap.Error(err))
	} else if enabled {
		defer sentry.Flush()
	}

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	db, err := database.InitDB(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	rdb, err := pkgcache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		// 缓存不可用时直接读库
		logger.Warn("redis unavailable, profile cache disabled", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	userRepo := repository.NewUserRepository(db)
	listingRepo := repository.NewListingRepository(db)
	threadRepo := repository.NewThreadRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	opts := service.OptionsFromConfig(cfg.Market)
	tokens := service.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.TTL)
	profiles := cache.NewProfileCache(userRepo, rdb, cfg.Redis.ProfileTTL)

	users := service.NewUserService(userRepo, tokens, service.LogCodeSender{}, opts)
	listings := service.NewListingService(listingRepo, userRepo, profiles, opts)
	messages := service.NewMessageService(threadRepo, messageRepo, listingRepo, userRepo, opts)

	if err := handler.RegisterValidators(cfg.Market.AllowedEmailDomain); err != nil {
		return err
	}
	gin.SetMode(cfg.Server.Mode)
	router := api.NewRouter(cfg, handler.NewHandler(users, listings, messages, sqlDB), tokens)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
