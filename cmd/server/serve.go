package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/practice-booking/internal/config"
	"github.com/iliyamo/practice-booking/internal/database"
	"github.com/iliyamo/practice-booking/internal/handler"
	"github.com/iliyamo/practice-booking/internal/middleware"
	"github.com/iliyamo/practice-booking/internal/router"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("migrate", false, "Apply the schema before serving")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()
	log := a.log

	if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
		if err := database.Migrate(ctx, a.db, a.cfg.DBDriver); err != nil {
			return err
		}
	}

	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		log.Warn("redis unavailable, rate limiting and caching disabled", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestID(), echomw.Recover(), middleware.RequestLog(log.Named("http")))

	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log.Named("ratelimit"))
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb, log.Named("cache"))

	router.RegisterRoutes(e, a.db)
	router.RegisterPublic(e, handler.NewPublicHandler(a.engine, log), cache)
	router.RegisterClient(e, handler.NewClientHandler(a.engine, log), a.cfg.JWTSecret, limit)
	router.RegisterAdmin(e, handler.NewAdminHandler(a.engine, log), a.cfg.JWTSecret)

	addr := ":" + a.cfg.Port
	log.Info("listening",
		zap.String("addr", addr),
		zap.String("env", a.cfg.Env),
		zap.String("db", a.cfg.DBDriver),
		zap.String("timezone", a.policy.Location.String()),
		zap.Stringer("hours", a.policy.Hours))

	errCh := make(chan error, 1)
	go func() { errCh <- e.Start(addr) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(sctx)
}
