package cli

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Alligator/jqawk/internal/cache"
	"github.com/Alligator/jqawk/internal/config"
	"github.com/Alligator/jqawk/internal/history"
	"github.com/Alligator/jqawk/internal/server"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP execution service",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cacheCfg := cache.DefaultConfig()
	if cfg.Cache.TTLSeconds > 0 {
		cacheCfg.DefaultTTL = time.Duration(cfg.Cache.TTLSeconds) * time.Second
	}

	var progCache *cache.ProgramCache
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cacheCfg)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		progCache = cache.NewProgramCache(redisCache)
	} else {
		progCache = cache.NewProgramCache(cache.NewMemoryCache(cacheCfg))
	}

	hist, err := history.OpenSQLStore(cfg.History.DSN)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer hist.Close()

	auth := server.NewAuthService(cfg.Auth.JWTSecret, 24*time.Hour)
	srv := server.New(auth, progCache, hist, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{Addr: addr, Handler: srv.Handler()}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("shutting down")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}
