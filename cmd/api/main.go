package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hr-platform/internal/accounts"
	"hr-platform/internal/auth"
	"hr-platform/internal/config"
	"hr-platform/internal/metrics"
	"hr-platform/pkg/logger"
	"hr-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// The service keeps running on a weak secret; operators see it here.
	if err := auth.SecretWeakness(cfg.Auth.JWTSecret); err != nil {
		log.Error("insecure token configuration", "err", err)
	}

	st, err := openStores(rootCtx, cfg, log)
	if err != nil {
		log.Error("store init failed", "driver", cfg.Store.Driver, "err", err)
		os.Exit(1)
	}
	defer st.close()

	var throttle accounts.Throttle = accounts.NewMemoryThrottle(cfg.Login.MaxAttempts, cfg.Login.LockoutWindow)
	if cfg.RedisEnabled() {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		throttle = accounts.NewRedisThrottle(rdb, cfg.Login.MaxAttempts, cfg.Login.LockoutWindow)
	}

	r := newRouter(app{
		log:       log,
		authority: auth.NewAuthority(cfg.Auth),
		hasher:    auth.BcryptHasher{},
		throttle:  throttle,
		stores:    st,
		metrics:   metrics.New(prometheus.DefaultRegisterer),
		gatherer:  prometheus.DefaultGatherer,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
