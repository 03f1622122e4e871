package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/do"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/aiwendy/roundtable/internal/bootstrap"
	"github.com/aiwendy/roundtable/internal/config"
	"github.com/aiwendy/roundtable/internal/infra/cache"
	"github.com/aiwendy/roundtable/internal/infra/db"
	mq "github.com/aiwendy/roundtable/internal/infra/queue"
	"github.com/aiwendy/roundtable/internal/modules/handler"
	"github.com/aiwendy/roundtable/internal/modules/repo"
	"github.com/aiwendy/roundtable/internal/router"
	"github.com/aiwendy/roundtable/internal/telemetry"
	"github.com/redis/go-redis/v9"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	inj := bootstrap.BuildContainer()

	cfg := do.MustInvoke[*config.Config](inj)
	log := do.MustInvoke[*zap.Logger](inj)
	defer log.Sync() //nolint:errcheck

	if _, err := telemetry.SetupTracing(cfg); err != nil {
		log.Fatal("failed to set up tracing", zap.Error(err))
	}
	if _, err := telemetry.SetupMetrics(cfg); err != nil {
		log.Fatal("failed to set up metrics", zap.Error(err))
	}
	if err := telemetry.InitChatMetrics(); err != nil {
		log.Warn("failed to init chat metrics", zap.Error(err))
	}

	gdb := do.MustInvoke[*gorm.DB](inj)
	rdb := do.MustInvoke[*redis.Client](inj)
	if cfg.Telemetry.Enabled && cfg.Telemetry.OtlpEndpoint != "" {
		if err := db.RegisterOpenTelemetryPlugin(gdb); err != nil {
			log.Warn("failed to instrument gorm", zap.Error(err))
		}
		if err := cache.RegisterOpenTelemetryPlugin(rdb); err != nil {
			log.Warn("failed to instrument redis", zap.Error(err))
		}
	}

	r := router.NewRouter(router.RouterDeps{
		Config:            cfg,
		Users:             do.MustInvoke[repo.UserRepo](inj),
		Log:               log,
		PresetHandler:     do.MustInvoke[*handler.PresetHandler](inj),
		SessionHandler:    do.MustInvoke[*handler.SessionHandler](inj),
		RoundtableHandler: do.MustInvoke[*handler.RoundtableHandler](inj),
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening",
			zap.String("addr", cfg.HTTP.Addr),
			zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", zap.Error(err))
		}

		if pub := do.MustInvoke[*mq.Publisher](inj); pub != nil {
			if err := pub.Close(); err != nil {
				log.Warn("publisher close", zap.Error(err))
			}
		}
		if err := cache.Close(rdb); err != nil {
			log.Warn("redis close", zap.Error(err))
		}
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown", zap.Error(err))
		}
		if err := telemetry.ShutdownMetrics(shutdownCtx); err != nil {
			log.Warn("metrics shutdown", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}
