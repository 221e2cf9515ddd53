// Package app wires config into the store, the engine services and the
// HTTP dependencies shared by both binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"swipe-engine/internal/core/auth"
	"swipe-engine/internal/core/cache"
	"swipe-engine/internal/core/config"
	"swipe-engine/internal/core/database"
	"swipe-engine/internal/feature/boost"
	"swipe-engine/internal/feature/catalog"
	"swipe-engine/internal/feature/credit"
	"swipe-engine/internal/feature/feed"
	"swipe-engine/internal/feature/match"
	"swipe-engine/internal/feature/notify"
	"swipe-engine/internal/feature/swipe"
	"swipe-engine/internal/repo"
	"swipe-engine/internal/transport/http/router"
)

func OpenDB(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	return database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		SlowThresholdMs:    cfg.DB.SlowThresholdMs,
		Logger:             log,
	})
}

// openCache 未配置或连不上时返回 nil，目录直接读库
func openCache(ctx context.Context, cfg config.Redis, log *zap.Logger) *cache.Cache {
	if cfg.Addr == "" {
		return nil
	}
	c := cache.New(cfg.Addr, cfg.Password, cfg.DB)
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.Ping(pctx); err != nil {
		log.Warn("redis unavailable, catalog cache disabled", zap.String("addr", cfg.Addr), zap.Error(err))
		_ = c.Close()
		return nil
	}
	log.Info("redis connected", zap.String("addr", cfg.Addr))
	return c
}

// Build 打开数据库、按需迁移、同步套餐目录与 boost 定价，返回路由依赖与清理函数
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (router.Deps, func(), error) {
	db, err := OpenDB(cfg, log)
	if err != nil {
		return router.Deps{}, nil, fmt.Errorf("open db: %w", err)
	}
	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	log.Info("database connected", zap.String("driver", cfg.DB.Driver))

	if cfg.DB.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			cleanup()
			return router.Deps{}, nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("automigrate done")
	}

	rc := openCache(ctx, cfg.Redis, log)
	if rc != nil {
		dbCleanup := cleanup
		cleanup = func() { _ = rc.Close(); dbCleanup() }
	}

	store := repo.NewStore(db)
	cat := catalog.New(store, rc, time.Duration(cfg.Catalog.CacheTTLSec)*time.Second, log)
	if err := cat.Sync(ctx, catalog.FromConfig(cfg.Catalog.Packs)); err != nil {
		cleanup()
		return router.Deps{}, nil, fmt.Errorf("sync catalog: %w", err)
	}
	ledger := credit.NewLedger(store, log)
	boosts := boost.New(store, ledger, cfg.Boost, log)
	if err := boosts.Seed(ctx); err != nil {
		cleanup()
		return router.Deps{}, nil, err
	}

	// Shutdown 不会关闭已劫持的 websocket，清理时由 hub 主动断开
	hub := notify.NewHub(notify.Options{
		SendBuffer:     cfg.Notify.SendBuffer,
		PingPeriod:     time.Duration(cfg.Notify.PingPeriodSec) * time.Second,
		MaxMessageSize: cfg.Notify.MaxMessageSize,
	}, log)
	storeCleanup := cleanup
	cleanup = func() { hub.Close(); storeCleanup() }
	detector := match.NewDetector(store, log, match.WithNotifier(hub))

	mode := "release"
	if cfg.App.Env == "local" || cfg.App.Env == "dev" {
		mode = "debug"
	}
	return router.Deps{
		Log:   log,
		DB:    db,
		Store: store,
		JWT: &auth.JWTer{
			Secret: []byte(cfg.JWT.Secret),
			Issuer: cfg.JWT.Issuer,
			TTL:    time.Duration(cfg.JWT.AccessTokenTTLMin) * time.Minute,
		},
		Limits:   cfg.Limits,
		Mode:     mode,
		Credits:  cfg.Credits,
		Feed:     feed.New(store, cfg.Feed.PageSize, cfg.Feed.MaxPageSize),
		Recorder: swipe.NewRecorder(store, ledger, detector, cfg.Credits.LikeCost, log),
		Detector: detector,
		Ledger:   ledger,
		Catalog:  cat,
		Boost:    boosts,
		Hub:      hub,
	}, cleanup, nil
}
