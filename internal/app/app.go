// Package app wires storage, the sync engine and the admin API into a
// runnable process.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/panelmesh/resellerd/internal/audit"
	"github.com/panelmesh/resellerd/internal/config"
	"github.com/panelmesh/resellerd/internal/db"
	"github.com/panelmesh/resellerd/internal/enforce"
	adminapi "github.com/panelmesh/resellerd/internal/http/api/admin"
	"github.com/panelmesh/resellerd/internal/locks"
	"github.com/panelmesh/resellerd/internal/models"
	"github.com/panelmesh/resellerd/internal/settings"
	"github.com/panelmesh/resellerd/internal/syncer"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, errDSN := config.LoadDatabaseDSN(configPath)
	if errDSN != nil {
		return errDSN
	}
	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the usage engine and the admin API.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	fileCfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	config.SetupLogging(fileCfg.Log)

	jwtCfg, errJWT := fileCfg.JWT.Parse()
	if errJWT != nil {
		return errJWT
	}

	conn, errOpen := db.Open(fileCfg.DatabaseDSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := settings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		return fmt.Errorf("load settings snapshot: %w", errRefresh)
	}

	var adminCount int64
	if errCount := conn.WithContext(ctx).Model(&models.Admin{}).Count(&adminCount).Error; errCount == nil && adminCount == 0 {
		log.Warn("no admin accounts exist; the management API is unreachable until one is created")
	}

	lockManager := buildLockManager(ctx, fileCfg.Redis)
	engine := syncer.New(conn, lockManager, nil, enforce.NewEngine(conn, audit.NewRecorder(conn)))
	engine.Start(ctx)

	router := gin.New()
	router.Use(gin.Recovery())
	adminapi.RegisterAdminRoutes(router, conn, jwtCfg, engine)

	server := &http.Server{
		Addr:              fileCfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", fileCfg.Listen)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// buildLockManager prefers the shared redis backend so multiple
// replicas never run the sync job concurrently. Without redis, locks
// are process local.
func buildLockManager(ctx context.Context, cfg config.RedisConfig) locks.Manager {
	if cfg.Addr == "" {
		log.Info("redis not configured, using in-process job locks")
		return locks.NewMemoryManager()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if errPing := client.Ping(pingCtx).Err(); errPing != nil {
		log.WithError(errPing).Warn("redis unreachable, falling back to in-process job locks")
		return locks.NewMemoryManager()
	}
	return locks.NewRedisManager(client, "resellerd:locks:")
}
