package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	httpadp "village-banking/internal/adapter/http"
	"village-banking/internal/adapter/lock"
	idemp "village-banking/internal/adapter/middleware"
	"village-banking/internal/adapter/publisher"
	"village-banking/internal/adapter/repository/gormrepo"
	"village-banking/internal/adapter/snapshotcache"
	"village-banking/internal/config"
	"village-banking/internal/domain/event"
	"village-banking/internal/domain/uow"
	"village-banking/internal/infrastructure/cache"
	infradb "village-banking/internal/infrastructure/db"
	"village-banking/internal/usecase/coordinator"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	gdb, err := infradb.OpenGorm(cfg.DBDriver, cfg.DSN(), infradb.ParseLogLevel(cfg.DBLogLevel))
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := infradb.Migrate(gdb); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer sqlDB.Close()

	checks := []httpadp.Check{{Name: "db", Ping: sqlDB.PingContext}}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		if rdb, err = cache.OpenRedis(cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}); err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		checks = append(checks, httpadp.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	var locker uow.MemberLocker = lock.NewLocal(cfg.LockWait)
	if cfg.LockBackend == config.LockRedis {
		locker = lock.NewRedis(rdb, cfg.LockTTL, cfg.LockWait)
	}

	var pub event.Publisher = publisher.Log{}
	if rdb != nil {
		pub = publisher.NewRedis(rdb, cfg.EventChannel)
	}
	events := publisher.NewAsync(pub, cfg.EventBuffer)
	defer events.Close()

	deps := coordinator.Deps{
		UoW:        gormrepo.NewGormUoW(gdb),
		Locker:     locker,
		Rules:      cfg.Rules,
		Events:     events,
		MaxRetries: cfg.TxMaxRetries,
	}
	if rdb != nil && cfg.SnapshotCacheTTL > 0 {
		deps.Cache = snapshotcache.New(rdb, cfg.SnapshotCacheTTL)
	}
	co := coordinator.New(deps)

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpadp.NewValidator()
	e.Use(middleware.Logger(), middleware.Recover())

	var mutating []echo.MiddlewareFunc
	if rdb != nil {
		mutating = append(mutating, idemp.Idempotency(rdb, idemp.IdempotencyConfig{
			TTL: time.Duration(cfg.IdempTTLSecs) * time.Second,
		}))
	} else {
		log.Printf("redis not configured: idempotency middleware disabled")
	}
	httpadp.Register(e, httpadp.NewHandler(checks...), httpadp.NewLedgerHandler(co), mutating...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.AppPort
	go func() {
		log.Printf("listening on %s", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdown); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
