package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron/v2"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"papertrade/internal/auth"
	"papertrade/internal/config"
	"papertrade/internal/database"
	"papertrade/internal/handlers"
	"papertrade/internal/quotes"
	"papertrade/internal/service"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config load failed: %v", err)
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	initialCash, err := decimal.NewFromString(cfg.InitialBuyingPower)
	if err != nil || !initialCash.IsPositive() {
		logger.Fatalf("INITIAL_BUYING_POWER must be a positive decimal, got %q", cfg.InitialBuyingPower)
	}

	db, err := initDB(cfg)
	if err != nil {
		logger.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	if err := runMigrations(db, cfg.Postgres.MigrationsDir); err != nil {
		logger.Fatalf("migrations failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Fatalf("redis connect failed: %v", err)
	}

	repo := database.New(db, logger)

	quoteClient := quotes.NewClient(cfg.Quotes.BaseURL, cfg.Quotes.Timeout, cfg.Quotes.Debug, logger)
	quoteCache := quotes.NewCache(rdb, cfg.Quotes.CacheTTL, logger)
	quoteSvc := quotes.NewService(quoteClient, quoteCache, repo, logger)

	authMgr := auth.NewManager(cfg.JWT.Secret, cfg.JWT.TTL)
	tradingSvc := service.New(repo, quoteSvc, authMgr, logger, initialCash)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched, err := gocron.NewScheduler()
	if err != nil {
		logger.Fatalf("scheduler init failed: %v", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(cfg.Quotes.RefreshInterval),
		gocron.NewTask(func() {
			if err := quoteSvc.RefreshHeldSymbols(ctx); err != nil {
				logger.Warnf("quote refresh job failed: %v", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		logger.Fatalf("scheduler job failed: %v", err)
	}
	sched.Start()
	defer sched.Shutdown()

	h := handlers.NewHandler(tradingSvc, logger)

	r := gin.Default()
	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })

	api := r.Group("/api")
	api.POST("/register", h.Register)
	api.POST("/login", h.Login)

	authed := api.Group("", authMgr.Middleware())
	authed.GET("/quote/:symbol", h.GetQuote)
	authed.POST("/buy", h.PostBuy)
	authed.POST("/sell", h.PostSell)
	authed.POST("/deposit", h.PostDeposit)
	authed.POST("/reset", h.PostReset)
	authed.GET("/portfolio", h.GetPortfolio)
	authed.GET("/history", h.GetHistory)

	logger.Infof("server starting on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatalf("server stopped: %v", err)
	}
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.Postgres.URL)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
	return db, nil
}

func runMigrations(db *sqlx.DB, dir string) error {
	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", dir), "postgres", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
