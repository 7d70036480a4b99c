package main

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/harshyadav028/stock-simulator-manus-ai/internal/config"
	"github.com/harshyadav028/stock-simulator-manus-ai/internal/database"
	"github.com/harshyadav028/stock-simulator-manus-ai/internal/handlers"
	"github.com/harshyadav028/stock-simulator-manus-ai/internal/middleware"
	"github.com/harshyadav028/stock-simulator-manus-ai/internal/quotes"
	"github.com/harshyadav028/stock-simulator-manus-ai/internal/service"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	db, err := database.Connect(cfg.PostgresURL)
	if err != nil {
		logger.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	repo := database.New(db, logger)

	yahoo := quotes.NewYahooClient(cfg.QuoteBaseURL, cfg.QuoteTimeout, logger)
	var provider quotes.Provider = yahoo
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		provider = quotes.NewCachedProvider(yahoo, rdb, cfg.QuoteCacheTTL, logger)
		logger.Infof("quote cache enabled via redis at %s", cfg.RedisAddr)
	}

	executor := service.NewExecutor(repo, provider, logger)
	valuator := service.NewValuator(repo, provider, logger)
	snapshotter := service.NewSnapshotter(valuator, repo, logger)
	auth := middleware.NewAuth(cfg.JWTSecret)

	h := handlers.NewHandler(repo, executor, valuator, snapshotter, provider, yahoo, auth, logger)

	r := gin.Default()
	h.Register(r, cfg.RateLimitPerMinute)

	logger.Infof("server starting on :%s", cfg.Port)
	if err := r.Run(fmt.Sprintf(":%s", cfg.Port)); err != nil {
		logger.Fatalf("server: %v", err)
	}
}
