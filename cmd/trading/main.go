package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/metaltrading/internal/trading/application"
	"github.com/wyfcoding/metaltrading/internal/trading/domain"
	"github.com/wyfcoding/metaltrading/internal/trading/infrastructure/client"
	"github.com/wyfcoding/metaltrading/internal/trading/infrastructure/feed"
	"github.com/wyfcoding/metaltrading/internal/trading/infrastructure/messaging"
	"github.com/wyfcoding/metaltrading/internal/trading/infrastructure/persistence/mysql"
	redismirror "github.com/wyfcoding/metaltrading/internal/trading/infrastructure/persistence/redis"
	tradinghttp "github.com/wyfcoding/metaltrading/internal/trading/interfaces/http"
	"github.com/wyfcoding/metaltrading/pkg/cache"
	"github.com/wyfcoding/metaltrading/pkg/config"
	"github.com/wyfcoding/metaltrading/pkg/db"
	"github.com/wyfcoding/metaltrading/pkg/logger"
	"github.com/wyfcoding/metaltrading/pkg/metrics"
	"github.com/wyfcoding/metaltrading/pkg/middleware"
	"github.com/wyfcoding/metaltrading/pkg/mq"
)

func main() {
	configPath := flag.String("config", "configs/trading/config.toml", "配置文件路径")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger.Info(ctx, "Starting trading service",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	// 3. 初始化数据库
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to init database", "error", err)
	}
	defer database.Close()

	tradeRepo := mysql.NewTradeRepository(database.DB)
	if err := tradeRepo.AutoMigrate(); err != nil {
		logger.Fatal(ctx, "Failed to migrate database", "error", err)
	}

	// 4. 初始化 Redis
	redisCache, err := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to init Redis", "error", err)
	}
	defer redisCache.Close()

	quoteMirror := redismirror.NewQuoteMirror(redisCache)

	// 5. 初始化 Kafka 遥测
	var telemetry domain.TelemetryPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			logger.Fatal(ctx, "Failed to init Kafka producer", "error", err)
		}
		defer producer.Close()
		telemetry = messaging.NewKafkaTelemetryPublisher(producer, cfg.Kafka.TradeTopic)
	}

	// 6. 初始化指标
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New("trading")
		if err := m.Register(); err != nil {
			logger.Fatal(ctx, "Failed to register metrics", "error", err)
		}
		if err := metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Fatal(ctx, "Failed to start metrics server", "error", err)
		}
	}

	// 7. 初始化行情源
	priceFeed := feed.New(feed.Config{
		BaseURL:        cfg.Feed.BaseURL,
		PollInterval:   time.Duration(cfg.Feed.PollInterval) * time.Second,
		RequestTimeout: time.Duration(cfg.Feed.RequestTimeout) * time.Second,
		MaxAge:         time.Duration(cfg.Feed.MaxAge) * time.Second,
	}, m)
	priceFeed.Start(ctx)
	defer priceFeed.Stop()

	// 8. 初始化外部客户端
	ledgerClient := client.NewLedgerClient(cfg.Ledger.BaseURL, time.Duration(cfg.Ledger.RequestTimeout)*time.Second)
	limitOrderClient := client.NewLimitOrderClient(cfg.LimitOrder.BaseURL, time.Duration(cfg.LimitOrder.RequestTimeout)*time.Second)

	var allocationClient domain.AllocationClient
	if cfg.Allocation.BaseURL != "" {
		allocationClient = client.NewAllocationClient(cfg.Allocation.BaseURL, time.Duration(cfg.Allocation.RequestTimeout)*time.Second)
	}

	// 9. 组装应用服务
	assets := domain.NewAssetRegistry()

	quoteService := application.NewQuoteService(priceFeed, assets, tradeRepo, quoteMirror, m, application.QuoteServiceConfig{
		TTL:           time.Duration(cfg.Quote.TTLSeconds) * time.Second,
		SweepInterval: time.Duration(cfg.Quote.SweepInterval) * time.Second,
	})
	quoteService.Start()
	defer quoteService.Stop()

	tradeService := application.NewTradeService(quoteService, ledgerClient, limitOrderClient, tradeRepo, telemetry, m)
	allocationService := application.NewAllocationService(assets, allocationClient)

	// 10. 初始化 HTTP 服务
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinLoggingMiddleware())
	router.Use(middleware.GinCORSMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": cfg.ServiceName,
			"version": cfg.Version,
		})
	})

	handler := tradinghttp.NewTradingHandler(quoteService, tradeService, allocationService)
	handler.RegisterRoutes(router)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info(ctx, "HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "HTTP server failed", "error", err)
		}
	}()

	// 11. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "Shutting down trading service")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP server shutdown failed", "error", err)
	}

	logger.Info(ctx, "Trading service stopped")
}
