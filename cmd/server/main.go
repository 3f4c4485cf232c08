package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitfantasy/stitchquote/internal/config"
	"github.com/bitfantasy/stitchquote/internal/middleware"
	"github.com/bitfantasy/stitchquote/internal/quote/entity"
	"github.com/bitfantasy/stitchquote/internal/quote/handler"
	"github.com/bitfantasy/stitchquote/internal/quote/pricing"
	"github.com/bitfantasy/stitchquote/internal/quote/repository"
	"github.com/bitfantasy/stitchquote/internal/quote/service"
	"github.com/bitfantasy/stitchquote/internal/shared/catalog"
	"github.com/bitfantasy/stitchquote/internal/shared/pricingapi"
	"github.com/bitfantasy/stitchquote/internal/shared/shopworks"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting stitchquote service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&entity.QuoteSession{},
		&entity.QuoteItem{},
		&entity.QuoteSequence{},
	); err != nil {
		zapLogger.Fatal("Failed to migrate quote tables", zap.Error(err))
	}

	// 初始化 Redis
	rdb := initRedis(cfg.Redis)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		zapLogger.Warn("Redis unavailable, size-pricing cache falls back to memory", zap.Error(err))
		rdb = nil
	}

	// 外部服务客户端
	pricingClient := pricingapi.NewClient(cfg.PricingAPI.BaseURL, cfg.PricingAPI.Timeout, zapLogger)
	catalogClient := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout, cfg.Catalog.CacheTTL, rdb, zapLogger)

	// 定价配置快照 + 计算引擎
	loader := pricing.NewLoader(pricingClient, zapLogger)
	calc := pricing.NewCalculator(loader, catalogClient, zapLogger)

	// 预拉取配置快照（失败不阻塞启动，引擎对降级态有保护）
	if _, err := loader.Snapshot(context.Background()); err != nil {
		zapLogger.Warn("Pricing config prefetch failed", zap.Error(err))
	}

	// 初始化各层
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, calc, catalogClient, shopworks.NewTextParser(), cfg.Import, zapLogger)
	handlers := handler.NewHandlers(services)

	// 初始化Gin
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(zapLogger))
	r.Use(middleware.CORS())
	r.Use(middleware.RequestID())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(r, handlers, cfg)

	// 启动服务器
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		// 批量导入接口耗时较长（逐单限速），不设写超时
		WriteTimeout: 0,
	}

	go func() {
		zapLogger.Info("Server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// API v1
	v1 := r.Group("/api/v1")
	{
		// 报价计算与查询（只读，无需登录）
		quotes := v1.Group("/quotes")
		{
			quotes.POST("/price", h.Quote.Price)
			quotes.GET("/:quoteId", h.Quote.Get)
		}

		// 导入流水线
		imports := v1.Group("/imports")
		{
			// 试算：只解析+计价+对账，不落库
			imports.POST("/dry-run", h.Import.DryRun)

			// 实际落库的导入需要认证
			authorized := imports.Group("")
			authorized.Use(middleware.JWTAuth(cfg.JWT.Secret))
			{
				authorized.POST("", h.Import.Run)
				authorized.POST("/batch", h.Import.RunBatch)
			}
		}
	}
}
