package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bitfantasy/stitchquote/internal/config"
	"github.com/bitfantasy/stitchquote/internal/quote/entity"
	"github.com/bitfantasy/stitchquote/internal/quote/pricing"
	"github.com/bitfantasy/stitchquote/internal/quote/repository"
	"github.com/bitfantasy/stitchquote/internal/quote/service"
	"github.com/bitfantasy/stitchquote/internal/shared/catalog"
	"github.com/bitfantasy/stitchquote/internal/shared/objstore"
	"github.com/bitfantasy/stitchquote/internal/shared/pricingapi"
	"github.com/bitfantasy/stitchquote/internal/shared/shopworks"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

var (
	flagLive      bool
	flagDryRun    bool
	flagNoCleanup bool
	flagReport    string
	flagDelay     time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "swimport <batch-file>",
		Short: "批量导入ShopWorks订单文本并生成报价",
		Long: `读取批量订单文本文档，逐单解析、计价、与原始金额对账。
默认试算模式只输出报告；--live 模式将报价写入数据库，
逐单校验后清理（--no-cleanup 保留数据）。`,
		Args:    cobra.ExactArgs(1),
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		RunE:    run,
	}

	root.Flags().BoolVar(&flagLive, "live", false, "落库模式：保存报价并校验")
	root.Flags().BoolVar(&flagLive, "save", false, "--live 的别名")
	root.Flags().BoolVar(&flagDryRun, "dry-run", true, "试算模式：不写数据库（默认）")
	root.Flags().BoolVar(&flagNoCleanup, "no-cleanup", false, "落库模式下保留已保存的报价数据")
	root.Flags().StringVar(&flagReport, "report", "", "输出Excel报告文件路径 (如 report.xlsx)")
	root.Flags().DurationVar(&flagDelay, "delay", 0, "覆盖落库模式下的逐单间隔 (如 2s)")
	root.Flags().MarkHidden("save")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveLive 显式 --dry-run 优先于 --live/--save
func resolveLive(live, dryRunChanged, dryRun bool) bool {
	if dryRunChanged && dryRun {
		return false
	}
	return live
}

func run(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer zapLogger.Sync()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("读取批量文档失败: %w", err)
	}

	// Ctrl-C 中断后停止处理后续订单
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	live := resolveLive(flagLive, cmd.Flags().Changed("dry-run"), flagDryRun)

	// 外部服务
	pricingClient := pricingapi.NewClient(cfg.PricingAPI.BaseURL, cfg.PricingAPI.Timeout, zapLogger)
	catalogClient := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout, cfg.Catalog.CacheTTL, nil, zapLogger)

	loader := pricing.NewLoader(pricingClient, zapLogger)
	if _, err := loader.Snapshot(ctx); err != nil {
		// 配置拉不下来计价没有意义，直接退出
		return fmt.Errorf("拉取定价配置失败: %w", err)
	}
	calc := pricing.NewCalculator(loader, catalogClient, zapLogger)

	// 落库模式才需要数据库
	var quotes *service.QuoteService
	if live {
		db, err := initDatabase(cfg.Database)
		if err != nil {
			return fmt.Errorf("连接数据库失败: %w", err)
		}
		if err := db.AutoMigrate(
			&entity.QuoteSession{},
			&entity.QuoteItem{},
			&entity.QuoteSequence{},
		); err != nil {
			return fmt.Errorf("迁移报价表失败: %w", err)
		}
		repos := repository.NewRepositories(db)
		quotes = service.NewQuoteService(repos.Session, repos.Item, repos.Sequence, cfg.Import, zapLogger)

		// 归档原始文档（MinIO 未配置则跳过）
		if cfg.MinIO.Endpoint != "" {
			archiver, err := objstore.NewArchiver(ctx, cfg.MinIO, zapLogger)
			if err != nil {
				zapLogger.Warn("对象存储不可用，跳过归档", zap.Error(err))
			} else if _, err := archiver.Archive(ctx, filepath.Base(args[0]), data); err != nil {
				zapLogger.Warn("归档批量文档失败", zap.Error(err))
			}
		}
	} else {
		quotes = service.NewQuoteService(nil, nil, nil, cfg.Import, zapLogger)
	}

	imports := service.NewImportService(quotes, calc, catalogClient, shopworks.NewTextParser(), cfg.Import, zapLogger)
	batch := service.NewBatchService(imports, cfg.Import, zapLogger)

	report, err := batch.ProcessBatch(ctx, string(data), service.BatchOptions{
		Live:     live,
		KeepData: flagNoCleanup,
		Delay:    flagDelay,
	})
	if report != nil {
		fmt.Print(report.Summary())
		if flagReport != "" {
			if werr := service.WriteReportXLSX(report, flagReport); werr != nil {
				zapLogger.Error("写Excel报告失败", zap.Error(werr))
			} else {
				fmt.Printf("报告已写入 %s\n", flagReport)
			}
		}
	}
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d 单处理失败", report.Failed)
	}
	return nil
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
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
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

	return db, nil
}
