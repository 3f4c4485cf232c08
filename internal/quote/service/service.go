package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bitfantasy/stitchquote/internal/config"
	"github.com/bitfantasy/stitchquote/internal/quote/entity"
	"github.com/bitfantasy/stitchquote/internal/quote/pricing"
	"github.com/bitfantasy/stitchquote/internal/quote/repository"
	"github.com/bitfantasy/stitchquote/internal/shared/catalog"
	"github.com/bitfantasy/stitchquote/internal/shared/shopworks"
)

// SessionStore 报价会话存储
type SessionStore interface {
	Create(ctx context.Context, session *entity.QuoteSession) error
	FindByQuoteIDWithItems(ctx context.Context, quoteID string) (*entity.QuoteSession, error)
	DeleteByQuoteID(ctx context.Context, quoteID string) (int64, error)
}

// ItemStore 报价明细存储
type ItemStore interface {
	BatchCreate(ctx context.Context, items []entity.QuoteItem) error
	ListByQuoteID(ctx context.Context, quoteID string) ([]entity.QuoteItem, error)
	DeleteByQuoteID(ctx context.Context, quoteID string) (int64, error)
}

// SequenceSource 报价单号来源
type SequenceSource interface {
	NextQuoteID(ctx context.Context, prefix string, now time.Time) (string, error)
}

// CatalogSource 商品目录来源
type CatalogSource interface {
	SearchStyle(ctx context.Context, style string) (*catalog.StyleInfo, error)
}

// QuotePricer 报价计算
type QuotePricer interface {
	CalculateQuote(ctx context.Context, products []entity.ProductLine, services []entity.AdditionalService, plan entity.LogoPlan) (*pricing.QuoteResult, error)
}

// Services 服务集合
type Services struct {
	Quote  *QuoteService
	Import *ImportService
	Batch  *BatchService
	Pricer QuotePricer
}

// NewServices 创建服务集合
func NewServices(repos *repository.Repositories, calc QuotePricer, catalogClient CatalogSource, parser shopworks.Parser, cfg config.ImportConfig, logger *zap.Logger) *Services {
	quoteSvc := NewQuoteService(repos.Session, repos.Item, repos.Sequence, cfg, logger)
	importSvc := NewImportService(quoteSvc, calc, catalogClient, parser, cfg, logger)
	batchSvc := NewBatchService(importSvc, cfg, logger)
	return &Services{
		Quote:  quoteSvc,
		Import: importSvc,
		Batch:  batchSvc,
		Pricer: calc,
	}
}
