package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bitfantasy/stitchquote/internal/config"
	"github.com/bitfantasy/stitchquote/internal/quote/entity"
	"github.com/bitfantasy/stitchquote/internal/quote/pricing"
	"github.com/bitfantasy/stitchquote/internal/shared/catalog"
	"github.com/bitfantasy/stitchquote/internal/shared/shopworks"
)

// 目录未命中时用于帽类识别的关键词
var capKeywords = []string{"cap", "hat", "snapback", "trucker", "visor", "beanie", "skull"}

// 默认图标方案
const (
	defaultGarmentPosition = "Left Chest"
	defaultGarmentStitches = 8000
	defaultCapPosition     = "Cap Front"
	defaultCapStitches     = 5000
)

// ProcessOptions 单订单处理选项
type ProcessOptions struct {
	Live     bool // 实际落库（否则只定价）
	KeepData bool // 落库后保留数据，跳过清理
}

// OrderReport 单订单处理报告
type OrderReport struct {
	OrderID    string                 `json:"order_id"`
	QuoteID    string                 `json:"quote_id,omitempty"`
	Parsed     *shopworks.ParsedOrder `json:"parsed,omitempty"`
	Result     *pricing.QuoteResult   `json:"result,omitempty"`
	Audit      *pricing.AuditReport   `json:"audit,omitempty"`
	Verify     *VerifyReport          `json:"verify,omitempty"`
	Cleanup    *CleanupResult         `json:"cleanup,omitempty"`
	NonCatalog []string               `json:"non_catalog,omitempty"`
	Warnings   []string               `json:"warnings,omitempty"`
	Err        string                 `json:"error,omitempty"`
}

// Failed 订单是否处理失败
func (r *OrderReport) Failed() bool {
	return r.Err != ""
}

// ImportService 导入对账流水线：解析 → 归并识别 → 定价 → 审计 → 落库 → 校验 → 清理
type ImportService struct {
	quotes  *QuoteService
	pricer  QuotePricer
	catalog CatalogSource
	parser  shopworks.Parser
	cfg     config.ImportConfig
	logger  *zap.Logger
}

// NewImportService 创建导入服务
func NewImportService(quotes *QuoteService, pricer QuotePricer, catalogClient CatalogSource, parser shopworks.Parser, cfg config.ImportConfig, logger *zap.Logger) *ImportService {
	return &ImportService{
		quotes:  quotes,
		pricer:  pricer,
		catalog: catalogClient,
		parser:  parser,
		cfg:     cfg,
		logger:  logger,
	}
}

// ProcessOrder 处理单个订单文本。
// 各阶段严格顺序执行；定价失败跳过整单，校验失败不回滚已落库数据。
func (s *ImportService) ProcessOrder(ctx context.Context, text string, opts ProcessOptions) *OrderReport {
	report := &OrderReport{}

	order, err := s.parser.Parse(text)
	if err != nil {
		report.Err = fmt.Sprintf("解析失败: %v", err)
		return report
	}
	report.OrderID = order.OrderID
	report.Parsed = order
	report.Warnings = append(report.Warnings, order.Warnings...)

	products, nonCatalog, warnings, err := s.classifyProducts(ctx, order)
	if err != nil {
		report.Err = fmt.Sprintf("产品识别失败: %v", err)
		return report
	}
	report.NonCatalog = nonCatalog
	report.Warnings = append(report.Warnings, warnings...)

	if len(products) == 0 {
		report.Err = "订单无有效产品行"
		return report
	}

	plan := s.buildLogoPlan(order, products)
	services := s.buildServices(order)

	result, err := s.pricer.CalculateQuote(ctx, products, services, plan)
	if err != nil {
		if errors.Is(err, pricing.ErrConfigDegraded) {
			report.Err = fmt.Sprintf("定价配置降级，拒绝计算: %v", err)
		} else {
			report.Err = fmt.Sprintf("定价失败: %v", err)
		}
		return report
	}
	report.Result = result
	report.Warnings = append(report.Warnings, result.Warnings...)

	report.Audit = s.auditOrder(order, result)

	if !opts.Live {
		return report
	}
	if result.HasBlockingWarnings() {
		report.Err = "存在阻断性错误行，禁止落库"
		return report
	}

	session, err := s.quotes.SaveOrder(ctx, order, result, report.Audit)
	if err != nil {
		report.Err = fmt.Sprintf("落库失败: %v", err)
		return report
	}
	report.QuoteID = session.QuoteID

	// 等待写入可见后再回读校验
	if s.cfg.VerifyDelay > 0 {
		select {
		case <-ctx.Done():
			report.Err = ctx.Err().Error()
			return report
		case <-time.After(s.cfg.VerifyDelay):
		}
	}

	verify, err := s.quotes.Verify(ctx, session.QuoteID, order, len(result.Products))
	if err != nil {
		report.Err = fmt.Sprintf("校验失败: %v", err)
	} else {
		report.Verify = verify
	}

	if !opts.KeepData {
		report.Cleanup = s.quotes.Cleanup(ctx, session.QuoteID)
	}

	return report
}

// classifyProducts 归并尺码后缀款号并识别品类。
// 目录未命中的款号降级为客供品，沿用源单价作为覆盖价。
func (s *ImportService) classifyProducts(ctx context.Context, order *shopworks.ParsedOrder) ([]entity.ProductLine, []string, []string, error) {
	merged := MergeProducts(order.Products)

	var products []entity.ProductLine
	var nonCatalog, warnings []string
	for _, entry := range merged {
		if entry.Quantity <= 0 {
			continue
		}
		// 服务编码混入产品区时不得按产品计价
		if shopworks.IsKnownServiceCode(strings.ToUpper(entry.PartNumber)) {
			warnings = append(warnings,
				fmt.Sprintf("服务编码 %s 出现在产品区，已跳过定价", entry.PartNumber))
			continue
		}

		line := entity.ProductLine{
			Style:             entry.PartNumber,
			Color:             entry.Color,
			Title:             entry.Description,
			SizeBreakdown:     entry.Sizes,
			SourceUnitPrice:   entry.UnitPrice,
			EmbellishmentType: entity.EmbellishmentEmbroidery,
		}

		info, err := s.catalog.SearchStyle(ctx, entry.PartNumber)
		switch {
		case err == nil:
			line.IsCap = info.IsCap()
			line.Title = info.Title
			line.CatalogColor = entry.Color
		case errors.Is(err, catalog.ErrStyleNotFound):
			// 目录未命中：按客供品处理，锁定源价格
			line.SellPriceOverride = entry.UnitPrice
			line.EmbellishmentType = entity.ItemTypeCustomerSupplied
			line.IsCap = looksLikeCap(entry.Description)
			nonCatalog = append(nonCatalog, entry.PartNumber)
			warnings = append(warnings,
				fmt.Sprintf("款号 %s 目录未命中，按客供品处理 (单价 %.2f)", entry.PartNumber, entry.UnitPrice))
		default:
			return nil, nil, nil, fmt.Errorf("目录检索失败 (style=%s): %w", entry.PartNumber, err)
		}

		products = append(products, line)
	}
	return products, nonCatalog, warnings, nil
}

// MergeProducts 去除款号尺码后缀后按 基础款号||颜色 归并尺码表
func MergeProducts(entries []shopworks.ProductEntry) []shopworks.ProductEntry {
	merged := make(map[string]*shopworks.ProductEntry)
	var order []string
	for _, entry := range entries {
		base := shopworks.StripSizeSuffix(entry.PartNumber)
		key := base + "||" + entry.Color
		existing, ok := merged[key]
		if !ok {
			clone := entry
			clone.PartNumber = base
			clone.Sizes = append([]entity.SizeQuantity(nil), entry.Sizes...)
			merged[key] = &clone
			order = append(order, key)
			continue
		}
		for _, sq := range entry.Sizes {
			found := false
			for i := range existing.Sizes {
				if existing.Sizes[i].Size == sq.Size {
					existing.Sizes[i].Quantity += sq.Quantity
					found = true
					break
				}
			}
			if !found {
				existing.Sizes = append(existing.Sizes, sq)
			}
		}
		existing.Quantity += entry.Quantity
	}

	result := make([]shopworks.ProductEntry, 0, len(order))
	for _, key := range order {
		result = append(result, *merged[key])
	}
	return result
}

func looksLikeCap(description string) bool {
	lower := strings.ToLower(description)
	for _, kw := range capKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// buildLogoPlan 构造默认图标方案：衣类左胸主图标，帽类帽前主图标
func (s *ImportService) buildLogoPlan(order *shopworks.ParsedOrder, products []entity.ProductLine) entity.LogoPlan {
	plan := entity.LogoPlan{}
	hasGarments, hasCaps := false, false
	for _, p := range products {
		if p.IsCap {
			hasCaps = true
		} else {
			hasGarments = true
		}
	}

	needsDigitizing := order.Services.DigitizingCount > 0
	if hasGarments {
		plan.GarmentLogos = append(plan.GarmentLogos, entity.Logo{
			ID:                1,
			Position:          defaultGarmentPosition,
			StitchCount:       defaultGarmentStitches,
			NeedsDigitizing:   needsDigitizing,
			IsPrimary:         true,
			EmbellishmentType: entity.EmbellishmentEmbroidery,
		})
	}
	if hasCaps {
		plan.CapLogos = append(plan.CapLogos, entity.Logo{
			ID:                2,
			Position:          defaultCapPosition,
			StitchCount:       defaultCapStitches,
			NeedsDigitizing:   needsDigitizing && !hasGarments,
			IsPrimary:         true,
			EmbellishmentType: entity.EmbellishmentEmbroidery,
		})
	}
	return plan
}

// buildServices 源订单服务行转附加服务
func (s *ImportService) buildServices(order *shopworks.ParsedOrder) []entity.AdditionalService {
	var services []entity.AdditionalService
	for _, al := range order.Services.AdditionalLogos {
		svc := entity.AdditionalService{
			Code:        entity.ServiceAdditionalLogo,
			Position:    al.Position,
			StitchCount: al.StitchCount,
			Quantity:    al.Quantity,
			IsCap:       al.IsCap,
		}
		if al.Code == "FB" || strings.EqualFold(al.Position, "Full Back") {
			svc.Code = entity.ServiceFullBack
			if svc.StitchCount == 0 {
				svc.StitchCount = 25000
			}
		}
		if svc.StitchCount == 0 {
			svc.StitchCount = defaultGarmentStitches
		}
		services = append(services, svc)
	}
	return services
}

// auditOrder 以源订单小计为参考做只读价格审计
func (s *ImportService) auditOrder(order *shopworks.ParsedOrder, result *pricing.QuoteResult) *pricing.AuditReport {
	referenceLines := make(map[string]float64)
	for _, entry := range MergeProducts(order.Products) {
		referenceLines[entry.PartNumber+"|"+entry.Color] = float64(entry.Quantity) * entry.UnitPrice
	}
	return pricing.CompareOrder(result, order.OrderSummary.Subtotal, referenceLines)
}
