package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bitfantasy/stitchquote/internal/config"
	"github.com/bitfantasy/stitchquote/internal/quote/entity"
	"github.com/bitfantasy/stitchquote/internal/quote/pricing"
	"github.com/bitfantasy/stitchquote/internal/shared/shopworks"
)

// 源订单未定价的服务默认单价
const (
	defaultMonogramFee = 12.50
	defaultWeightFee   = 6.25
)

// QuoteService 报价会话持久化、校验与清理
type QuoteService struct {
	sessions  SessionStore
	items     ItemStore
	sequences SequenceSource
	cfg       config.ImportConfig
	logger    *zap.Logger
}

// NewQuoteService 创建报价服务
func NewQuoteService(sessions SessionStore, items ItemStore, sequences SequenceSource, cfg config.ImportConfig, logger *zap.Logger) *QuoteService {
	return &QuoteService{
		sessions:  sessions,
		items:     items,
		sequences: sequences,
		cfg:       cfg,
		logger:    logger,
	}
}

// GetQuote 按报价单号读取会话与明细
func (s *QuoteService) GetQuote(ctx context.Context, quoteID string) (*entity.QuoteSession, error) {
	return s.sessions.FindByQuoteIDWithItems(ctx, quoteID)
}

// SaveOrder 将定价结果持久化为报价会话与明细行。
// 明细顺序固定：产品 → 附加服务 → 客供品 → 费用行，行号单调递增。
func (s *QuoteService) SaveOrder(ctx context.Context, order *shopworks.ParsedOrder, result *pricing.QuoteResult, audit *pricing.AuditReport) (*entity.QuoteSession, error) {
	now := time.Now()
	quoteID, err := s.sequences.NextQuoteID(ctx, s.cfg.QuotePrefix, now)
	if err != nil {
		return nil, err
	}

	session, items := s.buildRecords(quoteID, now, order, result, audit)

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("创建报价会话失败: %w", err)
	}
	if err := s.items.BatchCreate(ctx, items); err != nil {
		return nil, fmt.Errorf("创建报价明细失败: %w", err)
	}

	s.logger.Info("quote saved",
		zap.String("quote_id", quoteID),
		zap.String("order_number", order.OrderID),
		zap.Int("items", len(items)),
		zap.Float64("total", session.TotalAmount))
	return session, nil
}

func (s *QuoteService) buildRecords(quoteID string, now time.Time, order *shopworks.ParsedOrder, result *pricing.QuoteResult, audit *pricing.AuditReport) (*entity.QuoteSession, []entity.QuoteItem) {
	var items []entity.QuoteItem
	line := 0
	next := func() int {
		line++
		return line
	}

	// 产品行：每个尺码分组一行，目录未命中的行保留客供品标记
	for _, pp := range result.Products {
		itemType := pp.ItemType
		if itemType == "" {
			itemType = entity.ItemTypeEmbroidery
		}
		for _, g := range pp.Groups {
			breakdown, _ := json.Marshal(g.Sizes)
			items = append(items, entity.QuoteItem{
				QuoteID:           quoteID,
				LineNumber:        next(),
				StyleNumber:       pp.Style,
				ProductName:       pp.Title,
				Color:             pp.Color,
				EmbellishmentType: itemType,
				Quantity:          g.Quantity,
				BaseUnitPrice:     g.UnitPrice,
				LTMPerUnit:        g.LTMPerUnit,
				FinalUnitPrice:    pricing.Round2(g.UnitPriceWithLTM),
				LineTotal:         g.LineTotal,
				SizeBreakdown:     string(breakdown),
				PricingTier:       pp.TierLabel,
				HasOverride:       g.Kind == pricing.LineOverride,
			})
		}
	}

	// 附加服务行
	for _, svc := range result.Services {
		items = append(items, entity.QuoteItem{
			QuoteID:           quoteID,
			LineNumber:        next(),
			StyleNumber:       svc.Code,
			ProductName:       fmt.Sprintf("Additional Logo: %s (%d stitches)", svc.Position, svc.StitchCount),
			EmbellishmentType: entity.ItemTypeEmbroideryAdditional,
			Quantity:          svc.Quantity,
			BaseUnitPrice:     svc.UnitPrice,
			FinalUnitPrice:    svc.UnitPrice,
			LineTotal:         svc.LineTotal,
			StitchCount:       svc.StitchCount,
		})
	}

	// 客供品行（DECG/DECC）
	var decgTotal float64
	for _, d := range order.DECGItems {
		total := pricing.Round2(float64(d.Quantity) * d.UnitPrice)
		decgTotal = pricing.Round2(decgTotal + total)
		breakdown, _ := json.Marshal(d.Sizes)
		items = append(items, entity.QuoteItem{
			QuoteID:           quoteID,
			LineNumber:        next(),
			StyleNumber:       d.PartNumber,
			ProductName:       d.Description,
			Color:             d.Color,
			EmbellishmentType: entity.ItemTypeCustomerSupplied,
			Quantity:          d.Quantity,
			BaseUnitPrice:     d.UnitPrice,
			FinalUnitPrice:    d.UnitPrice,
			LineTotal:         total,
			SizeBreakdown:     string(breakdown),
		})
	}

	feeItem := func(code, name string, qty int, unit float64, itemType string) entity.QuoteItem {
		return entity.QuoteItem{
			QuoteID:           quoteID,
			LineNumber:        next(),
			StyleNumber:       code,
			ProductName:       name,
			EmbellishmentType: itemType,
			Quantity:          qty,
			BaseUnitPrice:     unit,
			FinalUnitPrice:    unit,
			LineTotal:         pricing.Round2(float64(qty) * unit),
		}
	}

	// 引擎产出的费用行（制版、针数附加费、工艺加价）
	for _, fee := range result.Fees {
		items = append(items, feeItem(fee.Code, fee.Description, fee.Quantity, fee.UnitAmount, entity.ItemTypeFee))
	}

	// 源订单带入的服务费用
	var monogramTotal, weightTotal float64
	for _, m := range order.Services.Monograms {
		unit := m.UnitPrice
		if unit <= 0 {
			unit = defaultMonogramFee
		}
		item := feeItem(entity.FeeMonogram, "Monogram", m.Quantity, unit, entity.ItemTypeMonogram)
		monogramTotal = pricing.Round2(monogramTotal + item.LineTotal)
		items = append(items, item)
	}
	for _, w := range order.Services.Weights {
		unit := w.UnitPrice
		if unit <= 0 {
			unit = defaultWeightFee
		}
		item := feeItem(entity.FeeWeight, "Garment Weighting", w.Quantity, unit, entity.ItemTypeFee)
		weightTotal = pricing.Round2(weightTotal + item.LineTotal)
		items = append(items, item)
	}
	if order.Services.GraphicDesign > 0 {
		items = append(items, feeItem(entity.FeeGraphicDesign, "Graphic Design", 1, order.Services.GraphicDesign, entity.ItemTypeFee))
	}
	if order.Services.ArtCharges > 0 {
		items = append(items, feeItem(entity.FeeGraphicDesign, "Art Charges", 1, order.Services.ArtCharges, entity.ItemTypeFee))
	}
	if order.Services.Rush > 0 {
		items = append(items, feeItem(entity.FeeRush, "Rush Production", 1, order.Services.Rush, entity.ItemTypeFee))
	}
	shipping := order.Services.Shipping
	if shipping == 0 {
		shipping = order.OrderSummary.Shipping
	}
	if shipping > 0 {
		items = append(items, feeItem(entity.FeeShipping, "Shipping", 1, shipping, entity.ItemTypeFee))
	}

	// 税：计税基数 = 定价总额 + 客供品 + 各项服务费
	taxableBase := pricing.Round2(result.GrandTotal + decgTotal + order.Services.ArtCharges +
		order.Services.GraphicDesign + order.Services.Rush + shipping + monogramTotal + weightTotal)
	taxAmount := pricing.Round2(taxableBase * order.OrderSummary.TaxRate)
	if taxAmount > 0 {
		items = append(items, feeItem(entity.FeeTax, "Sales Tax", 1, taxAmount, entity.ItemTypeFee))
	}
	totalAmount := pricing.Round2(taxableBase + taxAmount)

	var auditJSON string
	if audit != nil {
		if data, err := json.Marshal(audit); err == nil {
			auditJSON = string(data)
		}
	}

	expires := now.AddDate(0, 0, s.cfg.ExpireDays)
	session := &entity.QuoteSession{
		QuoteID:         quoteID,
		SessionID:       fmt.Sprintf("emb_batch_%d_%04d", now.Unix(), rand.Intn(10000)),
		Status:          entity.QuoteStatusOpen,
		CustomerName:    order.Customer.ContactName,
		CompanyName:     order.Customer.Company,
		CustomerEmail:   order.Customer.Email,
		Phone:           order.Customer.Phone,
		SalesRepName:    order.SalesRep.Name,
		SalesRepEmail:   order.SalesRep.Email,
		OrderNumber:     order.OrderID,
		PONumber:        order.PurchaseOrderNumber,
		ShipToStreet:    order.Shipping.Street,
		ShipToCity:      order.Shipping.City,
		ShipToState:     order.Shipping.State,
		ShipToZip:       order.Shipping.Zip,
		TotalQuantity:   result.GarmentQuantity + result.CapQuantity,
		SubtotalAmount:  pricing.Round2(result.Subtotal + decgTotal + monogramTotal + weightTotal),
		LTMFeeTotal:     result.LTMTotal,
		TaxRate:         order.OrderSummary.TaxRate,
		TaxAmount:       taxAmount,
		TotalAmount:     totalAmount,
		SWTotal:         order.OrderSummary.Total,
		SWSubtotal:      order.OrderSummary.Subtotal,
		DigitizingCodes: strings.Join(order.Services.DigitizingCodes, ","),
		PriceAuditJSON:  auditJSON,
		Notes:           strings.Join(order.Notes, "\n"),
		ExpiresAt:       &expires,
	}
	return session, items
}

// ========== 校验 ==========

// Check 单项校验结果
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// VerifyReport 持久化后的整单校验报告
type VerifyReport struct {
	QuoteID string  `json:"quote_id"`
	Checks  []Check `json:"checks"`
}

// PassCount 通过的检查项数
func (r *VerifyReport) PassCount() int {
	n := 0
	for _, c := range r.Checks {
		if c.Passed {
			n++
		}
	}
	return n
}

// Passed 是否全部通过
func (r *VerifyReport) Passed() bool {
	return r.PassCount() == len(r.Checks)
}

// Verify 重新读取会话与明细，对照源订单逐项核验
func (s *QuoteService) Verify(ctx context.Context, quoteID string, order *shopworks.ParsedOrder, expectedProducts int) (*VerifyReport, error) {
	report := &VerifyReport{QuoteID: quoteID}
	add := func(name string, passed bool, detail string) {
		report.Checks = append(report.Checks, Check{Name: name, Passed: passed, Detail: detail})
	}

	session, err := s.sessions.FindByQuoteIDWithItems(ctx, quoteID)
	if err != nil {
		add("session-found", false, err.Error())
		return report, nil
	}
	add("session-found", session.QuoteID == quoteID, session.QuoteID)
	add("status-open", session.Status == entity.QuoteStatusOpen, session.Status)

	items := session.Items
	add("items-saved", len(items) > 0, fmt.Sprintf("%d items", len(items)))

	productCount := 0
	var itemsTotal float64
	quoteIDsOK := true
	typesOK := true
	feeCodesOK := true
	pricesOK := true
	breakdownsOK := true
	for _, it := range items {
		itemsTotal += it.LineTotal
		if it.QuoteID != quoteID {
			quoteIDsOK = false
		}
		if !contains(entity.ValidItemTypes, it.EmbellishmentType) {
			typesOK = false
		}
		switch it.EmbellishmentType {
		case entity.ItemTypeEmbroidery, entity.ItemTypeCustomerSupplied:
			productCount++
			if it.EmbellishmentType == entity.ItemTypeEmbroidery && it.FinalUnitPrice <= 0 {
				pricesOK = false
			}
			if it.SizeBreakdown == "" || it.SizeBreakdown == "null" || it.SizeBreakdown == "[]" {
				breakdownsOK = false
			}
		case entity.ItemTypeFee, entity.ItemTypeMonogram:
			if !contains(entity.ValidFeeCodes, it.StyleNumber) {
				feeCodesOK = false
			}
		}
	}

	add("product-count", productCount >= expectedProducts,
		fmt.Sprintf("saved=%d expected>=%d", productCount, expectedProducts))
	add("total-math", math.Abs(itemsTotal-session.TotalAmount) < s.cfg.TotalTolerance,
		fmt.Sprintf("items=%.2f session=%.2f", itemsTotal, session.TotalAmount))
	add("customer-data", session.CustomerName != "" || session.CompanyName != "", "")
	add("item-quote-ids", quoteIDsOK, "")
	add("item-types", typesOK, "")
	add("fee-part-numbers", feeCodesOK, "")
	add("product-prices-nonzero", pricesOK, "")
	add("size-breakdowns", breakdownsOK, "")

	// 字段往返核验
	add("roundtrip-total-quantity", session.TotalQuantity > 0, fmt.Sprintf("%d", session.TotalQuantity))
	add("roundtrip-customer-name", session.CustomerName == order.Customer.ContactName, session.CustomerName)
	add("roundtrip-company-name", session.CompanyName == order.Customer.Company, session.CompanyName)
	add("roundtrip-tax-rate", math.Abs(session.TaxRate-order.OrderSummary.TaxRate) < 0.001,
		fmt.Sprintf("%.5f", session.TaxRate))
	add("roundtrip-order-number", session.OrderNumber == order.OrderID, session.OrderNumber)
	add("roundtrip-ship-to-state", session.ShipToState == order.Shipping.State, session.ShipToState)
	add("roundtrip-digitizing-codes",
		session.DigitizingCodes == strings.Join(order.Services.DigitizingCodes, ","), session.DigitizingCodes)
	add("roundtrip-sw-total", math.Abs(session.SWTotal-order.OrderSummary.Total) < 0.01,
		fmt.Sprintf("%.2f", session.SWTotal))
	add("roundtrip-sw-subtotal", math.Abs(session.SWSubtotal-order.OrderSummary.Subtotal) < 0.01,
		fmt.Sprintf("%.2f", session.SWSubtotal))
	if order.OrderSummary.SalesTax > 0 {
		add("roundtrip-tax-amount", math.Abs(session.TaxAmount-order.OrderSummary.SalesTax) < s.cfg.TotalTolerance,
			fmt.Sprintf("ours=%.2f source=%.2f", session.TaxAmount, order.OrderSummary.SalesTax))
	}

	return report, nil
}

// ========== 清理 ==========

// CleanupResult 清理统计
type CleanupResult struct {
	ItemsDeleted    int64    `json:"items_deleted"`
	SessionsDeleted int64    `json:"sessions_deleted"`
	Errors          []string `json:"errors,omitempty"`
}

// Cleanup 删除会话及其明细（先明细后会话），尽力而为，可重复执行
func (s *QuoteService) Cleanup(ctx context.Context, quoteID string) *CleanupResult {
	result := &CleanupResult{}

	deleted, err := s.items.DeleteByQuoteID(ctx, quoteID)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("删除明细失败: %v", err))
	}
	result.ItemsDeleted = deleted

	deleted, err = s.sessions.DeleteByQuoteID(ctx, quoteID)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("删除会话失败: %v", err))
	}
	result.SessionsDeleted = deleted

	s.logger.Info("quote cleanup",
		zap.String("quote_id", quoteID),
		zap.Int64("items_deleted", result.ItemsDeleted),
		zap.Int64("sessions_deleted", result.SessionsDeleted),
		zap.Int("errors", len(result.Errors)))
	return result
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
