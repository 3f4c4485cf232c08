package pricing

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bitfantasy/stitchquote/internal/quote/entity"
	"github.com/bitfantasy/stitchquote/internal/shared/catalog"
)

// ErrCatalogPriceMissing 款式缺少目录价格，整单计算失败
var ErrCatalogPriceMissing = errors.New("catalog pricing unavailable for style")

// 基准尺码候选顺序
var (
	garmentBaseSizes = []string{"S", "M", "L", "XL"}
	capBaseSizes     = []string{"OSFA", "S/M", "M/L", "L/XL", "OS"}
)

// SnapshotSource 定价快照来源
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// PriceSource 款式尺码价格来源
type PriceSource interface {
	SizePricing(ctx context.Context, style string) (*catalog.SizePricing, error)
}

// Calculator 报价计算器。
// 除按款式惰性拉取一次目录价格外无任何副作用，
// 相同输入与相同快照下结果逐字节一致。
type Calculator struct {
	snapshots SnapshotSource
	prices    PriceSource
	logger    *zap.Logger
}

// NewCalculator 创建报价计算器
func NewCalculator(snapshots SnapshotSource, prices PriceSource, logger *zap.Logger) *Calculator {
	return &Calculator{snapshots: snapshots, prices: prices, logger: logger}
}

// CalculateQuote 对一组产品行与附加服务计算完整报价。
// 衣类与帽类是两个独立的定价总体，各自选阶梯、各自计 LTM。
func (c *Calculator) CalculateQuote(ctx context.Context, products []entity.ProductLine, services []entity.AdditionalService, plan entity.LogoPlan) (*QuoteResult, error) {
	snap, err := c.snapshots.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	result := &QuoteResult{}

	// 品类数量与公式计价数量（覆盖价尺码不参与 LTM 与针数附加费，
	// 部分覆盖的产品行其余尺码仍按公式计价并分摊）
	var garmentQty, capQty, garmentFormulaQty, capFormulaQty int
	for _, p := range products {
		qty := p.TotalQuantity()
		if p.IsCap {
			capQty += qty
			capFormulaQty += p.FormulaQuantity()
		} else {
			garmentQty += qty
			garmentFormulaQty += p.FormulaQuantity()
		}
	}
	result.GarmentQuantity = garmentQty
	result.CapQuantity = capQty

	var garmentTier, capTier *Tier
	if garmentQty > 0 {
		garmentTier, err = snap.Garment.TierFor(garmentQty)
		if err != nil {
			return nil, err
		}
		result.GarmentTier = garmentTier.Label
	}
	if capQty > 0 {
		capTier, err = snap.Cap.TierFor(capQty)
		if err != nil {
			return nil, err
		}
		result.CapTier = capTier.Label
	}

	// LTM：品类阶梯命中 LTM 且存在公式计价件数时按件分摊
	var garmentLTMPerUnit, capLTMPerUnit float64
	if garmentTier != nil && garmentTier.HasLTM && garmentFormulaQty > 0 {
		garmentLTMPerUnit = snap.LTMFee / float64(garmentFormulaQty)
		result.LTMTotal += snap.LTMFee
	}
	if capTier != nil && capTier.HasLTM && capFormulaQty > 0 {
		capLTMPerUnit = snap.LTMFee / float64(capFormulaQty)
		result.LTMTotal += snap.LTMFee
	}

	for _, p := range products {
		tier := garmentTier
		ltmPerUnit := garmentLTMPerUnit
		if p.IsCap {
			tier = capTier
			ltmPerUnit = capLTMPerUnit
		}
		pp, err := c.priceProduct(ctx, snap, p, tier, ltmPerUnit)
		if err != nil {
			return nil, err
		}
		if pp.FallbackBaseSize {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("款式 %s 无标准基准尺码，回退为最低价尺码 %s，需人工复核", p.Style, pp.BaseSize))
		}
		result.Products = append(result.Products, *pp)
		result.Subtotal = Round2(result.Subtotal + pp.Subtotal)
	}

	c.appendSetupFees(snap, plan, result)
	c.appendStitchSurcharges(snap, products, plan, garmentFormulaQty, capFormulaQty, result)
	c.appendEmbellishmentUpcharges(snap, products, result)
	c.appendServices(snap, services, garmentQty, capQty, result)

	for _, f := range result.Fees {
		result.FeeTotal = Round2(result.FeeTotal + f.Total)
	}
	for _, s := range result.Services {
		result.ServiceTotal = Round2(result.ServiceTotal + s.LineTotal)
	}
	result.GrandTotal = Round2(result.Subtotal + result.FeeTotal + result.ServiceTotal)

	return result, nil
}

// priceProduct 单个产品行计价。
// 覆盖价尺码绕过全部公式计算；其余尺码走 基准价/毛利系数+装饰成本 再取整，
// 取整之后叠加相对尺码加价。
func (c *Calculator) priceProduct(ctx context.Context, snap *Snapshot, p entity.ProductLine, tier *Tier, ltmPerUnit float64) (*ProductPricing, error) {
	rates := snap.RatesFor(p.IsCap)
	itemType := entity.ItemTypeEmbroidery
	if p.EmbellishmentType == entity.ItemTypeCustomerSupplied {
		itemType = entity.ItemTypeCustomerSupplied
	}
	pp := &ProductPricing{
		Style:         p.Style,
		Color:         p.Color,
		Title:         p.Title,
		IsCap:         p.IsCap,
		ItemType:      itemType,
		TotalQuantity: p.TotalQuantity(),
		HasOverride:   p.HasOverride(),
	}
	if tier != nil {
		pp.TierLabel = tier.Label
	}

	var overrideSizes, formulaSizes []entity.SizeQuantity
	for _, sq := range p.SizeBreakdown {
		if sq.Quantity <= 0 {
			continue
		}
		if _, ok := p.OverrideFor(sq.Size); ok {
			overrideSizes = append(overrideSizes, sq)
		} else {
			formulaSizes = append(formulaSizes, sq)
		}
	}

	// 覆盖价分组：按覆盖价聚合，保持首次出现顺序
	overrideGroups := make(map[float64]*SizeGroup)
	var overrideOrder []float64
	for _, sq := range overrideSizes {
		price, _ := p.OverrideFor(sq.Size)
		g, ok := overrideGroups[price]
		if !ok {
			g = &SizeGroup{Kind: LineOverride, UnitPrice: price, UnitPriceWithLTM: price}
			overrideGroups[price] = g
			overrideOrder = append(overrideOrder, price)
		}
		g.Sizes = append(g.Sizes, sq)
		g.Quantity += sq.Quantity
	}
	for _, price := range overrideOrder {
		g := overrideGroups[price]
		g.LineTotal = Round2(float64(g.Quantity) * g.UnitPrice)
		pp.Groups = append(pp.Groups, *g)
		pp.Subtotal = Round2(pp.Subtotal + g.LineTotal)
	}

	if len(formulaSizes) == 0 {
		return pp, nil
	}
	if tier == nil {
		return nil, fmt.Errorf("%w: style=%s", ErrNoTier, p.Style)
	}

	sp, err := c.prices.SizePricing(ctx, p.Style)
	if err != nil {
		return nil, fmt.Errorf("%w: style=%s: %v", ErrCatalogPriceMissing, p.Style, err)
	}

	baseSize, fallback := chooseBaseSize(sp, p.IsCap)
	if baseSize == "" {
		return nil, fmt.Errorf("%w: style=%s 无可用基准尺码", ErrCatalogPriceMissing, p.Style)
	}
	pp.BaseSize = baseSize
	pp.FallbackBaseSize = fallback

	baseUnit := rates.Round(sp.BasePrices[baseSize]/snap.MarginDenominator + tier.DecorationCost)
	baseUpcharge := sp.Upcharges[baseSize]

	// 公式计价分组：按相对加价聚合
	formulaGroups := make(map[float64]*SizeGroup)
	var formulaOrder []float64
	for _, sq := range formulaSizes {
		rel := sp.Upcharges[sq.Size] - baseUpcharge
		if rel < 0 {
			rel = 0
		}
		g, ok := formulaGroups[rel]
		if !ok {
			kind := LineStandard
			if rel > 0 {
				kind = LineUpcharge
			}
			g = &SizeGroup{
				Kind:             kind,
				Upcharge:         rel,
				UnitPrice:        Round2(baseUnit + rel),
				LTMPerUnit:       ltmPerUnit,
				UnitPriceWithLTM: Round2(baseUnit + rel + ltmPerUnit),
			}
			formulaGroups[rel] = g
			formulaOrder = append(formulaOrder, rel)
		}
		g.Sizes = append(g.Sizes, sq)
		g.Quantity += sq.Quantity
	}
	for _, rel := range formulaOrder {
		g := formulaGroups[rel]
		g.LineTotal = Round2(float64(g.Quantity) * (g.UnitPrice + g.LTMPerUnit))
		pp.Groups = append(pp.Groups, *g)
		pp.Subtotal = Round2(pp.Subtotal + g.LineTotal)
	}

	return pp, nil
}

// chooseBaseSize 选择基准尺码：优先标准尺码，否则回退为最低价尺码
func chooseBaseSize(sp *catalog.SizePricing, isCap bool) (string, bool) {
	candidates := garmentBaseSizes
	if isCap {
		candidates = capBaseSizes
	}
	for _, size := range candidates {
		if price, ok := sp.BasePrices[size]; ok && price > 0 {
			return size, false
		}
	}

	var best string
	var bestPrice float64
	for _, size := range sp.Sizes {
		price, ok := sp.BasePrices[size]
		if !ok || price <= 0 {
			continue
		}
		if best == "" || price < bestPrice {
			best = size
			bestPrice = price
		}
	}
	if best == "" {
		// 尺码顺序缺失时遍历价格表兜底
		for size, price := range sp.BasePrices {
			if price <= 0 {
				continue
			}
			if best == "" || price < bestPrice || (price == bestPrice && size < best) {
				best = size
				bestPrice = price
			}
		}
	}
	return best, best != ""
}

// appendSetupFees 制版相关费用：激光贴片走贴片制版价，其余走数码制版价
func (c *Calculator) appendSetupFees(snap *Snapshot, plan entity.LogoPlan, result *QuoteResult) {
	var digitizing, patchSetup int
	for _, logos := range [][]entity.Logo{plan.GarmentLogos, plan.CapLogos} {
		for _, logo := range logos {
			if !logo.NeedsDigitizing {
				continue
			}
			if logo.EmbellishmentType == entity.EmbellishmentLaserPatch {
				patchSetup++
			} else {
				digitizing++
			}
		}
	}
	if digitizing > 0 {
		total := Round2(float64(digitizing) * snap.DigitizingFee)
		result.Fees = append(result.Fees, FeeLine{
			Code:        entity.FeeDigitizing,
			Description: "Digitizing Setup",
			Quantity:    digitizing,
			UnitAmount:  snap.DigitizingFee,
			Total:       total,
		})
		result.SetupFeeTotal = Round2(result.SetupFeeTotal + total)
	}
	if patchSetup > 0 {
		total := Round2(float64(patchSetup) * snap.PatchSetupFee)
		result.Fees = append(result.Fees, FeeLine{
			Code:        entity.FeePatchSetup,
			Description: "Patch Setup",
			Quantity:    patchSetup,
			UnitAmount:  snap.PatchSetupFee,
			Total:       total,
		})
		result.SetupFeeTotal = Round2(result.SetupFeeTotal + total)
	}
}

// appendStitchSurcharges 针数附加费：按品类主图标针数分段，
// 每件一次，独立费用行，不并入单价；激光贴片帽不收。
func (c *Calculator) appendStitchSurcharges(snap *Snapshot, products []entity.ProductLine, plan entity.LogoPlan, garmentFormulaQty, capFormulaQty int, result *QuoteResult) {
	if logo := plan.PrimaryGarmentLogo(); logo != nil && garmentFormulaQty > 0 {
		fee := snap.Garment.StitchFee(logo.StitchCount)
		if fee > 0 {
			total := Round2(float64(garmentFormulaQty) * fee)
			result.Fees = append(result.Fees, FeeLine{
				Code:        entity.FeeStitchGarment,
				Description: fmt.Sprintf("Additional Stitches (%d)", logo.StitchCount),
				Quantity:    garmentFormulaQty,
				UnitAmount:  fee,
				Total:       total,
			})
			result.StitchSurchargeTotal = Round2(result.StitchSurchargeTotal + total)
		}
	}

	if logo := plan.PrimaryCapLogo(); logo != nil && capFormulaQty > 0 {
		if logo.EmbellishmentType == entity.EmbellishmentLaserPatch {
			return
		}
		// 激光贴片帽件数不计入
		qty := 0
		for _, p := range products {
			if p.IsCap && p.EmbellishmentType != entity.EmbellishmentLaserPatch {
				qty += p.FormulaQuantity()
			}
		}
		fee := snap.Cap.StitchFee(logo.StitchCount)
		if fee > 0 && qty > 0 {
			total := Round2(float64(qty) * fee)
			result.Fees = append(result.Fees, FeeLine{
				Code:        entity.FeeStitchCap,
				Description: fmt.Sprintf("Additional Stitches (%d)", logo.StitchCount),
				Quantity:    qty,
				UnitAmount:  fee,
				Total:       total,
			})
			result.StitchSurchargeTotal = Round2(result.StitchSurchargeTotal + total)
		}
	}
}

// appendEmbellishmentUpcharges 帽类工艺加价（3D 立体绣、激光贴片），按件计
func (c *Calculator) appendEmbellishmentUpcharges(snap *Snapshot, products []entity.ProductLine, result *QuoteResult) {
	var puffQty, patchQty int
	for _, p := range products {
		if !p.IsCap {
			continue
		}
		switch p.EmbellishmentType {
		case entity.Embellishment3DPuff:
			puffQty += p.TotalQuantity()
		case entity.EmbellishmentLaserPatch:
			patchQty += p.TotalQuantity()
		}
	}
	if puffQty > 0 && snap.PuffUpcharge > 0 {
		result.Fees = append(result.Fees, FeeLine{
			Code:        entity.FeePuffUpcharge,
			Description: "3D Puff Embroidery",
			Quantity:    puffQty,
			UnitAmount:  snap.PuffUpcharge,
			Total:       Round2(float64(puffQty) * snap.PuffUpcharge),
		})
	}
	if patchQty > 0 && snap.PatchUpcharge > 0 {
		result.Fees = append(result.Fees, FeeLine{
			Code:        entity.FeePatchUpcharge,
			Description: "Laser Patch",
			Quantity:    patchQty,
			UnitAmount:  snap.PatchUpcharge,
			Total:       Round2(float64(patchQty) * snap.PatchUpcharge),
		})
	}
}

// appendServices 附加图标与全背绣。
// 附加图标价不除毛利系数、不取整；缺少阶梯数据时产出零价错误行。
func (c *Calculator) appendServices(snap *Snapshot, services []entity.AdditionalService, garmentQty, capQty int, result *QuoteResult) {
	for _, svc := range services {
		rates := snap.RatesFor(svc.IsCap)
		categoryQty := garmentQty
		if svc.IsCap {
			categoryQty = capQty
		}

		if svc.Code == entity.ServiceFullBack {
			stitches := svc.StitchCount
			if stitches < snap.FBMinStitches {
				stitches = snap.FBMinStitches
			}
			unit := Round2(float64(stitches) / 1000 * rates.StitchRate)
			result.Services = append(result.Services, ServiceLine{
				Kind:        ServiceKindFullBack,
				Code:        svc.Code,
				Position:    svc.Position,
				StitchCount: svc.StitchCount,
				Quantity:    svc.Quantity,
				UnitPrice:   unit,
				LineTotal:   Round2(unit * float64(svc.Quantity)),
				IsCap:       svc.IsCap,
			})
			continue
		}

		alTier, ok := rates.ALTierFor(categoryQty)
		if !ok {
			result.Services = append(result.Services, ServiceLine{
				Kind:        ServiceKindError,
				Code:        svc.Code,
				Position:    svc.Position,
				StitchCount: svc.StitchCount,
				Quantity:    svc.Quantity,
				IsCap:       svc.IsCap,
				Error:       fmt.Sprintf("附加图标阶梯数据缺失 (qty=%d)", categoryQty),
			})
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("附加图标 %s 无阶梯数据，已置零价，禁止提交", svc.Position))
			continue
		}

		extra := svc.StitchCount - rates.ALBaseStitches
		if extra < 0 {
			extra = 0
		}
		unit := Round2(alTier.Cost + float64(extra)/1000*rates.StitchRate)
		result.Services = append(result.Services, ServiceLine{
			Kind:        ServiceKindAdditionalLogo,
			Code:        svc.Code,
			Position:    svc.Position,
			StitchCount: svc.StitchCount,
			Quantity:    svc.Quantity,
			UnitPrice:   unit,
			LineTotal:   Round2(unit * float64(svc.Quantity)),
			IsCap:       svc.IsCap,
		})
	}
}
