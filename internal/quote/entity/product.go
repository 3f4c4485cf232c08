package entity

// 装饰工艺（帽类附加工艺）
const (
	EmbellishmentEmbroidery = "embroidery"
	Embellishment3DPuff     = "3d-puff"
	EmbellishmentLaserPatch = "laser-patch"
)

// SizeQuantity 单个尺码的数量（保持输入顺序）
type SizeQuantity struct {
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

// Logo 刺绣图标
type Logo struct {
	ID                int    `json:"id"`
	Position          string `json:"position"`
	StitchCount       int    `json:"stitch_count"`
	NeedsDigitizing   bool   `json:"needs_digitizing"`
	IsPrimary         bool   `json:"is_primary"`
	EmbellishmentType string `json:"embellishment_type"`
}

// LogoPlan 一次报价中衣类与帽类各自的图标方案
type LogoPlan struct {
	GarmentLogos []Logo `json:"garment_logos"`
	CapLogos     []Logo `json:"cap_logos"`
}

// PrimaryGarmentLogo 衣类主图标（无则返回 nil）
func (p LogoPlan) PrimaryGarmentLogo() *Logo {
	for i := range p.GarmentLogos {
		if p.GarmentLogos[i].IsPrimary {
			return &p.GarmentLogos[i]
		}
	}
	return nil
}

// PrimaryCapLogo 帽类主图标（无则返回 nil）
func (p LogoPlan) PrimaryCapLogo() *Logo {
	for i := range p.CapLogos {
		if p.CapLogos[i].IsPrimary {
			return &p.CapLogos[i]
		}
	}
	return nil
}

// ProductLine 待定价的产品行
type ProductLine struct {
	Style             string             `json:"style"`
	Color             string             `json:"color"`
	CatalogColor      string             `json:"catalog_color"`
	Title             string             `json:"title"`
	IsCap             bool               `json:"is_cap"`
	SizeBreakdown     []SizeQuantity     `json:"size_breakdown"`
	SellPriceOverride float64            `json:"sell_price_override"`
	SizeOverrides     map[string]float64 `json:"size_overrides,omitempty"`
	EmbellishmentType string             `json:"embellishment_type"`
	SourceUnitPrice   float64            `json:"source_unit_price"`
}

// TotalQuantity 各尺码数量之和
func (p ProductLine) TotalQuantity() int {
	total := 0
	for _, sq := range p.SizeBreakdown {
		total += sq.Quantity
	}
	return total
}

// HasOverride 是否存在任一价格覆盖
func (p ProductLine) HasOverride() bool {
	return p.SellPriceOverride > 0 || len(p.SizeOverrides) > 0
}

// FormulaQuantity 公式计价的件数（覆盖价尺码不计）
func (p ProductLine) FormulaQuantity() int {
	total := 0
	for _, sq := range p.SizeBreakdown {
		if _, ok := p.OverrideFor(sq.Size); ok {
			continue
		}
		total += sq.Quantity
	}
	return total
}

// OverrideFor 指定尺码的覆盖价（尺码级优先于整行级）
func (p ProductLine) OverrideFor(size string) (float64, bool) {
	if v, ok := p.SizeOverrides[size]; ok && v > 0 {
		return v, true
	}
	if p.SellPriceOverride > 0 {
		return p.SellPriceOverride, true
	}
	return 0, false
}

// AdditionalService 附加服务（附加图标、全背绣等）
type AdditionalService struct {
	Code        string `json:"code"`
	Position    string `json:"position"`
	StitchCount int    `json:"stitch_count"`
	Quantity    int    `json:"quantity"`
	IsCap       bool   `json:"is_cap"`
}

// 附加服务编码
const (
	ServiceAdditionalLogo = "AL"
	ServiceFullBack       = "FB"
	ServiceMonogram       = "MONOGRAM"
	ServiceWeight         = "WEIGHT"
)
