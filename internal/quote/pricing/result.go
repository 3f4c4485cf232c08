package pricing

import (
	"github.com/bitfantasy/stitchquote/internal/quote/entity"
)

// 产品分组行的类型（封闭集合）
const (
	LineStandard = "standard"
	LineOverride = "override"
	LineUpcharge = "upcharge"
)

// 服务行的类型（封闭集合）
const (
	ServiceKindAdditionalLogo = "additional-logo"
	ServiceKindFullBack       = "full-back"
	ServiceKindError          = "error"
)

// SizeGroup 同一单价的尺码分组
type SizeGroup struct {
	Kind             string                `json:"kind"`
	Sizes            []entity.SizeQuantity `json:"sizes"`
	Quantity         int                   `json:"quantity"`
	Upcharge         float64               `json:"upcharge"`
	UnitPrice        float64               `json:"unit_price"`
	LTMPerUnit       float64               `json:"ltm_per_unit"`
	UnitPriceWithLTM float64               `json:"unit_price_with_ltm"`
	LineTotal        float64               `json:"line_total"`
}

// ProductPricing 单个产品行的定价结果
type ProductPricing struct {
	Style            string      `json:"style"`
	Color            string      `json:"color"`
	Title            string      `json:"title"`
	IsCap            bool        `json:"is_cap"`
	ItemType         string      `json:"item_type"`
	TierLabel        string      `json:"tier_label"`
	TotalQuantity    int         `json:"total_quantity"`
	BaseSize         string      `json:"base_size"`
	FallbackBaseSize bool        `json:"fallback_base_size"`
	HasOverride      bool        `json:"has_override"`
	Groups           []SizeGroup `json:"groups"`
	Subtotal         float64     `json:"subtotal"`
}

// ServiceLine 附加服务行（附加图标、全背绣）
type ServiceLine struct {
	Kind        string  `json:"kind"`
	Code        string  `json:"code"`
	Position    string  `json:"position"`
	StitchCount int     `json:"stitch_count"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
	IsCap       bool    `json:"is_cap"`
	Error       string  `json:"error,omitempty"`
}

// FeeLine 费用行（制版、针数附加费、工艺加价等）
type FeeLine struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitAmount  float64 `json:"unit_amount"`
	Total       float64 `json:"total"`
}

// QuoteResult 一次报价计算的完整结果（不可变）
type QuoteResult struct {
	GarmentTier     string `json:"garment_tier,omitempty"`
	CapTier         string `json:"cap_tier,omitempty"`
	GarmentQuantity int    `json:"garment_quantity"`
	CapQuantity     int    `json:"cap_quantity"`

	Products []ProductPricing `json:"products"`
	Services []ServiceLine    `json:"services"`
	Fees     []FeeLine        `json:"fees"`

	Subtotal             float64 `json:"subtotal"`
	LTMTotal             float64 `json:"ltm_total"`
	SetupFeeTotal        float64 `json:"setup_fee_total"`
	StitchSurchargeTotal float64 `json:"stitch_surcharge_total"`
	FeeTotal             float64 `json:"fee_total"`
	ServiceTotal         float64 `json:"service_total"`
	GrandTotal           float64 `json:"grand_total"`

	Warnings []string `json:"warnings,omitempty"`
}

// HasBlockingWarnings 是否存在阻断性错误行
func (r *QuoteResult) HasBlockingWarnings() bool {
	for _, s := range r.Services {
		if s.Kind == ServiceKindError {
			return true
		}
	}
	return false
}
