package shopworks

import (
	"github.com/bitfantasy/stitchquote/internal/quote/entity"
)

// Customer 订单客户信息
type Customer struct {
	CustomerID  string `json:"customer_id"`
	Company     string `json:"company"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
}

// SalesRep 销售代表
type SalesRep struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ShippingAddress 收货地址
type ShippingAddress struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
	Method string `json:"method"`
}

// ProductEntry 源订单中的产品行
type ProductEntry struct {
	PartNumber  string                `json:"part_number"`
	Color       string                `json:"color"`
	Description string                `json:"description"`
	Sizes       []entity.SizeQuantity `json:"sizes"`
	Quantity    int                   `json:"quantity"`
	UnitPrice   float64               `json:"unit_price"`
}

// ServiceEntry 源订单中的服务行
type ServiceEntry struct {
	Code        string  `json:"code"`
	Description string  `json:"description"`
	Position    string  `json:"position"`
	StitchCount int     `json:"stitch_count"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	IsCap       bool    `json:"is_cap"`
}

// Services 按类别归集的服务行
type Services struct {
	DigitizingCount int            `json:"digitizing_count"`
	DigitizingCodes []string       `json:"digitizing_codes"`
	AdditionalLogos []ServiceEntry `json:"additional_logos"`
	Monograms       []ServiceEntry `json:"monograms"`
	Weights         []ServiceEntry `json:"weights"`
	Rush            float64        `json:"rush"`
	ArtCharges      float64        `json:"art_charges"`
	GraphicDesign   float64        `json:"graphic_design"`
	PatchSetup      float64        `json:"patch_setup"`
	Shipping        float64        `json:"shipping"`
}

// OrderSummary 源订单金额汇总
type OrderSummary struct {
	Subtotal   float64 `json:"subtotal"`
	Total      float64 `json:"total"`
	TaxRate    float64 `json:"tax_rate"`
	SalesTax   float64 `json:"sales_tax"`
	Shipping   float64 `json:"shipping"`
	PaidToDate float64 `json:"paid_to_date"`
	Balance    float64 `json:"balance"`
}

// ParsedOrder 解析后的 ShopWorks 订单
type ParsedOrder struct {
	OrderID             string          `json:"order_id"`
	Customer            Customer        `json:"customer"`
	SalesRep            SalesRep        `json:"sales_rep"`
	Products            []ProductEntry  `json:"products"`
	DECGItems           []ProductEntry  `json:"decg_items"`
	Services            Services        `json:"services"`
	OrderSummary        OrderSummary    `json:"order_summary"`
	Shipping            ShippingAddress `json:"shipping"`
	Notes               []string        `json:"notes,omitempty"`
	Warnings            []string        `json:"warnings,omitempty"`
	UnmatchedLines      []string        `json:"unmatched_lines,omitempty"`
	DesignNumbers       []string        `json:"design_numbers,omitempty"`
	PaymentTerms        string          `json:"payment_terms"`
	PurchaseOrderNumber string          `json:"purchase_order_number"`
}

// Parser 订单文本解析器
type Parser interface {
	Parse(text string) (*ParsedOrder, error)
}

// 已知服务编码表（兜底，配置服务可覆盖）
var KnownServiceCodes = []string{
	"MONOGRAM", "NAME", "NAMES", "WEIGHT", "AL", "DD", "FB", "CB", "CS",
	"GRT-50", "GRT-75", "RUSH", "ART", "LTM", "SEG", "SHIP", "SHIPPING",
	"FREIGHT", "DECG", "DECC", "AS-GARM", "AS-CAP",
	"DGT-001", "DGT-002", "DGT-003", "DGT-004",
}
