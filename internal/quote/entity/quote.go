package entity

import (
	"time"
)

// QuoteStatus 报价单状态
const (
	QuoteStatusOpen      = "Open"
	QuoteStatusConverted = "Converted"
	QuoteStatusExpired   = "Expired"
)

// 明细行装饰类型（封闭集合）
const (
	ItemTypeEmbroidery           = "embroidery"
	ItemTypeEmbroideryAdditional = "embroidery-additional"
	ItemTypeCustomerSupplied     = "customer-supplied"
	ItemTypeFee                  = "fee"
	ItemTypeMonogram             = "monogram"
)

// ValidItemTypes 合法的明细行装饰类型
var ValidItemTypes = []string{
	ItemTypeEmbroidery,
	ItemTypeEmbroideryAdditional,
	ItemTypeCustomerSupplied,
	ItemTypeFee,
	ItemTypeMonogram,
}

// 费用行编号（封闭集合）
const (
	FeeStitchGarment  = "AS-Garm"
	FeeStitchCap      = "AS-CAP"
	FeeDigitizing     = "DD"
	FeePatchSetup     = "GRT-50"
	FeeGraphicDesign  = "GRT-75"
	FeeRush           = "RUSH"
	FeeSample         = "SAMPLE"
	FeeDiscount       = "DISCOUNT"
	FeePuffUpcharge   = "3D-EMB"
	FeePatchUpcharge  = "Laser Patch"
	FeeShipping       = "SHIP"
	FeeTax            = "TAX"
	FeeMonogram       = "Monogram"
	FeeName           = "NAME"
	FeeWeight         = "WEIGHT"
)

// ValidFeeCodes 合法的费用行编号
var ValidFeeCodes = []string{
	FeeStitchGarment, FeeStitchCap, FeeDigitizing, FeePatchSetup,
	FeeGraphicDesign, FeeRush, FeeSample, FeeDiscount, FeePuffUpcharge,
	FeePatchUpcharge, FeeShipping, FeeTax, FeeMonogram, FeeName, FeeWeight,
}

// QuoteSession 报价会话（导入订单的持久化头）
type QuoteSession struct {
	ID              string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	QuoteID         string     `json:"quote_id" gorm:"size:50;not null;uniqueIndex"`
	SessionID       string     `json:"session_id" gorm:"size:100;not null"`
	Status          string     `json:"status" gorm:"size:20;not null;default:Open"`
	CustomerName    string     `json:"customer_name" gorm:"size:128"`
	CompanyName     string     `json:"company_name" gorm:"size:128"`
	CustomerEmail   string     `json:"customer_email" gorm:"size:128"`
	Phone           string     `json:"phone" gorm:"size:32"`
	SalesRepName    string     `json:"sales_rep_name" gorm:"size:128"`
	SalesRepEmail   string     `json:"sales_rep_email" gorm:"size:128"`
	OrderNumber     string     `json:"order_number" gorm:"size:50;index"`
	PONumber        string     `json:"po_number" gorm:"size:50"`
	ShipToStreet    string     `json:"ship_to_street" gorm:"size:200"`
	ShipToCity      string     `json:"ship_to_city" gorm:"size:100"`
	ShipToState     string     `json:"ship_to_state" gorm:"size:10"`
	ShipToZip       string     `json:"ship_to_zip" gorm:"size:20"`
	TotalQuantity   int        `json:"total_quantity" gorm:"not null;default:0"`
	SubtotalAmount  float64    `json:"subtotal_amount" gorm:"type:decimal(12,2);default:0"`
	LTMFeeTotal     float64    `json:"ltm_fee_total" gorm:"type:decimal(12,2);default:0"`
	TaxRate         float64    `json:"tax_rate" gorm:"type:decimal(8,5);default:0"`
	TaxAmount       float64    `json:"tax_amount" gorm:"type:decimal(12,2);default:0"`
	TotalAmount     float64    `json:"total_amount" gorm:"type:decimal(12,2);default:0"`
	SWTotal         float64    `json:"sw_total" gorm:"type:decimal(12,2);default:0"`
	SWSubtotal      float64    `json:"sw_subtotal" gorm:"type:decimal(12,2);default:0"`
	DigitizingCodes string     `json:"digitizing_codes" gorm:"size:200"`
	PriceAuditJSON  string     `json:"price_audit_json" gorm:"type:text"`
	Notes           string     `json:"notes" gorm:"type:text"`
	ExpiresAt       *time.Time `json:"expires_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	Items []QuoteItem `json:"items,omitempty" gorm:"foreignKey:QuoteID;references:QuoteID"`
}

func (QuoteSession) TableName() string {
	return "quote_sessions"
}

// QuoteItem 报价明细行
type QuoteItem struct {
	ID                string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	QuoteID           string    `json:"quote_id" gorm:"size:50;not null;index"`
	LineNumber        int       `json:"line_number" gorm:"not null"`
	StyleNumber       string    `json:"style_number" gorm:"size:64;not null"`
	ProductName       string    `json:"product_name" gorm:"size:200"`
	Color             string    `json:"color" gorm:"size:64"`
	EmbellishmentType string    `json:"embellishment_type" gorm:"size:32;not null"`
	Quantity          int       `json:"quantity" gorm:"not null"`
	BaseUnitPrice     float64   `json:"base_unit_price" gorm:"type:decimal(12,2);default:0"`
	LTMPerUnit        float64   `json:"ltm_per_unit" gorm:"type:decimal(12,4);default:0"`
	FinalUnitPrice    float64   `json:"final_unit_price" gorm:"type:decimal(12,2);default:0"`
	LineTotal         float64   `json:"line_total" gorm:"type:decimal(12,2);default:0"`
	SizeBreakdown     string    `json:"size_breakdown" gorm:"type:text"`
	PricingTier       string    `json:"pricing_tier" gorm:"size:20"`
	StitchCount       int       `json:"stitch_count" gorm:"default:0"`
	HasOverride       bool      `json:"has_override" gorm:"default:false"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (QuoteItem) TableName() string {
	return "quote_items"
}

// QuoteSequence 报价单号序列（按前缀+年份递增）
type QuoteSequence struct {
	ID      string `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Prefix  string `json:"prefix" gorm:"size:10;not null;uniqueIndex:idx_quote_seq_prefix_year"`
	Year    int    `json:"year" gorm:"not null;uniqueIndex:idx_quote_seq_prefix_year"`
	LastSeq int    `json:"last_seq" gorm:"not null;default:0"`
}

func (QuoteSequence) TableName() string {
	return "quote_sequences"
}
