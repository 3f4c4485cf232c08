package shopworks

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bitfantasy/stitchquote/internal/quote/entity"
)

// ErrNoOrderMarker 文本块缺少 Order #: 标记
var ErrNoOrderMarker = errors.New("missing Order #: marker")

var (
	batchDelimiterRe = regexp.MustCompile(`(?m)^={10,}\s*ORDER\s+\d+\s*={10,}\s*$`)
	orderMarkerRe    = regexp.MustCompile(`(?m)^Order\s*#:\s*(\S+)`)
	repRe            = regexp.MustCompile(`^(.*?)\s*<([^>]+)>$`)
	shipToRe         = regexp.MustCompile(`^(.*?),\s*([^,]+),\s*([A-Z]{2})\s+(\d{5}(?:-\d{4})?)$`)
	sizeTokenRe      = regexp.MustCompile(`^([A-Za-z0-9/]+):(\d+)$`)
	serviceLineRe    = regexp.MustCompile(`^([A-Za-z0-9-]+)(?:\s*\|\s*([^|]+?)\s*\|\s*(\d+)\s*\|)?\s*(?:x(\d+))?\s*(?:@\s*([\d.]+))?$`)
	percentRe        = regexp.MustCompile(`([\d.]+)\s*%`)
)

// 尺码别名归一化
var sizeAliases = map[string]string{
	"SM": "S", "SMALL": "S",
	"MD": "M", "MED": "M", "MEDIUM": "M",
	"LG": "L", "LARGE": "L",
	"XLG": "XL", "XLARGE": "XL",
	"2X": "2XL", "XXL": "2XL",
	"3X": "3XL", "XXXL": "3XL",
	"4X": "4XL", "5X": "5XL", "6X": "6XL",
}

// SplitBatch 按订单分隔线切分批量文档，丢弃不含 Order #: 的块
func SplitBatch(text string) []string {
	parts := batchDelimiterRe.Split(text, -1)
	var chunks []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !orderMarkerRe.MatchString(part) {
			continue
		}
		chunks = append(chunks, part)
	}
	return chunks
}

// TextParser 固定标签格式的订单文本解析器
type TextParser struct{}

// NewTextParser 创建订单文本解析器
func NewTextParser() *TextParser {
	return &TextParser{}
}

// Parse 解析单个订单文本块
func (p *TextParser) Parse(text string) (*ParsedOrder, error) {
	m := orderMarkerRe.FindStringSubmatch(text)
	if m == nil {
		return nil, ErrNoOrderMarker
	}

	order := &ParsedOrder{OrderID: m[1]}
	section := ""

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		switch strings.ToUpper(line) {
		case "PRODUCTS", "SERVICES", "SUMMARY", "NOTES":
			section = strings.ToUpper(line)
			continue
		}

		if key, value, ok := splitLabel(line); ok && section == "" {
			p.applyHeader(order, key, value)
			continue
		}

		switch section {
		case "PRODUCTS":
			if entry, err := parseProductLine(line); err == nil {
				if strings.HasPrefix(strings.ToUpper(entry.PartNumber), "DECG") ||
					strings.HasPrefix(strings.ToUpper(entry.PartNumber), "DECC") {
					order.DECGItems = append(order.DECGItems, *entry)
				} else {
					order.Products = append(order.Products, *entry)
				}
			} else {
				order.UnmatchedLines = append(order.UnmatchedLines, line)
			}
		case "SERVICES":
			if !p.applyService(order, line) {
				order.UnmatchedLines = append(order.UnmatchedLines, line)
			}
		case "SUMMARY":
			if key, value, ok := splitLabel(line); ok {
				p.applySummary(order, key, value)
			} else {
				order.UnmatchedLines = append(order.UnmatchedLines, line)
			}
		case "NOTES":
			order.Notes = append(order.Notes, line)
		default:
			order.UnmatchedLines = append(order.UnmatchedLines, line)
		}
	}

	return order, nil
}

func splitLabel(line string) (key, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

func (p *TextParser) applyHeader(order *ParsedOrder, key, value string) {
	switch strings.ToUpper(key) {
	case "ORDER #":
		// 已在入口处理
	case "TERMS":
		order.PaymentTerms = value
	case "PO #", "PO":
		order.PurchaseOrderNumber = value
	case "CUSTOMER ID":
		order.Customer.CustomerID = value
	case "COMPANY":
		order.Customer.Company = value
	case "CONTACT":
		order.Customer.ContactName = value
	case "EMAIL":
		order.Customer.Email = value
	case "PHONE":
		order.Customer.Phone = value
	case "REP":
		if m := repRe.FindStringSubmatch(value); m != nil {
			order.SalesRep.Name = strings.TrimSpace(m[1])
			order.SalesRep.Email = m[2]
		} else {
			order.SalesRep.Name = value
		}
	case "SHIP TO":
		if m := shipToRe.FindStringSubmatch(value); m != nil {
			order.Shipping.Street = m[1]
			order.Shipping.City = m[2]
			order.Shipping.State = m[3]
			order.Shipping.Zip = m[4]
		} else {
			order.Shipping.Street = value
		}
	case "SHIP METHOD":
		order.Shipping.Method = value
	case "DESIGN #":
		order.DesignNumbers = append(order.DesignNumbers, value)
	default:
		order.UnmatchedLines = append(order.UnmatchedLines, key+": "+value)
	}
}

// parseProductLine 解析 "款号 | 颜色 | 描述 | S:2 M:5 L:10 | 8.50" 形式的产品行
func parseProductLine(line string) (*ProductEntry, error) {
	parts := strings.Split(line, "|")
	if len(parts) < 4 {
		return nil, fmt.Errorf("product line has %d fields", len(parts))
	}

	entry := &ProductEntry{
		PartNumber:  strings.TrimSpace(parts[0]),
		Color:       strings.TrimSpace(parts[1]),
		Description: strings.TrimSpace(parts[2]),
	}

	for _, token := range strings.Fields(strings.TrimSpace(parts[3])) {
		m := sizeTokenRe.FindStringSubmatch(token)
		if m == nil {
			return nil, fmt.Errorf("bad size token %q", token)
		}
		qty, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, err
		}
		entry.Sizes = append(entry.Sizes, entity.SizeQuantity{
			Size:     NormalizeSize(m[1]),
			Quantity: qty,
		})
		entry.Quantity += qty
	}
	if len(entry.Sizes) == 0 {
		return nil, errors.New("product line has no sizes")
	}

	if len(parts) >= 5 {
		price, err := strconv.ParseFloat(strings.TrimSpace(parts[4]), 64)
		if err != nil {
			return nil, fmt.Errorf("bad unit price: %w", err)
		}
		entry.UnitPrice = price
	}
	return entry, nil
}

// applyService 解析 "AL | Full Back | 25000 | x20 @ 31.25" / "DD x2 @ 100.00" 形式的服务行
func (p *TextParser) applyService(order *ParsedOrder, line string) bool {
	m := serviceLineRe.FindStringSubmatch(line)
	if m == nil {
		return false
	}

	code := strings.ToUpper(m[1])
	entry := ServiceEntry{Code: code, Quantity: 1}
	if m[2] != "" {
		entry.Position = strings.TrimSpace(m[2])
	}
	if m[3] != "" {
		entry.StitchCount, _ = strconv.Atoi(m[3])
	}
	if m[4] != "" {
		entry.Quantity, _ = strconv.Atoi(m[4])
	}
	if m[5] != "" {
		entry.UnitPrice, _ = strconv.ParseFloat(m[5], 64)
	}
	entry.IsCap = strings.Contains(strings.ToLower(entry.Position), "cap")

	amount := entry.UnitPrice * float64(entry.Quantity)

	switch {
	case code == "DD" || strings.HasPrefix(code, "DGT-"):
		order.Services.DigitizingCount += entry.Quantity
		order.Services.DigitizingCodes = append(order.Services.DigitizingCodes, code)
	case code == "AL" || code == "FB" || code == "CB" || code == "CS":
		if code == "FB" {
			entry.Position = defaultPosition(entry.Position, "Full Back")
		}
		order.Services.AdditionalLogos = append(order.Services.AdditionalLogos, entry)
	case code == "MONOGRAM" || code == "NAME" || code == "NAMES":
		order.Services.Monograms = append(order.Services.Monograms, entry)
	case code == "WEIGHT":
		order.Services.Weights = append(order.Services.Weights, entry)
	case code == "RUSH":
		order.Services.Rush += amount
	case code == "ART":
		order.Services.ArtCharges += amount
	case code == "GRT-75":
		order.Services.GraphicDesign += amount
	case code == "GRT-50":
		order.Services.PatchSetup += amount
	case code == "SHIP" || code == "SHIPPING" || code == "FREIGHT" || code == "SEG":
		order.Services.Shipping += amount
	case code == "LTM":
		// 源系统已内含 LTM，由定价引擎重算，忽略
	default:
		if !IsKnownServiceCode(code) {
			order.Warnings = append(order.Warnings,
				fmt.Sprintf("未知服务编码 %s，已跳过", code))
		}
		return false
	}
	return true
}

func (p *TextParser) applySummary(order *ParsedOrder, key, value string) {
	parse := func(s string) float64 {
		s = strings.TrimPrefix(strings.TrimSpace(s), "$")
		s = strings.ReplaceAll(s, ",", "")
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	switch strings.ToUpper(key) {
	case "SUBTOTAL":
		order.OrderSummary.Subtotal = parse(value)
	case "TOTAL":
		order.OrderSummary.Total = parse(value)
	case "TAX RATE":
		if m := percentRe.FindStringSubmatch(value); m != nil {
			rate, _ := strconv.ParseFloat(m[1], 64)
			order.OrderSummary.TaxRate = rate / 100
		} else {
			order.OrderSummary.TaxRate = parse(value)
		}
	case "SALES TAX", "TAX":
		order.OrderSummary.SalesTax = parse(value)
	case "SHIPPING":
		order.OrderSummary.Shipping = parse(value)
	case "PAID":
		order.OrderSummary.PaidToDate = parse(value)
	case "BALANCE":
		order.OrderSummary.Balance = parse(value)
	default:
		order.UnmatchedLines = append(order.UnmatchedLines, key+": "+value)
	}
}

func defaultPosition(pos, def string) string {
	if pos == "" {
		return def
	}
	return pos
}

// IsKnownServiceCode 是否为允许清单内的服务编码（大写）
func IsKnownServiceCode(code string) bool {
	for _, known := range KnownServiceCodes {
		if code == known {
			return true
		}
	}
	return strings.HasPrefix(code, "DGT-")
}

// NormalizeSize 尺码归一化（别名映射 + 大写）
func NormalizeSize(size string) string {
	upper := strings.ToUpper(strings.TrimSpace(size))
	if norm, ok := sizeAliases[upper]; ok {
		return norm
	}
	return upper
}

var sizeSuffixRe = regexp.MustCompile(`_\w+$`)

// StripSizeSuffix 去除款号上的尺码后缀（如 PC54_2X → PC54）
func StripSizeSuffix(partNumber string) string {
	return sizeSuffixRe.ReplaceAllString(partNumber, "")
}
