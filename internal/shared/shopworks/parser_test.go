package shopworks

import (
	"errors"
	"strings"
	"testing"
)

const sampleOrder = `Order #: 131445
Terms: Net 30
PO #: PO-9981
Customer ID: 4821
Company: Northwest Sign Co
Contact: Pat Jensen
Email: pat@nwsign.example.com
Phone: 253-555-0131
Rep: Taylor Reed <taylor@decorator.example.com>
Ship To: 2025 Freeman Rd E, Milton, WA 98354
Ship Method: UPS Ground
Design #: D-1002

PRODUCTS
PC61 | Black | Essential Tee | S:5 M:10 L:5 2X:4 | 8.50
C112_OSFA | Navy | Trucker Cap | OSFA:12 | 6.25
DECG | N/A | Customer Supplied Jackets | M:6 | 4.00

SERVICES
DD x2 @ 100.00
AL | Right Sleeve | 9000 | x24 @ 9.25
FB | | 25000 | x24 @ 31.25
MONOGRAM x3 @ 12.50
RUSH @ 75.00
GRT-75 @ 50.00
SHIP @ 24.00
LTM @ 50.00
XYZQ @ 9.99

SUMMARY
Subtotal: $1,234.00
Tax Rate: 10.1%
Sales Tax: $124.63
Shipping: $24.00
Total: $1382.63
Paid: $500.00
Balance: $882.63

NOTES
Customer wants delivery before the 15th.
`

func TestParseOrderHeader(t *testing.T) {
	order, err := NewTextParser().Parse(sampleOrder)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if order.OrderID != "131445" {
		t.Errorf("order id = %q, want 131445", order.OrderID)
	}
	if order.PaymentTerms != "Net 30" || order.PurchaseOrderNumber != "PO-9981" {
		t.Errorf("terms/po = %q/%q", order.PaymentTerms, order.PurchaseOrderNumber)
	}
	if order.Customer.Company != "Northwest Sign Co" || order.Customer.ContactName != "Pat Jensen" {
		t.Errorf("customer = %+v", order.Customer)
	}
	if order.SalesRep.Name != "Taylor Reed" || order.SalesRep.Email != "taylor@decorator.example.com" {
		t.Errorf("rep = %+v", order.SalesRep)
	}
	if order.Shipping.Street != "2025 Freeman Rd E" || order.Shipping.City != "Milton" ||
		order.Shipping.State != "WA" || order.Shipping.Zip != "98354" {
		t.Errorf("ship to = %+v", order.Shipping)
	}
	if len(order.DesignNumbers) != 1 || order.DesignNumbers[0] != "D-1002" {
		t.Errorf("design numbers = %v", order.DesignNumbers)
	}
}

func TestParseOrderProducts(t *testing.T) {
	order, err := NewTextParser().Parse(sampleOrder)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(order.Products) != 2 {
		t.Fatalf("products = %d, want 2", len(order.Products))
	}

	tee := order.Products[0]
	if tee.PartNumber != "PC61" || tee.Color != "Black" || tee.Quantity != 24 {
		t.Errorf("tee = %+v", tee)
	}
	if tee.UnitPrice != 8.50 {
		t.Errorf("tee unit price = %v, want 8.50", tee.UnitPrice)
	}
	// 2X 归一化为 2XL
	last := tee.Sizes[len(tee.Sizes)-1]
	if last.Size != "2XL" || last.Quantity != 4 {
		t.Errorf("last size = %+v, want 2XL:4", last)
	}

	// DECG 行归入客供品
	if len(order.DECGItems) != 1 || order.DECGItems[0].Quantity != 6 {
		t.Errorf("DECG items = %+v", order.DECGItems)
	}
}

func TestParseOrderServices(t *testing.T) {
	order, err := NewTextParser().Parse(sampleOrder)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	svc := order.Services
	if svc.DigitizingCount != 2 {
		t.Errorf("digitizing count = %d, want 2", svc.DigitizingCount)
	}
	if len(svc.AdditionalLogos) != 2 {
		t.Fatalf("additional logos = %d, want 2 (AL + FB)", len(svc.AdditionalLogos))
	}
	al := svc.AdditionalLogos[0]
	if al.Code != "AL" || al.Position != "Right Sleeve" || al.StitchCount != 9000 || al.Quantity != 24 {
		t.Errorf("AL entry = %+v", al)
	}
	fb := svc.AdditionalLogos[1]
	if fb.Code != "FB" || fb.Position != "Full Back" {
		t.Errorf("FB entry = %+v, want default Full Back position", fb)
	}
	if len(svc.Monograms) != 1 || svc.Monograms[0].Quantity != 3 {
		t.Errorf("monograms = %+v", svc.Monograms)
	}
	if svc.Rush != 75.00 || svc.GraphicDesign != 50.00 || svc.Shipping != 24.00 {
		t.Errorf("rush/graphic/shipping = %v/%v/%v", svc.Rush, svc.GraphicDesign, svc.Shipping)
	}

	// 未知编码产生告警并跳过
	foundWarning := false
	for _, w := range order.Warnings {
		if strings.Contains(w, "XYZQ") {
			foundWarning = true
		}
	}
	if !foundWarning {
		t.Errorf("warnings = %v, want unknown-code warning for XYZQ", order.Warnings)
	}
}

func TestParseOrderSummary(t *testing.T) {
	order, err := NewTextParser().Parse(sampleOrder)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	s := order.OrderSummary
	if s.Subtotal != 1234.00 {
		t.Errorf("subtotal = %v, want 1234.00 (comma-separated amount)", s.Subtotal)
	}
	if s.Total != 1382.63 {
		t.Errorf("total = %v, want 1382.63", s.Total)
	}
	if s.TaxRate != 0.101 {
		t.Errorf("tax rate = %v, want 0.101", s.TaxRate)
	}
	if s.SalesTax != 124.63 || s.Shipping != 24.00 {
		t.Errorf("tax/shipping = %v/%v", s.SalesTax, s.Shipping)
	}
	if s.PaidToDate != 500.00 || s.Balance != 882.63 {
		t.Errorf("paid/balance = %v/%v", s.PaidToDate, s.Balance)
	}

	if len(order.Notes) != 1 {
		t.Errorf("notes = %v", order.Notes)
	}
}

func TestParseMissingOrderMarker(t *testing.T) {
	_, err := NewTextParser().Parse("PRODUCTS\nPC61 | Black | Tee | M:5 | 8.50\n")
	if !errors.Is(err, ErrNoOrderMarker) {
		t.Fatalf("err = %v, want ErrNoOrderMarker", err)
	}
}

func TestSplitBatch(t *testing.T) {
	doc := `==================== ORDER 1 ====================
Order #: 100
PRODUCTS
PC61 | Black | Tee | M:5 | 8.50

==================== ORDER 2 ====================
Order #: 101
PRODUCTS
C112 | Navy | Cap | OSFA:12 | 6.25

==================== ORDER 3 ====================
This block has no order marker and is dropped.
`
	chunks := SplitBatch(doc)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if !strings.Contains(chunks[0], "Order #: 100") || !strings.Contains(chunks[1], "Order #: 101") {
		t.Errorf("chunk contents wrong: %q / %q", chunks[0][:30], chunks[1][:30])
	}

	if got := SplitBatch("just noise, no orders"); got != nil {
		t.Errorf("SplitBatch(noise) = %v, want nil", got)
	}
}

func TestNormalizeSize(t *testing.T) {
	cases := map[string]string{
		"sm": "S", "Med": "M", "LG": "L", "xlg": "XL",
		"2X": "2XL", "XXL": "2XL", "3x": "3XL",
		"OSFA": "OSFA", "s/m": "S/M", " L ": "L",
	}
	for in, want := range cases {
		if got := NormalizeSize(in); got != want {
			t.Errorf("NormalizeSize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStripSizeSuffix(t *testing.T) {
	cases := map[string]string{
		"PC54_2X":   "PC54",
		"C112_OSFA": "C112",
		"PC61":      "PC61",
	}
	for in, want := range cases {
		if got := StripSizeSuffix(in); got != want {
			t.Errorf("StripSizeSuffix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseProductLineErrors(t *testing.T) {
	cases := []string{
		"PC61 | Black | Tee",             // 字段不足
		"PC61 | Black | Tee | bananas |", // 尺码无法解析
		"PC61 | Black | Tee | M:x | 8",   // 数量非数字
	}
	for _, line := range cases {
		if _, err := parseProductLine(line); err == nil {
			t.Errorf("parseProductLine(%q) succeeded, want error", line)
		}
	}
}
