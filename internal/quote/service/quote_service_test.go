package service

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bitfantasy/stitchquote/internal/config"
	"github.com/bitfantasy/stitchquote/internal/quote/entity"
	"github.com/bitfantasy/stitchquote/internal/quote/pricing"
	"github.com/bitfantasy/stitchquote/internal/quote/repository"
	"github.com/bitfantasy/stitchquote/internal/shared/shopworks"
)

// ========== 内存伪实现 ==========

type fakeSessions struct {
	sessions  map[string]*entity.QuoteSession
	items     *fakeItems
	createErr error
}

func newFakeSessions(items *fakeItems) *fakeSessions {
	return &fakeSessions{sessions: map[string]*entity.QuoteSession{}, items: items}
}

func (f *fakeSessions) Create(ctx context.Context, session *entity.QuoteSession) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.sessions[session.QuoteID] = session
	return nil
}

func (f *fakeSessions) FindByQuoteIDWithItems(ctx context.Context, quoteID string) (*entity.QuoteSession, error) {
	session, ok := f.sessions[quoteID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *session
	copied.Items = f.items.byQuote[quoteID]
	return &copied, nil
}

func (f *fakeSessions) DeleteByQuoteID(ctx context.Context, quoteID string) (int64, error) {
	if _, ok := f.sessions[quoteID]; !ok {
		return 0, nil
	}
	delete(f.sessions, quoteID)
	return 1, nil
}

type fakeItems struct {
	byQuote map[string][]entity.QuoteItem
}

func newFakeItems() *fakeItems {
	return &fakeItems{byQuote: map[string][]entity.QuoteItem{}}
}

func (f *fakeItems) BatchCreate(ctx context.Context, items []entity.QuoteItem) error {
	for _, it := range items {
		f.byQuote[it.QuoteID] = append(f.byQuote[it.QuoteID], it)
	}
	return nil
}

func (f *fakeItems) ListByQuoteID(ctx context.Context, quoteID string) ([]entity.QuoteItem, error) {
	return f.byQuote[quoteID], nil
}

func (f *fakeItems) DeleteByQuoteID(ctx context.Context, quoteID string) (int64, error) {
	n := int64(len(f.byQuote[quoteID]))
	delete(f.byQuote, quoteID)
	return n, nil
}

type fakeSequences struct {
	next int
}

func (f *fakeSequences) NextQuoteID(ctx context.Context, prefix string, now time.Time) (string, error) {
	f.next++
	return fmt.Sprintf("%s-%d-%03d", prefix, now.Year(), f.next), nil
}

func testImportConfig() config.ImportConfig {
	return config.ImportConfig{
		TotalTolerance: 2.00,
		QuotePrefix:    "EMB",
		ExpireDays:     30,
	}
}

func newTestQuoteService() (*QuoteService, *fakeSessions, *fakeItems) {
	items := newFakeItems()
	sessions := newFakeSessions(items)
	svc := NewQuoteService(sessions, items, &fakeSequences{}, testImportConfig(), zap.NewNop())
	return svc, sessions, items
}

// ========== 固定订单/结果样本 ==========

func sampleParsedOrder() *shopworks.ParsedOrder {
	return &shopworks.ParsedOrder{
		OrderID: "131445",
		Customer: shopworks.Customer{
			ContactName: "Pat Jensen",
			Company:     "Northwest Sign Co",
			Email:       "pat@nwsign.example.com",
		},
		SalesRep: shopworks.SalesRep{Name: "Taylor Reed", Email: "taylor@decorator.example.com"},
		Shipping: shopworks.ShippingAddress{Street: "2025 Freeman Rd E", City: "Milton", State: "WA", Zip: "98354"},
		Services: shopworks.Services{
			DigitizingCount: 1,
			DigitizingCodes: []string{"DD"},
			Monograms:       []shopworks.ServiceEntry{{Code: "MONOGRAM", Quantity: 2}},
			Rush:            75.00,
		},
		OrderSummary: shopworks.OrderSummary{
			Subtotal: 340.00,
			Total:    510.86,
			TaxRate:  0.101,
			Shipping: 24.00,
		},
		Notes: []string{"Deliver before the 15th."},
	}
}

func sampleQuoteResult() *pricing.QuoteResult {
	return &pricing.QuoteResult{
		GarmentTier:     "8-23",
		GarmentQuantity: 10,
		Products: []pricing.ProductPricing{{
			Style:         "PC61",
			Color:         "Black",
			Title:         "Essential Tee",
			TierLabel:     "8-23",
			TotalQuantity: 10,
			Groups: []pricing.SizeGroup{{
				Kind:             pricing.LineStandard,
				Sizes:            []entity.SizeQuantity{{Size: "M", Quantity: 10}},
				Quantity:         10,
				UnitPrice:        24.00,
				UnitPriceWithLTM: 24.00,
				LineTotal:        240.00,
			}},
			Subtotal: 240.00,
		}},
		Fees: []pricing.FeeLine{{
			Code: entity.FeeDigitizing, Description: "Digitizing Setup", Quantity: 1, UnitAmount: 100, Total: 100,
		}},
		Subtotal:   240.00,
		FeeTotal:   100.00,
		GrandTotal: 340.00,
	}
}

// ========== 测试 ==========

func TestSaveOrderBuildsItemsInFixedOrder(t *testing.T) {
	svc, sessions, items := newTestQuoteService()

	order := sampleParsedOrder()
	result := sampleQuoteResult()

	session, err := svc.SaveOrder(context.Background(), order, result, nil)
	if err != nil {
		t.Fatalf("SaveOrder: %v", err)
	}

	if session.QuoteID != fmt.Sprintf("EMB-%d-001", time.Now().Year()) {
		t.Errorf("quote id = %q", session.QuoteID)
	}
	if _, ok := sessions.sessions[session.QuoteID]; !ok {
		t.Fatal("session not persisted")
	}

	saved := items.byQuote[session.QuoteID]
	// 产品行 → DD → Monogram → RUSH → SHIP → TAX
	wantCodes := []string{"PC61", "DD", "Monogram", "RUSH", "SHIP", "TAX"}
	if len(saved) != len(wantCodes) {
		t.Fatalf("items = %d, want %d", len(saved), len(wantCodes))
	}
	for i, it := range saved {
		if it.StyleNumber != wantCodes[i] {
			t.Errorf("item[%d] = %q, want %q", i, it.StyleNumber, wantCodes[i])
		}
		if it.LineNumber != i+1 {
			t.Errorf("item[%d] line number = %d, want %d", i, it.LineNumber, i+1)
		}
		if it.QuoteID != session.QuoteID {
			t.Errorf("item[%d] quote id = %q", i, it.QuoteID)
		}
	}

	// 未定价的字母绣走默认单价
	mono := saved[2]
	if mono.EmbellishmentType != entity.ItemTypeMonogram || mono.FinalUnitPrice != defaultMonogramFee {
		t.Errorf("monogram item = %+v", mono)
	}
	if mono.LineTotal != 25.00 {
		t.Errorf("monogram total = %v, want 25.00", mono.LineTotal)
	}
}

func TestSaveOrderTaxMath(t *testing.T) {
	svc, _, items := newTestQuoteService()

	order := sampleParsedOrder()
	result := sampleQuoteResult()

	session, err := svc.SaveOrder(context.Background(), order, result, nil)
	if err != nil {
		t.Fatalf("SaveOrder: %v", err)
	}

	// 计税基数 = 340 (定价) + 75 (加急) + 24 (运费) + 25 (字母绣) = 464
	wantTax := pricing.Round2(464.00 * 0.101)
	if math.Abs(session.TaxAmount-wantTax) > 0.001 {
		t.Errorf("tax = %v, want %v", session.TaxAmount, wantTax)
	}
	if math.Abs(session.TotalAmount-(464.00+wantTax)) > 0.001 {
		t.Errorf("total = %v, want %v", session.TotalAmount, 464.00+wantTax)
	}

	var taxItem *entity.QuoteItem
	for i := range items.byQuote[session.QuoteID] {
		if items.byQuote[session.QuoteID][i].StyleNumber == entity.FeeTax {
			taxItem = &items.byQuote[session.QuoteID][i]
		}
	}
	if taxItem == nil || math.Abs(taxItem.LineTotal-wantTax) > 0.001 {
		t.Errorf("tax item = %+v, want total %v", taxItem, wantTax)
	}
}

func TestSaveOrderSessionFields(t *testing.T) {
	svc, _, _ := newTestQuoteService()

	order := sampleParsedOrder()
	session, err := svc.SaveOrder(context.Background(), order, sampleQuoteResult(), nil)
	if err != nil {
		t.Fatalf("SaveOrder: %v", err)
	}

	if session.Status != entity.QuoteStatusOpen {
		t.Errorf("status = %q", session.Status)
	}
	if session.CustomerName != "Pat Jensen" || session.CompanyName != "Northwest Sign Co" {
		t.Errorf("customer = %q / %q", session.CustomerName, session.CompanyName)
	}
	if session.OrderNumber != "131445" || session.ShipToState != "WA" {
		t.Errorf("order/state = %q / %q", session.OrderNumber, session.ShipToState)
	}
	if session.DigitizingCodes != "DD" {
		t.Errorf("digitizing codes = %q", session.DigitizingCodes)
	}
	if session.SWTotal != 510.86 || session.SWSubtotal != 340.00 {
		t.Errorf("sw totals = %v / %v", session.SWTotal, session.SWSubtotal)
	}
	if session.ExpiresAt == nil {
		t.Fatal("expires_at not set")
	}
	wantExpiry := time.Now().AddDate(0, 0, 30)
	if session.ExpiresAt.Sub(wantExpiry) > time.Minute || wantExpiry.Sub(*session.ExpiresAt) > time.Minute {
		t.Errorf("expires_at = %v, want ~%v", session.ExpiresAt, wantExpiry)
	}
	if session.SessionID == "" {
		t.Error("session id empty")
	}
}

func TestVerifyAllChecksPass(t *testing.T) {
	svc, _, _ := newTestQuoteService()

	order := sampleParsedOrder()
	result := sampleQuoteResult()
	session, err := svc.SaveOrder(context.Background(), order, result, nil)
	if err != nil {
		t.Fatalf("SaveOrder: %v", err)
	}

	report, err := svc.Verify(context.Background(), session.QuoteID, order, len(result.Products))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if !report.Passed() {
		for _, c := range report.Checks {
			if !c.Passed {
				t.Errorf("check %q failed: %s", c.Name, c.Detail)
			}
		}
	}
	if len(report.Checks) < 20 {
		t.Errorf("checks = %d, want at least 20", len(report.Checks))
	}
}

func TestSaveOrderPersistsCustomerSuppliedType(t *testing.T) {
	svc, _, items := newTestQuoteService()

	order := sampleParsedOrder()
	result := sampleQuoteResult()
	result.Products[0].ItemType = entity.ItemTypeEmbroidery
	result.Products = append(result.Products, pricing.ProductPricing{
		Style:         "ZZTOP",
		Color:         "Red",
		Title:         "Trucker Hat Blank",
		IsCap:         true,
		ItemType:      entity.ItemTypeCustomerSupplied,
		TotalQuantity: 6,
		Groups: []pricing.SizeGroup{{
			Kind:             pricing.LineOverride,
			Sizes:            []entity.SizeQuantity{{Size: "OSFA", Quantity: 6}},
			Quantity:         6,
			UnitPrice:        5.00,
			UnitPriceWithLTM: 5.00,
			LineTotal:        30.00,
		}},
		Subtotal: 30.00,
	})
	result.Subtotal = 270.00
	result.GrandTotal = 370.00

	session, err := svc.SaveOrder(context.Background(), order, result, nil)
	if err != nil {
		t.Fatalf("SaveOrder: %v", err)
	}

	byStyle := map[string]entity.QuoteItem{}
	for _, it := range items.byQuote[session.QuoteID] {
		byStyle[it.StyleNumber] = it
	}
	if byStyle["PC61"].EmbellishmentType != entity.ItemTypeEmbroidery {
		t.Errorf("PC61 type = %q", byStyle["PC61"].EmbellishmentType)
	}
	if byStyle["ZZTOP"].EmbellishmentType != entity.ItemTypeCustomerSupplied {
		t.Errorf("ZZTOP type = %q", byStyle["ZZTOP"].EmbellishmentType)
	}

	// 客供品行计入产品行核验
	report, err := svc.Verify(context.Background(), session.QuoteID, order, len(result.Products))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	for _, c := range report.Checks {
		if c.Name == "product-count" && !c.Passed {
			t.Errorf("product-count failed: %s", c.Detail)
		}
		if c.Name == "product-prices-nonzero" && !c.Passed {
			t.Errorf("product-prices-nonzero failed: %s", c.Detail)
		}
	}
}

func TestVerifyTaxAmountRoundtrip(t *testing.T) {
	svc, sessions, _ := newTestQuoteService()

	order := sampleParsedOrder()
	order.OrderSummary.SalesTax = 46.86
	session, err := svc.SaveOrder(context.Background(), order, sampleQuoteResult(), nil)
	if err != nil {
		t.Fatalf("SaveOrder: %v", err)
	}

	findCheck := func(report *VerifyReport) *Check {
		for i := range report.Checks {
			if report.Checks[i].Name == "roundtrip-tax-amount" {
				return &report.Checks[i]
			}
		}
		return nil
	}

	report, err := svc.Verify(context.Background(), session.QuoteID, order, 1)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	check := findCheck(report)
	if check == nil || !check.Passed {
		t.Fatalf("tax roundtrip check = %+v, want pass", check)
	}

	// 落库税额被改动后应当失败
	sessions.sessions[session.QuoteID].TaxAmount = 150.00
	report, err = svc.Verify(context.Background(), session.QuoteID, order, 1)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if check = findCheck(report); check == nil || check.Passed {
		t.Fatalf("tax roundtrip check = %+v, want fail", check)
	}

	// 源单无税额时不做该项核验
	order.OrderSummary.SalesTax = 0
	report, err = svc.Verify(context.Background(), session.QuoteID, order, 1)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if findCheck(report) != nil {
		t.Error("tax roundtrip check should be skipped without source amount")
	}
}

func TestVerifyDetectsTamperedData(t *testing.T) {
	svc, _, items := newTestQuoteService()

	order := sampleParsedOrder()
	session, err := svc.SaveOrder(context.Background(), order, sampleQuoteResult(), nil)
	if err != nil {
		t.Fatalf("SaveOrder: %v", err)
	}

	// 篡改：非法明细类型 + 非法费用编号
	saved := items.byQuote[session.QuoteID]
	saved[0].EmbellishmentType = "screenprint"
	saved[1].StyleNumber = "BOGUS-FEE"
	items.byQuote[session.QuoteID] = saved

	report, err := svc.Verify(context.Background(), session.QuoteID, order, 1)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if report.Passed() {
		t.Fatal("Verify passed on tampered data")
	}

	failed := map[string]bool{}
	for _, c := range report.Checks {
		if !c.Passed {
			failed[c.Name] = true
		}
	}
	if !failed["item-types"] {
		t.Error("item-types check should fail")
	}
	if !failed["fee-part-numbers"] {
		t.Error("fee-part-numbers check should fail")
	}
}

func TestVerifyMissingSession(t *testing.T) {
	svc, _, _ := newTestQuoteService()

	report, err := svc.Verify(context.Background(), "EMB-2026-999", sampleParsedOrder(), 1)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(report.Checks) != 1 || report.Checks[0].Passed {
		t.Errorf("checks = %+v, want single failed session-found", report.Checks)
	}
}

func TestCleanupRemovesItemsThenSession(t *testing.T) {
	svc, sessions, items := newTestQuoteService()

	order := sampleParsedOrder()
	session, err := svc.SaveOrder(context.Background(), order, sampleQuoteResult(), nil)
	if err != nil {
		t.Fatalf("SaveOrder: %v", err)
	}

	result := svc.Cleanup(context.Background(), session.QuoteID)
	if result.ItemsDeleted != 6 || result.SessionsDeleted != 1 {
		t.Errorf("cleanup = %+v, want 6 items / 1 session", result)
	}
	if len(result.Errors) != 0 {
		t.Errorf("cleanup errors = %v", result.Errors)
	}
	if len(sessions.sessions) != 0 || len(items.byQuote) != 0 {
		t.Error("data remains after cleanup")
	}

	// 可重复执行
	again := svc.Cleanup(context.Background(), session.QuoteID)
	if again.ItemsDeleted != 0 || again.SessionsDeleted != 0 {
		t.Errorf("second cleanup = %+v, want zero counts", again)
	}
}
