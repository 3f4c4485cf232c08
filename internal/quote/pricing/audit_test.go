package pricing

import "testing"

func TestCompareAuditThresholds(t *testing.T) {
	cases := []struct {
		name      string
		ours      float64
		reference float64
		want      string
	}{
		{"exact match", 100.00, 100.00, AuditOK},
		{"within 5 percent", 104.99, 100.00, AuditOK},
		{"exactly 5 percent", 105.00, 100.00, AuditOK},
		{"between 5 and 15", 110.00, 100.00, AuditReview},
		{"exactly 15 percent", 115.00, 100.00, AuditReview},
		{"over 15 percent", 115.01, 100.00, AuditMismatch},
		{"way off", 250.00, 100.00, AuditMismatch},
		{"under reference", 90.00, 100.00, AuditReview},
		{"both zero", 0, 0, AuditOK},
		{"reference zero", 42.00, 0, AuditMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			line := CompareAudit(tc.ours, tc.reference)
			if line.Flag != tc.want {
				t.Errorf("CompareAudit(%v, %v) flag = %q, want %q (delta %v%%)",
					tc.ours, tc.reference, line.Flag, tc.want, line.DeltaPct)
			}
		})
	}
}

func TestCompareOrderWorstOf(t *testing.T) {
	result := &QuoteResult{
		GrandTotal: 202.00,
		Products: []ProductPricing{
			{Style: "PC61", Color: "Black", Subtotal: 100.00},
			{Style: "C112", Color: "Navy", Subtotal: 102.00},
		},
	}
	refs := map[string]float64{
		"PC61|Black": 100.00, // OK
		"C112|Navy":  80.00,  // 27.5% → MISMATCH
	}

	report := CompareOrder(result, 200.00, refs)
	if report.Order.Flag != AuditOK {
		t.Errorf("order flag = %q, want OK (1%% delta)", report.Order.Flag)
	}
	if len(report.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(report.Lines))
	}
	if report.Flag() != AuditMismatch {
		t.Errorf("report flag = %q, want MISMATCH (worst line wins)", report.Flag())
	}
}

func TestCompareOrderSkipsUnknownLines(t *testing.T) {
	result := &QuoteResult{
		GrandTotal: 100.00,
		Products:   []ProductPricing{{Style: "PC61", Color: "Black", Subtotal: 100.00}},
	}
	report := CompareOrder(result, 100.00, map[string]float64{"OTHER|Red": 50})
	if len(report.Lines) != 0 {
		t.Errorf("lines = %d, want 0 (no matching reference)", len(report.Lines))
	}
	if report.Flag() != AuditOK {
		t.Errorf("flag = %q, want OK", report.Flag())
	}
}
