package pricing

import "math"

// 审计结论
const (
	AuditOK       = "OK"
	AuditReview   = "REVIEW"
	AuditMismatch = "MISMATCH"
)

// 审计阈值（相对参考价的偏差百分比）
const (
	auditOKThreshold     = 5.0
	auditReviewThreshold = 15.0
)

// AuditLine 单行审计结果
type AuditLine struct {
	Label     string  `json:"label"`
	Ours      float64 `json:"ours"`
	Reference float64 `json:"reference"`
	Delta     float64 `json:"delta"`
	DeltaPct  float64 `json:"delta_pct"`
	Flag      string  `json:"flag"`
}

// AuditReport 整单价格审计报告。
// 只读对照，任何结论都不修改已持久化的金额。
type AuditReport struct {
	Order AuditLine   `json:"order"`
	Lines []AuditLine `json:"lines,omitempty"`
}

// Flag 报告的整体结论（取最严重的行）
func (r *AuditReport) Flag() string {
	worst := r.Order.Flag
	for _, l := range r.Lines {
		worst = worseFlag(worst, l.Flag)
	}
	return worst
}

func worseFlag(a, b string) string {
	rank := map[string]int{AuditOK: 0, AuditReview: 1, AuditMismatch: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// CompareAudit 用我方计算结果对照参考总价
func CompareAudit(ours, reference float64) AuditLine {
	return compareLine("order-total", ours, reference)
}

// CompareOrder 整单审计：订单级 + 各产品行级
func CompareOrder(result *QuoteResult, referenceTotal float64, referenceLines map[string]float64) *AuditReport {
	report := &AuditReport{
		Order: compareLine("order-total", result.GrandTotal, referenceTotal),
	}
	for _, p := range result.Products {
		key := p.Style + "|" + p.Color
		ref, ok := referenceLines[key]
		if !ok {
			continue
		}
		report.Lines = append(report.Lines, compareLine(key, p.Subtotal, ref))
	}
	return report
}

func compareLine(label string, ours, reference float64) AuditLine {
	line := AuditLine{
		Label:     label,
		Ours:      Round2(ours),
		Reference: Round2(reference),
		Delta:     Round2(ours - reference),
	}
	if reference == 0 {
		if ours == 0 {
			line.Flag = AuditOK
		} else {
			line.DeltaPct = 100
			line.Flag = AuditMismatch
		}
		return line
	}
	line.DeltaPct = Round2(math.Abs(line.Delta) / math.Abs(reference) * 100)
	switch {
	case line.DeltaPct <= auditOKThreshold:
		line.Flag = AuditOK
	case line.DeltaPct <= auditReviewThreshold:
		line.Flag = AuditReview
	default:
		line.Flag = AuditMismatch
	}
	return line
}
