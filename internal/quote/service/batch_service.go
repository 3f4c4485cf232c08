package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bitfantasy/stitchquote/internal/config"
	"github.com/bitfantasy/stitchquote/internal/quote/pricing"
	"github.com/bitfantasy/stitchquote/internal/shared/shopworks"
)

// BatchOptions 批量处理选项
type BatchOptions struct {
	Live     bool
	KeepData bool
	Delay    time.Duration // 覆盖配置的订单间隔，零值用配置
}

// BatchReport 批量处理汇总报告
type BatchReport struct {
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Total      int            `json:"total"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Orders     []*OrderReport `json:"orders"`
}

// AuditFlagCounts 各审计结论的订单数
func (r *BatchReport) AuditFlagCounts() map[string]int {
	counts := map[string]int{}
	for _, o := range r.Orders {
		if o.Audit != nil {
			counts[o.Audit.Flag()]++
		}
	}
	return counts
}

// BatchService 批量导入驱动：切分、限速、逐单处理、汇总
type BatchService struct {
	imports *ImportService
	cfg     config.ImportConfig
	logger  *zap.Logger
}

// NewBatchService 创建批量导入服务
func NewBatchService(imports *ImportService, cfg config.ImportConfig, logger *zap.Logger) *BatchService {
	return &BatchService{imports: imports, cfg: cfg, logger: logger}
}

// ProcessBatch 处理批量订单文档。
// 订单严格串行；落库模式下每单之间等待固定间隔；单单失败不影响后续。
func (s *BatchService) ProcessBatch(ctx context.Context, text string, opts BatchOptions) (*BatchReport, error) {
	chunks := shopworks.SplitBatch(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("文档中未找到任何订单块")
	}

	delay := opts.Delay
	if delay == 0 {
		delay = s.cfg.OrderDelay
	}

	report := &BatchReport{
		StartedAt: time.Now(),
		Total:     len(chunks),
	}

	for i, chunk := range chunks {
		if opts.Live && i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				report.FinishedAt = time.Now()
				return report, ctx.Err()
			case <-time.After(delay):
			}
		}

		orderReport := s.imports.ProcessOrder(ctx, chunk, ProcessOptions{
			Live:     opts.Live,
			KeepData: opts.KeepData,
		})
		report.Orders = append(report.Orders, orderReport)
		if orderReport.Failed() {
			report.Failed++
			s.logger.Warn("batch order failed",
				zap.Int("index", i+1),
				zap.String("order_id", orderReport.OrderID),
				zap.String("error", orderReport.Err))
		} else {
			report.Succeeded++
			s.logger.Info("batch order processed",
				zap.Int("index", i+1),
				zap.String("order_id", orderReport.OrderID),
				zap.String("quote_id", orderReport.QuoteID),
				zap.String("audit", auditFlag(orderReport)))
		}
	}

	report.FinishedAt = time.Now()
	return report, nil
}

func auditFlag(r *OrderReport) string {
	if r.Audit == nil {
		return ""
	}
	return r.Audit.Flag()
}

// Summary 控制台友好的汇总文本
func (r *BatchReport) Summary() string {
	out := fmt.Sprintf("订单 %d 单，成功 %d，失败 %d\n", r.Total, r.Succeeded, r.Failed)
	for _, flag := range []string{pricing.AuditOK, pricing.AuditReview, pricing.AuditMismatch} {
		if n := r.AuditFlagCounts()[flag]; n > 0 {
			out += fmt.Sprintf("  审计 %s: %d\n", flag, n)
		}
	}
	for _, o := range r.Orders {
		status := "OK"
		if o.Failed() {
			status = "FAIL: " + o.Err
		}
		verify := ""
		if o.Verify != nil {
			verify = fmt.Sprintf(" 校验 %d/%d", o.Verify.PassCount(), len(o.Verify.Checks))
		}
		out += fmt.Sprintf("  #%s → %s%s\n", o.OrderID, status, verify)
	}
	return out
}
