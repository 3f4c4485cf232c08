package pricing

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/bitfantasy/stitchquote/internal/shared/pricingapi"
)

// Loader 定价快照加载器。
// 进程生命周期内只成功拉取一次；关键配置拉取失败后进入持久降级状态，
// 后续调用不再重试，所有计算均被拒绝。
type Loader struct {
	client *pricingapi.Client
	logger *zap.Logger

	group singleflight.Group

	mu   sync.RWMutex
	snap *Snapshot
}

// NewLoader 创建定价快照加载器
func NewLoader(client *pricingapi.Client, logger *zap.Logger) *Loader {
	return &Loader{client: client, logger: logger}
}

// Snapshot 返回内存中的定价快照，首次调用触发拉取。
// 并发首调用会被合并为一次远程请求。
func (l *Loader) Snapshot(ctx context.Context) (*Snapshot, error) {
	l.mu.RLock()
	snap := l.snap
	l.mu.RUnlock()

	if snap != nil {
		if snap.Degraded() {
			return nil, fmt.Errorf("%w: %s", ErrConfigDegraded, snap.DegradedReason())
		}
		return snap, nil
	}

	v, err, _ := l.group.Do("snapshot", func() (interface{}, error) {
		return l.fetch(ctx)
	})

	if err != nil {
		// 关键配置不可用：记录持久降级状态
		l.mu.Lock()
		if l.snap == nil {
			l.snap = NewDegradedSnapshot(err.Error())
		}
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrConfigDegraded, err)
	}

	loaded := v.(*Snapshot)
	l.mu.Lock()
	l.snap = loaded
	l.mu.Unlock()
	return loaded, nil
}

func (l *Loader) fetch(ctx context.Context) (*Snapshot, error) {
	embBundle, err := l.client.FetchBundle(ctx, pricingapi.MethodEmbroidery)
	if err != nil {
		return nil, err
	}
	capBundle, err := l.client.FetchBundle(ctx, pricingapi.MethodCap)
	if err != nil {
		return nil, err
	}
	embAL, err := l.client.FetchBundle(ctx, pricingapi.MethodEmbroideryAL)
	if err != nil {
		return nil, err
	}
	capAL, err := l.client.FetchBundle(ctx, pricingapi.MethodCapAL)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		MarginDenominator: ruleFloat(embBundle.Rules, "MarginDenominator", 0),
		DigitizingFee:     ruleFloat(embBundle.Rules, "DigitizingFee", 0),
		PatchSetupFee:     ruleFloat(capBundle.Rules, "PatchSetupFee", 0),
		PuffUpcharge:      ruleFloat(capBundle.Rules, "PuffUpcharge", 0),
		PatchUpcharge:     ruleFloat(capBundle.Rules, "PatchUpcharge", 0),
		FBMinStitches:     ruleInt(embAL.Rules, "FBMinimumStitches", 0),
		StitchIncrement:   ruleInt(embBundle.Rules, "StitchIncrement", 1000),
		CurrencySymbol:    ruleString(embBundle.Rules, "CurrencySymbol", "$"),
	}

	snap.Garment = CategoryRates{
		Tiers:          mapTiers(embBundle),
		ALTiers:        mapALTiers(embAL),
		StitchBands:    parseBands(ruleString(embBundle.Rules, "StitchSurchargeBands", "")),
		StitchRate:     ruleFloat(embAL.Rules, "AdditionalStitchRate", 0),
		BaseStitches:   ruleInt(embBundle.Rules, "BaseStitchCount", 0),
		ALBaseStitches: ruleInt(embAL.Rules, "BaseStitchCount", 0),
		RoundRule:      ruleString(embBundle.Rules, "RoundingMethod", RoundCeilDollar),
	}
	snap.Cap = CategoryRates{
		Tiers:          mapTiers(capBundle),
		ALTiers:        mapALTiers(capAL),
		StitchBands:    parseBands(ruleString(capBundle.Rules, "StitchSurchargeBands", "")),
		StitchRate:     ruleFloat(capAL.Rules, "AdditionalStitchRate", 0),
		BaseStitches:   ruleInt(capBundle.Rules, "BaseStitchCount", 0),
		ALBaseStitches: ruleInt(capAL.Rules, "BaseStitchCount", 0),
		RoundRule:      ruleString(capBundle.Rules, "RoundingMethod", RoundHalfDollarUp),
	}

	// LTM 费用挂在阶梯上，取首个带 LTM 的阶梯费用
	for _, t := range embBundle.Tiers {
		if t.LTMFee > 0 {
			snap.LTMFee = t.LTMFee
			break
		}
	}

	codes, err := l.client.FetchServiceCodes(ctx)
	if err != nil {
		// 服务编码表非关键，降级为空表
		l.logger.Warn("service code table unavailable, continuing without it", zap.Error(err))
	} else {
		for _, sc := range codes {
			snap.ServiceCodes = append(snap.ServiceCodes, strings.ToUpper(sc.Code))
		}
	}

	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("定价快照校验失败: %w", err)
	}

	l.logger.Info("pricing snapshot loaded",
		zap.Int("garment_tiers", len(snap.Garment.Tiers)),
		zap.Int("cap_tiers", len(snap.Cap.Tiers)),
		zap.Float64("margin_denominator", snap.MarginDenominator))
	return snap, nil
}

func mapTiers(b *pricingapi.Bundle) []Tier {
	costs := make(map[string]float64, len(b.Costs))
	for _, c := range b.Costs {
		costs[c.TierLabel] = c.EmbroideryCost
	}
	tiers := make([]Tier, 0, len(b.Tiers))
	for _, t := range b.Tiers {
		tiers = append(tiers, Tier{
			Label:          t.TierLabel,
			MinQty:         t.MinQuantity,
			MaxQty:         t.MaxQuantity,
			DecorationCost: costs[t.TierLabel],
			HasLTM:         t.LTMFee > 0,
		})
	}
	return tiers
}

func mapALTiers(b *pricingapi.Bundle) []ALTier {
	costs := make(map[string]float64, len(b.Costs))
	for _, c := range b.Costs {
		costs[c.TierLabel] = c.EmbroideryCost
	}
	tiers := make([]ALTier, 0, len(b.Tiers))
	for _, t := range b.Tiers {
		tiers = append(tiers, ALTier{
			Label:  t.TierLabel,
			MinQty: t.MinQuantity,
			MaxQty: t.MaxQuantity,
			Cost:   costs[t.TierLabel],
		})
	}
	return tiers
}

// parseBands 解析 "10000:0,15000:4,25000:10" 形式的针数分段
func parseBands(spec string) []StitchBand {
	if spec == "" {
		return nil
	}
	var bands []StitchBand
	for _, part := range strings.Split(spec, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(kv) != 2 {
			continue
		}
		max, err1 := strconv.Atoi(kv[0])
		fee, err2 := strconv.ParseFloat(kv[1], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		bands = append(bands, StitchBand{MaxStitches: max, Fee: fee})
	}
	return bands
}

func findRule(rules []pricingapi.BundleRule, name string) (string, bool) {
	for _, r := range rules {
		if strings.EqualFold(r.RuleName, name) {
			return r.RuleValue, true
		}
	}
	return "", false
}

func ruleFloat(rules []pricingapi.BundleRule, name string, def float64) float64 {
	if v, ok := findRule(rules, name); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func ruleInt(rules []pricingapi.BundleRule, name string, def int) int {
	if v, ok := findRule(rules, name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func ruleString(rules []pricingapi.BundleRule, name, def string) string {
	if v, ok := findRule(rules, name); ok && v != "" {
		return v
	}
	return def
}
