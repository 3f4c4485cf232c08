package pricing

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrConfigDegraded 定价配置不完整，拒绝计算
var ErrConfigDegraded = errors.New("pricing configuration degraded")

// ErrNoTier 数量未命中任何阶梯
var ErrNoTier = errors.New("no pricing tier for quantity")

// 取整规则
const (
	RoundCeilDollar   = "CeilDollar"
	RoundHalfDollarUp = "HalfDollarUp"
)

// Tier 数量阶梯
type Tier struct {
	Label          string  `json:"label"`
	MinQty         int     `json:"min_qty"`
	MaxQty         int     `json:"max_qty"` // 0 表示开放上限
	DecorationCost float64 `json:"decoration_cost"`
	HasLTM         bool    `json:"has_ltm"`
}

// Contains 数量是否落在该阶梯内
func (t Tier) Contains(qty int) bool {
	if qty < t.MinQty {
		return false
	}
	return t.MaxQty == 0 || qty <= t.MaxQty
}

// ALTier 附加图标阶梯
type ALTier struct {
	Label  string  `json:"label"`
	MinQty int     `json:"min_qty"`
	MaxQty int     `json:"max_qty"`
	Cost   float64 `json:"cost"`
}

// StitchBand 针数附加费分段（MaxStitches 为 0 表示封顶段之外）
type StitchBand struct {
	MaxStitches int     `json:"max_stitches"`
	Fee         float64 `json:"fee"`
}

// CategoryRates 单个品类（衣类或帽类）的全部费率
type CategoryRates struct {
	Tiers          []Tier       `json:"tiers"`
	ALTiers        []ALTier     `json:"al_tiers"`
	StitchBands    []StitchBand `json:"stitch_bands"`
	StitchRate     float64      `json:"stitch_rate"`      // 每超出1000针的费率
	BaseStitches   int          `json:"base_stitches"`    // 主图标包含针数
	ALBaseStitches int          `json:"al_base_stitches"` // 附加图标包含针数
	RoundRule      string       `json:"round_rule"`
}

// TierFor 按品类数量选择阶梯
func (c CategoryRates) TierFor(qty int) (*Tier, error) {
	for i := range c.Tiers {
		if c.Tiers[i].Contains(qty) {
			return &c.Tiers[i], nil
		}
	}
	return nil, fmt.Errorf("%w: qty=%d", ErrNoTier, qty)
}

// ALTierFor 按数量选择附加图标阶梯
func (c CategoryRates) ALTierFor(qty int) (*ALTier, bool) {
	for i := range c.ALTiers {
		t := c.ALTiers[i]
		if qty >= t.MinQty && (t.MaxQty == 0 || qty <= t.MaxQty) {
			return &t, true
		}
	}
	return nil, false
}

// StitchFee 主图标针数对应的每件附加费
func (c CategoryRates) StitchFee(stitches int) float64 {
	for _, band := range c.StitchBands {
		if band.MaxStitches == 0 || stitches <= band.MaxStitches {
			return band.Fee
		}
	}
	return 0
}

// Round 按品类取整规则取整
func (c CategoryRates) Round(price float64) float64 {
	switch c.RoundRule {
	case RoundHalfDollarUp:
		return math.Ceil(price*2) / 2
	default:
		return math.Ceil(price)
	}
}

// Snapshot 一次拉取得到的不可变定价快照。
// 降级状态的快照不允许参与任何计算。
type Snapshot struct {
	MarginDenominator float64       `json:"margin_denominator"`
	LTMFee            float64       `json:"ltm_fee"`
	DigitizingFee     float64       `json:"digitizing_fee"`
	PatchSetupFee     float64       `json:"patch_setup_fee"`
	PuffUpcharge      float64       `json:"puff_upcharge"`
	PatchUpcharge     float64       `json:"patch_upcharge"`
	FBMinStitches     int           `json:"fb_min_stitches"`
	StitchIncrement   int           `json:"stitch_increment"`
	Garment           CategoryRates `json:"garment"`
	Cap               CategoryRates `json:"cap"`
	ServiceCodes      []string      `json:"service_codes"`
	CurrencySymbol    string        `json:"currency_symbol"`

	degraded       bool
	degradedReason string
}

// Degraded 快照是否处于降级状态
func (s *Snapshot) Degraded() bool {
	return s == nil || s.degraded
}

// DegradedReason 降级原因
func (s *Snapshot) DegradedReason() string {
	if s == nil {
		return "snapshot not loaded"
	}
	return s.degradedReason
}

// NewDegradedSnapshot 构造降级快照
func NewDegradedSnapshot(reason string) *Snapshot {
	return &Snapshot{degraded: true, degradedReason: reason}
}

// RatesFor 按是否帽类返回品类费率
func (s *Snapshot) RatesFor(isCap bool) CategoryRates {
	if isCap {
		return s.Cap
	}
	return s.Garment
}

// Validate 校验阶梯表互不重叠且覆盖全部正整数数量
func (s *Snapshot) Validate() error {
	if s.degraded {
		return ErrConfigDegraded
	}
	if s.MarginDenominator <= 0 || s.MarginDenominator >= 1 {
		return fmt.Errorf("invalid margin denominator: %v", s.MarginDenominator)
	}
	for _, cat := range []struct {
		name  string
		rates CategoryRates
	}{{"garment", s.Garment}, {"cap", s.Cap}} {
		if err := validateTiers(cat.rates.Tiers); err != nil {
			return fmt.Errorf("%s tiers: %w", cat.name, err)
		}
	}
	return nil
}

func validateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return errors.New("empty tier table")
	}
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinQty < sorted[j].MinQty })

	if sorted[0].MinQty > 1 {
		return fmt.Errorf("tier table does not cover qty=1 (first min=%d)", sorted[0].MinQty)
	}
	for i := 0; i < len(sorted)-1; i++ {
		if sorted[i].MaxQty == 0 {
			return fmt.Errorf("tier %q has open max but is not the last tier", sorted[i].Label)
		}
		if sorted[i+1].MinQty != sorted[i].MaxQty+1 {
			return fmt.Errorf("gap or overlap between tiers %q and %q", sorted[i].Label, sorted[i+1].Label)
		}
	}
	if last := sorted[len(sorted)-1]; last.MaxQty != 0 {
		return fmt.Errorf("last tier %q must have open max", last.Label)
	}
	return nil
}
