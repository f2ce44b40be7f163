package transition

import (
	"math"
	"strings"
	"time"

	"emotion-engine/internal/config"
	"emotion-engine/internal/model"
)

// Spec 是过渡参数计算的结果。
type Spec struct {
	Duration time.Duration
	Curve    model.Curve
	// Confidence 仅用于遥测，不作为执行门槛。
	Confidence float64
}

// Calculator 过渡计算器
// 对一对 from/to 状态计算过渡时长、缓动曲线和置信度。纯计算、无状态。
type Calculator struct {
	cfg config.TransitionConfig
}

// NewCalculator 创建过渡计算器。
func NewCalculator(cfg config.TransitionConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// transitionRules 是静态过渡规则表，key 为 "<from>-><to>"。
// 值越大表示这条情绪路径越"顺"（过渡越快），没有显式规则时
// 按愉悦度差距回退。
var transitionRules = map[string]float64{
	"joy->trust":          0.9,
	"trust->joy":          0.9,
	"joy->sadness":        0.3,
	"sadness->joy":        0.4,
	"sadness->anger":      0.6,
	"anger->fear":         0.7,
	"fear->anger":         0.6,
	"disgust->anger":      0.8,
	"surprise->joy":       0.8,
	"surprise->fear":      0.8,
	"anticipation->joy":   0.85,
	"anticipation->trust": 0.7,
	"trust->fear":         0.35,
	"fear->trust":         0.3,
}

// Calculate 计算一次过渡的时长、曲线与置信度。
// traits 用查表默认值补齐，缺省人格退化为中性因子 1.0。
func (c *Calculator) Calculate(from, to model.EmotionalState, traits model.TraitWeights) Spec {
	personality := personalityFactor(to, traits)
	intensity := 0.5 + math.Abs(to.Intensity-from.Intensity)*0.5
	rule := ruleFactor(from, to)
	context := contextFactor(from.Trigger, to.Trigger)
	valenceDiff := math.Abs(to.Valence - from.Valence)

	raw := float64(c.cfg.BaseSpeed) * personality * intensity *
		(2 - rule) * (2 - context) * (1 + valenceDiff*0.5)
	duration := clampDuration(time.Duration(raw), c.cfg.MinDuration, c.cfg.MaxDuration)

	return Spec{
		Duration:   duration,
		Curve:      selectCurve(from, to, personality),
		Confidence: confidence(rule, intensity, personality, context),
	}
}

// personalityFactor 人格因子：不稳定人格更快进入负面状态，
// 社交型人格更快进入正面状态。无特质时为中性 1.0，始终钳制到 [0.3, 2.0]。
func personalityFactor(to model.EmotionalState, traits model.TraitWeights) float64 {
	factor := 1.0
	if to.Valence < 0 {
		factor -= (traits.Instability - 0.5) * 0.8
	}
	if to.Valence > 0 {
		factor -= (traits.Sociability - 0.5) * 0.6
	}
	if factor < 0.3 {
		return 0.3
	}
	if factor > 2.0 {
		return 2.0
	}
	return factor
}

// ruleFactor 查静态规则表；没有显式规则时按愉悦度差距回退，
// 差距越大过渡越"生硬"。
func ruleFactor(from, to model.EmotionalState) float64 {
	key := string(from.PrimaryEmotion) + "->" + string(to.PrimaryEmotion)
	if v, ok := transitionRules[key]; ok {
		return v
	}
	diff := math.Abs(model.ValenceOf(to.PrimaryEmotion) - model.ValenceOf(from.PrimaryEmotion))
	return math.Max(0.2, 1-diff*0.3)
}

// contextFactor 计算两个触发描述的词元重合度，映射到 [0.5, 1.0]。
// 同源刺激（重合度高）让过渡更自然、更快。
func contextFactor(fromTrigger, toTrigger string) float64 {
	fromTokens := strings.Fields(strings.ToLower(fromTrigger))
	toTokens := strings.Fields(strings.ToLower(toTrigger))
	if len(fromTokens) == 0 || len(toTokens) == 0 {
		return 0.5
	}

	seen := make(map[string]bool, len(fromTokens))
	for _, tok := range fromTokens {
		seen[tok] = true
	}
	overlap := 0
	for _, tok := range toTokens {
		if seen[tok] {
			overlap++
		}
	}

	denom := len(fromTokens)
	if len(toTokens) > denom {
		denom = len(toTokens)
	}
	return 0.5 + 0.5*float64(overlap)/float64(denom)
}

// selectCurve 基于目标状态的确定性曲线选择规则：
// - 目标是 surprise → bounce（突兀感）
// - 高强度 joy → elastic（兴奋的弹性）
// - 强度下降 → ease-out（人格因子大时退化为 linear）
// - 强度上升 → 小幅用 ease-in-out，大幅用 ease-in
func selectCurve(from, to model.EmotionalState, personality float64) model.Curve {
	if to.PrimaryEmotion == model.EmotionSurprise {
		return model.CurveBounce
	}
	if to.PrimaryEmotion == model.EmotionJoy && to.Intensity > 0.7 {
		return model.CurveElastic
	}
	if to.Intensity < from.Intensity {
		if personality > 1.5 {
			return model.CurveLinear
		}
		return model.CurveEaseOut
	}
	if to.Intensity-from.Intensity < 0.3 {
		return model.CurveEaseInOut
	}
	return model.CurveEaseIn
}

// confidence 四因子加权：规则 0.4、强度 0.3、人格 0.2、上下文 0.1。
// 人格因子偏离中性 1.0 越远，参数估计越不可信。
func confidence(rule, intensity, personality, context float64) float64 {
	personalityScore := 1 - math.Abs(personality-1)
	if personalityScore < 0 {
		personalityScore = 0
	}
	return model.Clamp01(rule*0.4 + intensity*0.3 + personalityScore*0.2 + context*0.1)
}

func clampDuration(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}
