package factory

import (
	"math/rand"
	"sort"
	"strings"
	"time"

	"emotion-engine/internal/config"
	"emotion-engine/internal/model"
)

// Factory 状态工厂
// 根据刺激描述、结果类型、特质权重和前一状态计算新的情绪状态。
// 无自有可变状态，所有数值输入一律钳制而不是拒绝。
type Factory struct {
	cfg config.FactoryConfig
	now func() time.Time
	// pick 从候选集中选一个下标。默认伪随机，测试可注入定值。
	pick func(n int) int
}

// New 创建状态工厂。
func New(cfg config.FactoryConfig) *Factory {
	return &Factory{
		cfg:  cfg,
		now:  time.Now,
		pick: rand.Intn,
	}
}

// NewWithClock 创建使用注入时钟与选择函数的工厂，便于测试。
func NewWithClock(cfg config.FactoryConfig, now func() time.Time, pick func(n int) int) *Factory {
	f := New(cfg)
	if now != nil {
		f.now = now
	}
	if pick != nil {
		f.pick = pick
	}
	return f
}

// outcomeCandidates 把结果类型映射到候选主情绪集合。
var outcomeCandidates = map[model.Outcome][]model.Emotion{
	model.OutcomeSuccess: {model.EmotionJoy, model.EmotionTrust, model.EmotionSurprise},
	model.OutcomePartial: {model.EmotionAnticipation, model.EmotionTrust, model.EmotionJoy},
	model.OutcomeFailure: {model.EmotionSadness, model.EmotionAnger, model.EmotionFear},
}

// unstableFailure 是高不稳定性 + 失败时的倾斜候选集。
var unstableFailure = []model.Emotion{model.EmotionAnger, model.EmotionFear}

// secondaryRules 是主情绪到次级情绪的确定性规则表。
// highOnly 表示只在高强度（>0.6）时附加。
type secondaryRule struct {
	emotion  model.Emotion
	highOnly bool
}

var secondaryRules = map[model.Emotion][]secondaryRule{
	model.EmotionJoy:          {{model.EmotionTrust, true}},
	model.EmotionTrust:        {{model.EmotionJoy, false}},
	model.EmotionFear:         {{model.EmotionSurprise, false}},
	model.EmotionSurprise:     {{model.EmotionAnticipation, false}},
	model.EmotionSadness:      {{model.EmotionFear, false}},
	model.EmotionDisgust:      {{model.EmotionAnger, false}},
	model.EmotionAnger:        {{model.EmotionDisgust, false}},
	model.EmotionAnticipation: {{model.EmotionTrust, true}},
}

// secondaryScale 次级情绪强度约为主强度的 30%。
const secondaryScale = 0.3

// CreateState 根据刺激计算一个新的情绪状态。
// prior 为 nil 表示实体的第一个状态；traits 用查表后的默认值补齐，
// 调用方无需判空。
func (f *Factory) CreateState(req model.StimulusRequest, traits model.TraitWeights, prior *model.EmotionalState) model.EmotionalState {
	stimulus := model.Clamp01(req.Intensity)

	primary := f.selectPrimary(req.Outcome, traits)
	intensity := f.blendIntensity(stimulus, prior)
	secondaries := buildSecondaries(primary, intensity)

	return model.EmotionalState{
		PrimaryEmotion:    primary,
		Intensity:         intensity,
		SecondaryEmotions: secondaries,
		Valence:           weightedValence(primary, intensity, secondaries),
		Arousal:           model.Clamp01((intensity + stimulus) / 2),
		Trigger:           buildTrigger(req),
		Timestamp:         f.now(),
		ExpectedDuration:  expectedDuration(primary, intensity, traits),
	}
}

// selectPrimary 从结果类型对应的候选集中伪随机选取主情绪。
// 不稳定性超过阈值且结果为失败时，候选集收窄到 anger/fear。
func (f *Factory) selectPrimary(outcome model.Outcome, traits model.TraitWeights) model.Emotion {
	candidates, ok := outcomeCandidates[outcome]
	if !ok {
		// 未知结果按 partial 处理，上游偶尔会送来脏枚举值。
		candidates = outcomeCandidates[model.OutcomePartial]
	}
	if outcome == model.OutcomeFailure && traits.Instability > f.cfg.InstabilityThreshold {
		candidates = unstableFailure
	}
	return candidates[f.pick(len(candidates))]
}

// blendIntensity 把缩放后的刺激强度与旧状态强度做指数平滑。
func (f *Factory) blendIntensity(stimulus float64, prior *model.EmotionalState) float64 {
	raw := stimulus * f.cfg.IntensityScale
	if prior == nil {
		return model.Clamp01(raw)
	}
	w := f.cfg.PersistenceWeight
	return model.Clamp01(raw*(1-w) + prior.Intensity*w)
}

func buildSecondaries(primary model.Emotion, intensity float64) map[model.Emotion]float64 {
	rules := secondaryRules[primary]
	out := make(map[model.Emotion]float64, len(rules))
	for _, r := range rules {
		if r.highOnly && intensity <= 0.6 {
			continue
		}
		out[r.emotion] = model.Clamp01(intensity * secondaryScale)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// weightedValence 按强度加权平均主/次级情绪的固定愉悦度常量。
// 总权重为 0（零强度刺激）时回落到主情绪的固定愉悦度，
// 保证愉悦度的符号始终跟随结果类型。
func weightedValence(primary model.Emotion, intensity float64, secondaries map[model.Emotion]float64) float64 {
	sum := model.ValenceOf(primary) * intensity
	weight := intensity
	for e, i := range secondaries {
		sum += model.ValenceOf(e) * i
		weight += i
	}
	if weight == 0 {
		return model.ValenceOf(primary)
	}
	return model.ClampValence(sum / weight)
}

// expectedDuration 基准时长按强度缩放，再由持久性特质放大。
func expectedDuration(primary model.Emotion, intensity float64, traits model.TraitWeights) time.Duration {
	base := float64(model.BaseDurationOf(primary))
	scaled := base * (0.5 + intensity*0.5) * (0.5 + traits.Persistence)
	return time.Duration(scaled)
}

// buildTrigger 把刺激描述和情境因子拼成触发描述。
// 因子按 key 排序保证同样输入产生同样的触发文本。
func buildTrigger(req model.StimulusRequest) string {
	if len(req.ContextFactors) == 0 {
		return req.Stimulus
	}
	keys := make([]string, 0, len(req.ContextFactors))
	for k := range req.ContextFactors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return req.Stimulus + " [" + strings.Join(keys, " ") + "]"
}
