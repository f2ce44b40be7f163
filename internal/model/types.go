package model

import "time"

// Emotion 表示八种基本情绪之一（Plutchik 情绪轮）。
type Emotion string

const (
	EmotionJoy          Emotion = "joy"
	EmotionTrust        Emotion = "trust"
	EmotionFear         Emotion = "fear"
	EmotionSurprise     Emotion = "surprise"
	EmotionSadness      Emotion = "sadness"
	EmotionDisgust      Emotion = "disgust"
	EmotionAnger        Emotion = "anger"
	EmotionAnticipation Emotion = "anticipation"
)

// Outcome 表示一次学习刺激的结果类型。
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailure Outcome = "failure"
)

// Curve 表示过渡插值使用的缓动曲线。
type Curve string

const (
	CurveLinear    Curve = "linear"
	CurveEaseIn    Curve = "ease-in"
	CurveEaseOut   Curve = "ease-out"
	CurveEaseInOut Curve = "ease-in-out"
	CurveBounce    Curve = "bounce"
	CurveElastic   Curve = "elastic"
)

// EmotionalState 是一个不可变的情绪状态值。
// 约定：Intensity/Arousal ∈ [0,1]，Valence ∈ [-1,1]，
// 越界的数值在入库前必须被钳制（clamp），而不是拒绝。
type EmotionalState struct {
	// 主情绪（八选一）。
	PrimaryEmotion Emotion `json:"primary_emotion"`
	// 主情绪强度。
	Intensity float64 `json:"intensity"`
	// 次级情绪及各自强度，可以为空。
	SecondaryEmotions map[Emotion]float64 `json:"secondary_emotions,omitempty"`
	// 愉悦度：-1（非常负面）到 +1（非常正面）。
	Valence float64 `json:"valence"`
	// 唤醒度：0（平静）到 1（高度激活）。
	Arousal float64 `json:"arousal"`
	// 触发原因的自由文本描述。
	Trigger string `json:"trigger"`
	// 状态生成时间（进程本地时钟）。
	Timestamp time.Time `json:"timestamp"`
	// 预期持续时长：超过这个时长后需要新的刺激来维持状态。
	ExpectedDuration time.Duration `json:"expected_duration_ms"`
}

// EmotionalTransition 描述一次从旧状态到新状态的时间驱动过渡。
// 生命周期：实体产生第二个及以后的状态时创建，由 Runner 消费，
// 完成或被取代后归档进历史。
type EmotionalTransition struct {
	TransitionID string         `json:"transition_id"`
	EntityID     string         `json:"entity_id"`
	From         EmotionalState `json:"from"`
	To           EmotionalState `json:"to"`
	Trigger      string         `json:"trigger"`
	Duration     time.Duration  `json:"duration_ms"`
	Curve        Curve          `json:"curve"`
	// Confidence 是过渡参数估计的置信度，仅用于遥测，不影响执行。
	Confidence float64   `json:"confidence"`
	StartTime  time.Time `json:"start_time"`
	// Superseded 标记该过渡在完成前被同一实体的新过渡取代。
	// 被取代的过渡也归档进历史，便于审计完整的过渡时间线。
	Superseded bool `json:"superseded,omitempty"`
}

// TraitWeights 是人格子系统提供的特质权重（只读、可选）。
// 缺省时一律退化为 0.5 的中性值，计算路径不再做空值判断（查表时补默认）。
type TraitWeights struct {
	// 情绪不稳定性：越高越容易在失败时倒向 anger/fear，且更快进入负面状态。
	Instability float64 `json:"instability"`
	// 社交性/外向性：越高越快进入正面状态。
	Sociability float64 `json:"sociability"`
	// 情绪持久性：越高旧状态残留越多、状态维持越久。
	Persistence float64 `json:"persistence"`
}

// DefaultTraitWeights 返回中性的特质权重，用于未注册实体。
func DefaultTraitWeights() TraitWeights {
	return TraitWeights{Instability: 0.5, Sociability: 0.5, Persistence: 0.5}
}

// StimulusRequest 是一次状态生成请求。
type StimulusRequest struct {
	// 刺激的文字描述，会成为新状态的 Trigger。
	Stimulus string `json:"stimulus"`
	// 刺激的结果类型：success/partial/failure。
	Outcome Outcome `json:"outcome"`
	// 刺激强度。允许越界（上游启发式会产生噪声值），使用前钳制到 [0,1]。
	Intensity float64 `json:"intensity"`
	// 情境因子（可选），参与触发描述与上下文相似度计算。
	ContextFactors map[string]float64 `json:"context_factors,omitempty"`
}

// HistoryRecord 是单个实体独占的历史档案。
// 不变量：len(States) 始终 ≤ 配置的最大深度，通过从最旧端截断来维持。
type HistoryRecord struct {
	EntityID    string                `json:"entity_id"`
	States      []EmotionalState      `json:"state_history"`
	Transitions []EmotionalTransition `json:"transition_history"`
	// 最近一次分析检出的模式。
	Patterns     []Pattern `json:"patterns,omitempty"`
	LastAnalysis time.Time `json:"last_analysis"`
	LastActivity time.Time `json:"last_activity"`
}

// QueryCriteria 是历史查询的过滤条件，零值表示不过滤。
type QueryCriteria struct {
	// 只保留主情绪在此集合中的状态。
	Emotions []Emotion `json:"emotions,omitempty"`
	// 时间范围，零值端不限制。
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
	// 强度范围。MaxIntensity ≤ 0 表示不设上限。
	MinIntensity float64 `json:"min_intensity,omitempty"`
	MaxIntensity float64 `json:"max_intensity,omitempty"`
	// 触发描述的子串匹配（大小写不敏感）。
	TriggerContains string `json:"trigger_contains,omitempty"`
	// 过滤后保留最近的 N 条；0 表示全部。
	Limit int `json:"limit,omitempty"`
}

// QueryResult 是一次历史查询的结果。
type QueryResult struct {
	States      []EmotionalState      `json:"states"`
	Transitions []EmotionalTransition `json:"transitions"`
	// 过滤后、截断前的状态总数。
	TotalMatched int           `json:"total_matched"`
	Elapsed      time.Duration `json:"elapsed"`
}

// PatternType 标记一类复合行为模式。
type PatternType string

const (
	PatternFrustrationSpiral PatternType = "frustration_spiral"
	PatternPlateau           PatternType = "plateau"
	PatternRecoveryBounce    PatternType = "recovery_bounce"
	PatternBreakthrough      PatternType = "breakthrough"
	PatternLearningCycle     PatternType = "learning_cycle"
)

// Pattern 是对历史子序列的带置信度分类，按需产生、不作为事实存储。
type Pattern struct {
	Type        PatternType `json:"type"`
	Confidence  float64     `json:"confidence"`
	Description string      `json:"description"`
	DetectedAt  time.Time   `json:"detected_at"`
}

// AnomalyType 标记一类统计异常。
type AnomalyType string

const (
	AnomalyIntensitySpike    AnomalyType = "intensity_spike"
	AnomalyRapidOscillation  AnomalyType = "rapid_oscillation"
	AnomalyProlongedNegative AnomalyType = "prolonged_negative"
	AnomalyFlatline          AnomalyType = "flatline"
)

// Anomaly 把历史切片中的某个状态标记为统计上异常。
type Anomaly struct {
	Type AnomalyType `json:"type"`
	// 异常锚定在切片中的下标。
	Index int            `json:"index"`
	State EmotionalState `json:"state"`
	// 异常得分 ∈ [0,1]。
	Score float64 `json:"score"`
	// 每类异常携带固定的建议文案。
	Recommendations []string `json:"recommendations"`
}

// TrendDirection 是趋势分类结果。
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
	TrendVolatile   TrendDirection = "volatile"
)

// TrendReport 是一条数值序列的线性趋势报告。
type TrendReport struct {
	Direction TrendDirection `json:"direction"`
	Slope     float64        `json:"slope"`
	Variance  float64        `json:"variance"`
}

// AnalysisResult 是一次完整分析的产出。
type AnalysisResult struct {
	EntityID     string         `json:"entity_id"`
	CurrentState EmotionalState `json:"current_state"`

	ValenceTrend   TrendReport `json:"valence_trend"`
	IntensityTrend TrendReport `json:"intensity_trend"`

	DominantEmotion  Emotion             `json:"dominant_emotion"`
	EmotionFrequency map[Emotion]float64 `json:"emotion_frequency"`
	AverageDuration  time.Duration       `json:"average_state_duration"`
	Stability        float64             `json:"stability"`

	Patterns  []Pattern `json:"patterns"`
	Anomalies []Anomaly `json:"anomalies"`

	Recommendations []string  `json:"recommendations"`
	Confidence      float64   `json:"confidence"`
	SampleSize      int       `json:"sample_size"`
	AnalyzedAt      time.Time `json:"analyzed_at"`
}

// Statistics 是引擎级的运行统计。
type Statistics struct {
	ActiveEntities      int             `json:"active_entities"`
	EntitiesWithTraits  int             `json:"entities_with_traits"`
	ActiveTransitions   int             `json:"active_transitions"`
	EmotionDistribution map[Emotion]int `json:"emotion_distribution"`
}
