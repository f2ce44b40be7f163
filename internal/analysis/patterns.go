package analysis

import (
	"fmt"
	"math"
	"time"

	"emotion-engine/internal/model"
)

// 复合模式是从趋势/异常原语派生的尽力而为分类，不是精确契约。
// 阈值选取原则：至少 minPatternSamples 个样本，置信度从支撑证据
// 的强度推出并钳制到 [0,1]。
const minPatternSamples = 6

// DetectPatterns 在切片上识别复合行为模式。
// anomalies 传入已检出的异常，避免重复扫描。
func DetectPatterns(states []model.EmotionalState, anomalies []model.Anomaly, now time.Time) []model.Pattern {
	if len(states) < minPatternSamples {
		return nil
	}

	var out []model.Pattern
	if p, ok := detectFrustrationSpiral(states, now); ok {
		out = append(out, p)
	}
	if p, ok := detectPlateau(states, anomalies, now); ok {
		out = append(out, p)
	}
	if p, ok := detectRecoveryBounce(states, now); ok {
		out = append(out, p)
	}
	if p, ok := detectBreakthrough(states, now); ok {
		out = append(out, p)
	}
	if p, ok := detectLearningCycle(states, now); ok {
		out = append(out, p)
	}
	return out
}

// detectFrustrationSpiral 挫败螺旋：愉悦度趋势下行，
// 且尾部多数状态为负面、强度不降。
func detectFrustrationSpiral(states []model.EmotionalState, now time.Time) (model.Pattern, bool) {
	valence := ValenceTrend(states)
	if valence.Direction != model.TrendDecreasing {
		return model.Pattern{}, false
	}

	tail := states[len(states)-minPatternSamples/2:]
	negative := 0
	for _, st := range tail {
		if st.Valence < 0 {
			negative++
		}
	}
	if negative < len(tail)-1 {
		return model.Pattern{}, false
	}
	if IntensityTrend(states).Direction == model.TrendDecreasing {
		return model.Pattern{}, false
	}

	confidence := model.Clamp01(0.5 + math.Abs(valence.Slope)*10)
	return model.Pattern{
		Type:        model.PatternFrustrationSpiral,
		Confidence:  confidence,
		Description: fmt.Sprintf("愉悦度持续下行（slope=%.3f），负面状态密集且强度未消退", valence.Slope),
		DetectedAt:  now,
	}, true
}

// detectPlateau 平台期：强度与愉悦度都平稳且没有任何异常。
func detectPlateau(states []model.EmotionalState, anomalies []model.Anomaly, now time.Time) (model.Pattern, bool) {
	if len(anomalies) > 0 {
		return model.Pattern{}, false
	}
	if IntensityTrend(states).Direction != model.TrendStable ||
		ValenceTrend(states).Direction != model.TrendStable {
		return model.Pattern{}, false
	}

	return model.Pattern{
		Type:        model.PatternPlateau,
		Confidence:  model.Clamp01(0.4 + Stability(states)*0.4),
		Description: "强度与愉悦度双双平稳，学习状态进入平台期",
		DetectedAt:  now,
	}, true
}

// detectRecoveryBounce 恢复反弹：存在持续负面段，且其后尾部
// 至少两个状态回到正面愉悦度。
func detectRecoveryBounce(states []model.EmotionalState, now time.Time) (model.Pattern, bool) {
	runs := DetectProlongedNegative(states)
	if len(runs) == 0 {
		return model.Pattern{}, false
	}

	n := len(states)
	if n < 2 || states[n-1].Valence <= 0 || states[n-2].Valence <= 0 {
		return model.Pattern{}, false
	}

	last := runs[len(runs)-1]
	return model.Pattern{
		Type:        model.PatternRecoveryBounce,
		Confidence:  model.Clamp01(0.5 + states[n-1].Valence*0.5),
		Description: fmt.Sprintf("在下标 %d 起的负面段之后恢复到正面状态", last.Index),
		DetectedAt:  now,
	}, true
}

// detectBreakthrough 突破：前段整体偏负，末状态高愉悦高强度。
func detectBreakthrough(states []model.EmotionalState, now time.Time) (model.Pattern, bool) {
	n := len(states)
	last := states[n-1]
	if last.Valence <= 0.5 || last.Intensity <= 0.7 {
		return model.Pattern{}, false
	}

	head := states[:n-1]
	var sum float64
	for _, st := range head {
		sum += st.Valence
	}
	if sum/float64(len(head)) >= 0 {
		return model.Pattern{}, false
	}

	return model.Pattern{
		Type:        model.PatternBreakthrough,
		Confidence:  model.Clamp01(last.Valence*0.6 + last.Intensity*0.4),
		Description: "长期偏负面后出现高强度正面状态，疑似理解突破",
		DetectedAt:  now,
	}, true
}

// detectLearningCycle 学习循环：愉悦度符号至少完成两个
// 负→正的完整轮回（挣扎-领悟循环）。
func detectLearningCycle(states []model.EmotionalState, now time.Time) (model.Pattern, bool) {
	cycles := 0
	inNegative := false
	for _, st := range states {
		switch {
		case st.Valence < -0.1:
			inNegative = true
		case st.Valence > 0.1 && inNegative:
			cycles++
			inNegative = false
		}
	}
	if cycles < 2 {
		return model.Pattern{}, false
	}

	return model.Pattern{
		Type:        model.PatternLearningCycle,
		Confidence:  model.Clamp01(0.4 + float64(cycles)*0.15),
		Description: fmt.Sprintf("检测到 %d 个挣扎-领悟循环", cycles),
		DetectedAt:  now,
	}, true
}
