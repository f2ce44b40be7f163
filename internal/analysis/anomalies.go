package analysis

import (
	"math"

	"emotion-engine/internal/model"
)

const (
	// spikeZThreshold 强度 z 分数超过 2.5σ 视为尖峰。
	spikeZThreshold = 2.5
	// oscillationRunLength 连续三个极值点判定为快速振荡。
	oscillationRunLength = 3
	// negativeValenceFloor 与 negativeRunLength：连续 5 个状态
	// 愉悦度低于 -0.3 判定为持续负面。
	negativeValenceFloor = -0.3
	negativeRunLength    = 5
	// flatlineVarianceCeil 与 flatlineMinSamples：样本足够多且
	// 强度方差几乎为零时判定为情绪平直。
	flatlineVarianceCeil = 0.001
	flatlineMinSamples   = 10
)

// 各类异常携带固定建议文案，不做动态生成。
var anomalyRecommendations = map[model.AnomalyType][]string{
	model.AnomalyIntensitySpike: {
		"情绪强度出现异常尖峰，降低刺激强度，给学习者一个缓冲节奏",
		"复盘触发尖峰的刺激内容，确认是否超出当前能力区间",
	},
	model.AnomalyRapidOscillation: {
		"情绪在短时间内反复翻转，减少任务切换频率",
		"安排一个低风险的巩固练习，让状态先稳定下来",
	},
	model.AnomalyProlongedNegative: {
		"负面情绪持续时间过长，插入一次确定能成功的小任务重建信心",
		"主动给出鼓励性反馈，并检查任务难度是否需要下调",
	},
	model.AnomalyFlatline: {
		"情绪长期无起伏，适当提高挑战性或引入新颖刺激",
		"检查刺激是否过于单调，学习者可能已经脱离投入状态",
	},
}

// DetectAnomalies 跑全部四类检测器并汇总结果。
func DetectAnomalies(states []model.EmotionalState) []model.Anomaly {
	var out []model.Anomaly
	out = append(out, DetectIntensitySpikes(states)...)
	out = append(out, DetectRapidOscillation(states)...)
	out = append(out, DetectProlongedNegative(states)...)
	out = append(out, DetectFlatline(states)...)
	return out
}

// DetectIntensitySpikes 对每个状态的强度做 z 分数检验，
// 超过 2.5σ 标记为尖峰，严重度 = min(z/3, 1)。
func DetectIntensitySpikes(states []model.EmotionalState) []model.Anomaly {
	if len(states) < 3 {
		return nil
	}

	values := make([]float64, len(states))
	for i, st := range states {
		values[i] = st.Intensity
	}
	mean := meanOf(values)
	stddev := math.Sqrt(varianceOf(values))
	if stddev == 0 {
		return nil
	}

	var out []model.Anomaly
	for i, st := range states {
		z := math.Abs(st.Intensity-mean) / stddev
		if z > spikeZThreshold {
			out = append(out, model.Anomaly{
				Type:            model.AnomalyIntensitySpike,
				Index:           i,
				State:           st,
				Score:           math.Min(z/3, 1),
				Recommendations: anomalyRecommendations[model.AnomalyIntensitySpike],
			})
		}
	}
	return out
}

// DetectRapidOscillation 找愉悦度相对左右邻居的局部极值点。
// 连续三个极值点记一次振荡异常，计数在标记后或遇到非极值点时清零。
func DetectRapidOscillation(states []model.EmotionalState) []model.Anomaly {
	if len(states) < oscillationRunLength+2 {
		return nil
	}

	var out []model.Anomaly
	run := 0
	for i := 1; i < len(states)-1; i++ {
		prev, cur, next := states[i-1].Valence, states[i].Valence, states[i+1].Valence
		isExtremum := (cur > prev && cur > next) || (cur < prev && cur < next)
		if !isExtremum {
			run = 0
			continue
		}
		run++
		if run >= oscillationRunLength {
			out = append(out, model.Anomaly{
				Type:            model.AnomalyRapidOscillation,
				Index:           i,
				State:           states[i],
				Score:           0.75,
				Recommendations: anomalyRecommendations[model.AnomalyRapidOscillation],
			})
			run = 0
		}
	}
	return out
}

// DetectProlongedNegative 找长度 ≥5 的连续负面段（valence < -0.3），
// 异常锚定在段首，严重度随段长增长，段长 ≥10 封顶为 1。
func DetectProlongedNegative(states []model.EmotionalState) []model.Anomaly {
	var out []model.Anomaly

	runStart := -1
	flush := func(end int) {
		if runStart < 0 {
			return
		}
		length := end - runStart
		if length >= negativeRunLength {
			out = append(out, model.Anomaly{
				Type:            model.AnomalyProlongedNegative,
				Index:           runStart,
				State:           states[runStart],
				Score:           math.Min(float64(length)/10, 1),
				Recommendations: anomalyRecommendations[model.AnomalyProlongedNegative],
			})
		}
		runStart = -1
	}

	for i, st := range states {
		if st.Valence < negativeValenceFloor {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		flush(i)
	}
	flush(len(states))
	return out
}

// DetectFlatline 整个切片强度方差低于阈值（且样本 ≥10）时，
// 标记切片中点，严重度 = clamp(1 - variance*100)。
func DetectFlatline(states []model.EmotionalState) []model.Anomaly {
	if len(states) < flatlineMinSamples {
		return nil
	}

	values := make([]float64, len(states))
	for i, st := range states {
		values[i] = st.Intensity
	}
	variance := varianceOf(values)
	if variance >= flatlineVarianceCeil {
		return nil
	}

	mid := len(states) / 2
	return []model.Anomaly{{
		Type:            model.AnomalyFlatline,
		Index:           mid,
		State:           states[mid],
		Score:           model.Clamp01(1 - variance*100),
		Recommendations: anomalyRecommendations[model.AnomalyFlatline],
	}}
}
